package api

import (
	"encoding/json" // Webhook payload
	"io"            // Raw body
	"net/http"      // HTTP status codes

	"labour_connect/internal/payment" // Payment reconciler

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// SignatureHeader carries the webhook HMAC
const SignatureHeader = "X-Pesepay-Signature"

// PaymentStatusHandler returns the caller's intent, polling the gateway while pending
func PaymentStatusHandler(rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		id, ok := pathID(c, "id") // Parse intent ID
		if !ok {
			return
		}
		intent, err := rec.Status(c.Request.Context(), user, id)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment": intent})
	}
}

// webhookPayload is the gateway's result notification
type webhookPayload struct {
	ReferenceNumber   string `json:"referenceNumber"`   // Gateway reference
	MerchantReference string `json:"merchantReference"` // Our intent id
	TransactionStatus string `json:"transactionStatus"` // Provider status
}

// PaymentWebhookHandler applies an inbound gateway signal. Signals are
// at-least-once, so duplicates answer 200 without changing anything. Unsigned
// signals are accepted only when insecure is set.
func PaymentWebhookHandler(rec *payment.Reconciler, signingKey string, insecure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20)) // Read raw body for the signature
		if err != nil {
			badRequest(c, "Unreadable body")
			return
		}
		// Verify the gateway signature
		if insecure {
			logrus.WithField("ip", c.ClientIP()).Warn("Webhook accepted without signature check")
		} else if !payment.VerifySignature(signingKey, body, c.GetHeader(SignatureHeader)) {
			logrus.WithField("ip", c.ClientIP()).Warn("Webhook signature mismatch")
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "invalid_signature", "message": "Invalid signature"}})
			return
		}
		var p webhookPayload
		if err := json.Unmarshal(body, &p); err != nil || p.TransactionStatus == "" {
			badRequest(c, "Invalid webhook payload")
			return
		}
		ref := p.MerchantReference // Prefer our own id
		if ref == "" {
			ref = p.ReferenceNumber
		}
		res, err := rec.ResolveByReference(c.Request.Context(), ref, p.TransactionStatus)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":           res.Intent.Status,   // Stored status
			"credited":         res.Credited,        // This signal credited the wallet
			"already_terminal": res.AlreadyTerminal, // Duplicate or late signal
		})
	}
}
