package payment

import (
	"bytes"         // Request bodies
	"context"       // Cancellation
	"crypto/hmac"   // Webhook signatures
	"crypto/sha256" // Webhook signatures
	"encoding/hex"  // Signature encoding
	"encoding/json" // Payload encoding
	"fmt"           // Error formatting
	"io"            // Response bodies
	"net/http"      // HTTP client
	"strings"       // Method codes
	"time"          // Timeouts

	"github.com/shopspring/decimal" // Currency amounts
)

// InitiateRequest is what the reconciler asks the gateway to prompt for
type InitiateRequest struct {
	Reference string          // Our intent id, echoed back as merchant reference
	Amount    decimal.Decimal // Currency amount
	Currency  string          // ISO currency
	Method    string          // ecocash or innbucks
	Phone     string          // Payer phone
	Reason    string          // Shown to the payer
}

// InitiateResult is the gateway's acknowledgement of a prompt
type InitiateResult struct {
	Reference string // Gateway reference
	PollURL   string // URL to read the status from
	Status    string // Provider status at creation
}

// Gateway is the external mobile-money collaborator
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Check(ctx context.Context, pollURL string) (string, error)
}

// PesepayClient talks to the Pesepay payments engine
type PesepayClient struct {
	BaseURL        string
	IntegrationKey string
	ResultURL      string
	ReturnURL      string
	HTTPClient     *http.Client
}

// NewPesepayClient creates a client with a bounded HTTP timeout
func NewPesepayClient(baseURL, integrationKey, resultURL, returnURL string, timeout time.Duration) *PesepayClient {
	return &PesepayClient{
		BaseURL:        strings.TrimSuffix(baseURL, "/"),
		IntegrationKey: integrationKey,
		ResultURL:      resultURL,
		ReturnURL:      returnURL,
		HTTPClient:     &http.Client{Timeout: timeout},
	}
}

type pesepayPayment struct {
	AmountDetails struct {
		Amount       decimal.Decimal `json:"amount"`
		CurrencyCode string          `json:"currencyCode"`
	} `json:"amountDetails"`
	ReasonForPayment  string `json:"reasonForPayment"`
	ResultURL         string `json:"resultUrl"`
	ReturnURL         string `json:"returnUrl"`
	MerchantReference string `json:"merchantReference"`
	PaymentMethodCode string `json:"paymentMethodCode"`
	Customer          struct {
		PhoneNumber string `json:"phoneNumber"`
	} `json:"customer"`
}

type pesepayResponse struct {
	ReferenceNumber   string `json:"referenceNumber"`
	PollURL           string `json:"pollUrl"`
	TransactionStatus string `json:"transactionStatus"`
}

// Initiate sends a seamless mobile-money prompt to the payer's phone
func (c *PesepayClient) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	var payload pesepayPayment
	payload.AmountDetails.Amount = req.Amount
	payload.AmountDetails.CurrencyCode = req.Currency
	payload.ReasonForPayment = req.Reason
	payload.ResultURL = c.ResultURL
	payload.ReturnURL = c.ReturnURL
	payload.MerchantReference = req.Reference
	payload.PaymentMethodCode = strings.ToUpper(req.Method)
	payload.Customer.PhoneNumber = req.Phone

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/payments/make-payment", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var resp pesepayResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}
	ref := resp.ReferenceNumber
	if ref == "" {
		ref = req.Reference
	}
	return &InitiateResult{Reference: ref, PollURL: resp.PollURL, Status: resp.TransactionStatus}, nil
}

// Check reads the current provider status from a poll URL
func (c *PesepayClient) Check(ctx context.Context, pollURL string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return "", err
	}
	var resp pesepayResponse
	if err := c.do(httpReq, &resp); err != nil {
		return "", err
	}
	return resp.TransactionStatus, nil
}

func (c *PesepayClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", c.IntegrationKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("pesepay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

// Sign computes the hex HMAC-SHA256 of body under key
func Sign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook body against its signature header. An
// empty key verifies nothing.
func VerifySignature(key string, body []byte, signature string) bool {
	if key == "" {
		return false
	}
	expected := Sign(key, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
