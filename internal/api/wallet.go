package api

import (
	"net/http" // HTTP status codes
	"time"     // Time durations

	"labour_connect/internal/authorizer" // Gated actions
	"labour_connect/internal/domain"     // Importing domain models
	"labour_connect/internal/ledger"     // Wallet ledger
	"labour_connect/internal/payment"    // Payment reconciler
	"labour_connect/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/google/uuid"       // UUID identifiers
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// cacheTTL is how long wallet reads stay cached
const cacheTTL = 60 * time.Second

// PurchaseRequest represents a token purchase request
type PurchaseRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"` // Tokens to buy
	Method string `json:"method" binding:"required"`      // ecocash or innbucks
	Phone  string `json:"phone" binding:"required"`       // Payer phone number
}

// PurchaseTokensHandler starts a mobile-money purchase; tokens are credited on confirmation
func PurchaseTokensHandler(rec *payment.Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		var req PurchaseRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid purchase request")
			return
		}
		intent, err := rec.CreateIntent(c.Request.Context(), user.ID, req.Amount, domain.PaymentMethod(req.Method), req.Phone)
		if err != nil {
			fail(c, err)
			return
		}
		// Return the pending intent for the client to poll
		c.JSON(http.StatusCreated, gin.H{"payment": intent})
	}
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		ctx := c.Request.Context()                                // Context for Redis operations
		cacheKey := utils.WalletKey(user.ID)                      // Cache key for wallet
		var wallet domain.Wallet                                  // Wallet struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet) // Try to get from cache
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true})
			return
		}
		// If not in cache, read through the ledger
		w, err := l.Wallet(ctx, user.ID)
		if err != nil {
			fail(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, w, cacheTTL)        // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": false}) // Return wallet info
	}
}

// historyPage is the cached shape of a transaction history page
type historyPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

// GetTransactionHistoryHandler returns the authenticated user's token transactions
func GetTransactionHistoryHandler(l *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		page, pageSize := pagination(c) // Parse pagination
		ctx := c.Request.Context()      // Context for Redis operations
		// Only the default first page is cached, the ledger invalidates it on every entry
		cacheable := page == 1 && pageSize == 20
		if cacheable {
			var cached historyPage
			if found, err := utils.GetCache(ctx, rdb, utils.TransactionsKey(user.ID), &cached); err == nil && found {
				c.JSON(http.StatusOK, gin.H{
					"transactions": cached.Transactions, // Cached transactions
					"page":         cached.Page,         // Current page
					"page_size":    cached.PageSize,     // Page size
					"total":        cached.Total,        // Total transactions
					"total_pages":  cached.TotalPages,   // Total pages
					"cached":       true,
				})
				return
			}
		}
		txs, total, err := l.History(ctx, user.ID, page, pageSize)
		if err != nil {
			fail(c, err)
			return
		}
		resp := historyPage{
			Transactions: txs,                         // List of transactions
			Page:         page,                        // Current page
			PageSize:     pageSize,                    // Page size
			Total:        total,                       // Total transactions
			TotalPages:   totalPages(total, pageSize), // Total pages
		}
		if cacheable {
			_ = utils.SetCache(ctx, rdb, utils.TransactionsKey(user.ID), resp, cacheTTL)
		}
		c.JSON(http.StatusOK, gin.H{
			"transactions": resp.Transactions,
			"page":         resp.Page,
			"page_size":    resp.PageSize,
			"total":        resp.Total,
			"total_pages":  resp.TotalPages,
			"cached":       false, // Not from cache
		})
	}
}

// MessageChargeRequest identifies the message being paid for
type MessageChargeRequest struct {
	MessageID string `json:"message_id" binding:"required"` // Chat transport message id
}

// ChargeMessageHandler charges the sender for one chat message
func ChargeMessageHandler(a *authorizer.Authorizer, l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		var req MessageChargeRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "message_id is required")
			return
		}
		if err := a.ChargeMessage(c.Request.Context(), user, req.MessageID); err != nil {
			fail(c, err)
			return
		}
		balance, err := l.GetBalance(c.Request.Context(), user.ID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"charged": a.Cost(authorizer.ActionMessageSend), "balance": balance})
	}
}

// GrantRequest represents an admin token grant
type GrantRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`     // Recipient
	Amount int64     `json:"amount" binding:"required,gt=0"` // Tokens to grant
	Reason string    `json:"reason"`                         // Free-text reason, logged
}

// GrantTokensHandler credits tokens to any user; admin only
func GrantTokensHandler(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := caller(c) // Get identity from context
		if !ok {
			return
		}
		var req GrantRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid grant request")
			return
		}
		ref := "admin:" + admin.ID.String() // Reference names the granting admin
		balance, err := l.Credit(c.Request.Context(), req.UserID, req.Amount, domain.KindAdminGrant, ref)
		if err != nil {
			fail(c, err)
			return
		}
		// Log the grant with its reason
		logrus.WithFields(logrus.Fields{
			"admin_id": admin.ID,   // Granting admin
			"user_id":  req.UserID, // Recipient
			"amount":   req.Amount, // Tokens
			"reason":   req.Reason, // Reason
		}).Info("Admin token grant")
		c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "balance": balance})
	}
}
