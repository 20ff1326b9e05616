package api

import (
	"net/http" // HTTP status codes
	"strings"  // String manipulation
	"time"     // Date filters

	"labour_connect/internal/domain" // Importing domain models
	"labour_connect/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/google/uuid"       // UUID identifiers
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// ListTransactionsHandler returns all ledger entries, with optional filtering by user, kind, or date
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		// Build cache key from all query params
		var keyParts []string // Parts of the cache key
		// Append each query parameter to the key parts
		for _, k := range []string{"user_id", "kind", "from", "to", "page", "page_size"} {
			keyParts = append(keyParts, k+"="+c.DefaultQuery(k, "")) // Append key-value pair
		}
		// Join key parts to form the final cache key
		cacheKey := "admin:txs:" + strings.Join(keyParts, ":")
		var cached historyPage

		// If cached data found, return it
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions, // List of transactions
				"page":         cached.Page,         // Current page
				"page_size":    cached.PageSize,     // Page size
				"total":        cached.Total,        // Total number of transactions
				"total_pages":  cached.TotalPages,   // Total pages
				"cached":       true,                // Indicate response is from cache
			})
			return
		}
		page, pageSize := pagination(c)                           // Parse pagination
		query := db.WithContext(ctx).Model(&domain.Transaction{}) // Start building the query
		if raw := c.Query("user_id"); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				badRequest(c, "Invalid user_id")
				return
			}
			// Filter by the user's wallet
			query = query.Where("wallet_id IN (?)", db.Model(&domain.Wallet{}).Select("id").Where("user_id = ?", userID))
		}
		if kind := c.Query("kind"); kind != "" {
			if !domain.TransactionKind(kind).Valid() {
				badRequest(c, "Invalid kind")
				return
			}
			query = query.Where("kind = ?", kind) // Filter by entry kind
		}
		for param, op := range map[string]string{"from": ">=", "to": "<="} {
			raw := c.Query(param)
			if raw == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				badRequest(c, "Invalid "+param+", expected RFC3339")
				return
			}
			query = query.Where("created_at "+op+" ?", t) // Filter by date
		}
		var total int64 // Total transaction count
		// Get total count of transactions matching the filters
		if err := query.Count(&total).Error; err != nil {
			fail(c, err)
			return
		}
		var txs []domain.Transaction // Slice to hold transactions
		// Fetch paginated transactions with filters applied
		if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&txs).Error; err != nil {
			fail(c, err)
			return
		}
		respData := historyPage{
			Transactions: txs,                         // List of transactions
			Page:         page,                        // Current page
			PageSize:     pageSize,                    // Page size
			Total:        total,                       // Total number of transactions
			TotalPages:   totalPages(total, pageSize), // Total pages
		}
		// Cache the response for future requests
		_ = utils.SetCache(ctx, rdb, cacheKey, respData, cacheTTL)
		c.JSON(http.StatusOK, gin.H{
			"transactions": respData.Transactions,
			"page":         respData.Page,
			"page_size":    respData.PageSize,
			"total":        respData.Total,
			"total_pages":  respData.TotalPages,
			"cached":       false, // Indicate response is not from cache
		})
	}
}
