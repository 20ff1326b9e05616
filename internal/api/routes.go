// Package api exposes the marketplace core over HTTP with gin.
package api

import (
	"labour_connect/internal/authorizer" // Gated actions
	"labour_connect/internal/domain"     // Roles
	"labour_connect/internal/job"        // Job lifecycle
	"labour_connect/internal/ledger"     // Wallet ledger
	"labour_connect/internal/middleware" // Auth and rate limiting
	"labour_connect/internal/offer"      // Offer negotiation
	"labour_connect/internal/payment"    // Payment reconciler
	"labour_connect/internal/rating"     // Rating trigger

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the services the routes are bound to
type Deps struct {
	DB              *gorm.DB
	Redis           *redis.Client // May be nil, caching is then skipped
	Ledger          *ledger.Ledger
	Authorizer      *authorizer.Authorizer
	Payments        *payment.Reconciler
	Jobs            *job.Service
	Offers          *offer.Service
	Ratings         *rating.Service
	JWTSecret       string
	WebhookKey      string
	WebhookInsecure bool // Accept unsigned webhooks, local runs only
	PollLimiter     *middleware.MapLimiter
}

// Register mounts every route on r
func Register(r *gin.Engine, d Deps) {
	// Gateway callback, authenticated by signature instead of JWT
	r.POST("/payments/webhook", PaymentWebhookHandler(d.Payments, d.WebhookKey, d.WebhookInsecure))

	// Everything else requires a verified identity
	authed := r.Group("")
	authed.Use(middleware.JWTAuthMiddleware(d.JWTSecret))

	tokens := authed.Group("/tokens")
	tokens.POST("/purchase", PurchaseTokensHandler(d.Payments))                  // Start a purchase
	tokens.GET("/wallet", GetWalletHandler(d.Ledger, d.Redis))                   // Wallet
	tokens.GET("/transactions", GetTransactionHistoryHandler(d.Ledger, d.Redis)) // Token history

	authed.GET("/payments/:id/status", middleware.RateLimit(d.PollLimiter), PaymentStatusHandler(d.Payments)) // Poll a purchase

	jobs := authed.Group("/jobs")
	jobs.POST("", CreateJobHandler(d.Jobs))                   // Post a job
	jobs.GET("", ListJobsHandler(d.Jobs))                     // List jobs
	jobs.GET("/:id", GetJobHandler(d.Jobs))                   // Job details
	jobs.PATCH("/:id/status", UpdateJobStatusHandler(d.Jobs)) // Lifecycle transition

	offers := authed.Group("/offers")
	offers.POST("", CreateOfferHandler(d.Offers))                   // Send an offer
	offers.GET("/job/:jobId", ListOffersHandler(d.Offers, d.Jobs)) // Offers on a job
	offers.PATCH("/:id", RespondOfferHandler(d.Offers))            // Accept, reject or counter

	authed.POST("/ratings", SubmitRatingHandler(d.Ratings))                // Rate a participant
	authed.GET("/ratings/user/:userId", ListUserRatingsHandler(d.Ratings)) // Ratings received
	authed.GET("/profiles/:userId", GetProfileHandler(d.Ratings))          // Reputation

	authed.POST("/messages/charge", ChargeMessageHandler(d.Authorizer, d.Ledger)) // Pay for a chat message

	admin := authed.Group("/admin")
	admin.Use(middleware.RequireRole(domain.RoleAdmin))
	admin.POST("/tokens/grant", GrantTokensHandler(d.Ledger))          // Grant tokens
	admin.GET("/transactions", ListTransactionsHandler(d.DB, d.Redis)) // All ledger entries
}
