package main

import (
	"context"   // context package is needed for Redis operations
	"errors"    // Server shutdown errors
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Shutdown timeout

	"labour_connect/internal/api"        // Custom package for API handlers
	"labour_connect/internal/authorizer" // Gated actions
	"labour_connect/internal/config"     // Custom package for configuration
	"labour_connect/internal/db"         // Database connection
	"labour_connect/internal/job"        // Job lifecycle
	"labour_connect/internal/ledger"     // Wallet ledger
	"labour_connect/internal/middleware" // Custom package for middleware
	"labour_connect/internal/notify"     // Event publishing
	"labour_connect/internal/offer"      // Offer negotiation
	"labour_connect/internal/payment"    // Payment reconciler
	"labour_connect/internal/rating"     // Rating trigger
	"labour_connect/internal/utils"      // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	// Connect to the database
	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	if cfg.DBDriver == "sqlite" {
		// Local runs migrate on start
		if err := db.Migrate(gdb); err != nil {
			logrus.Fatalf("migration failed: %v", err)
		}
	}

	// Setup Redis client, optional
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
	}

	// Setup event publishing, falling back to logging
	var notifier notify.Notifier = notify.Fallback{}
	if cfg.AMQPURL != "" {
		publisher, err := notify.NewRabbitPublisher(cfg.AMQPURL, cfg.EventsExchange)
		if err != nil {
			logrus.WithError(err).Warn("RabbitMQ unavailable, events will only be logged")
		} else {
			defer publisher.Close()
			notifier = publisher
		}
	}

	// Core services
	l := ledger.New(gdb, cfg.MaxConflictRetries, utils.WalletCache{RDB: redisClient})
	gate := authorizer.New(l, authorizer.Costs{
		authorizer.ActionJobPost:     cfg.JobPostTokenCost, // Job post price
		authorizer.ActionOfferSend:   cfg.OfferTokenCost,   // Offer price
		authorizer.ActionMessageSend: cfg.MessageTokenCost, // Message price
	}, gdb)
	gateway := payment.NewPesepayClient(cfg.PesepayAPIURL, cfg.PesepayIntegrationKey, cfg.PesepayResultURL, cfg.PesepayReturnURL, cfg.GatewayTimeout)
	payments := payment.NewReconciler(gdb, l, gateway, notifier, payment.Options{
		TokenPrice: cfg.TokenPriceUSD,
		Attempts:   cfg.MaxConflictRetries,
	})
	jobs := job.NewService(gdb, gate, notifier, cfg.MaxConflictRetries)
	ratings := rating.NewService(gdb, jobs, notifier, cfg.MaxConflictRetries)
	jobs.SetCompletionHook(ratings) // Completion counts feed reputation
	offers := offer.NewService(gdb, gate, jobs, notifier, cfg.MaxConflictRetries)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.Register(r, api.Deps{
		DB:              gdb,
		Redis:           redisClient,
		Ledger:          l,
		Authorizer:      gate,
		Payments:        payments,
		Jobs:            jobs,
		Offers:          offers,
		Ratings:         ratings,
		JWTSecret:       cfg.JWTSecret,
		WebhookKey:      cfg.PesepayEncryptionKey,
		WebhookInsecure: cfg.WebhookInsecure,
		PollLimiter:     middleware.NewMapLimiter(cfg.StatusPollRPS, cfg.StatusPollBurst, 10*time.Minute),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Late resolution for intents whose webhook never arrived
	go payments.RunSweeper(ctx, cfg.SweepInterval)

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		logrus.WithError(err).Error("graceful shutdown failed")
	}
	logrus.Info("Server stopped")
}
