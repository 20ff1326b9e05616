package config

import (
	"errors"  // For startup checks
	"os"      // For environment variables
	"strconv" // For string to number conversion
	"time"    // For durations

	"github.com/joho/godotenv"      // For loading .env files
	"github.com/shopspring/decimal" // For the token price
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBDriver   string // Database driver: mysql, postgres or sqlite
	DBDSN      string // Full DSN, overrides the discrete DB fields
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // Secret shared with the identity provider
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	AMQPURL        string // RabbitMQ URL, empty disables publishing
	EventsExchange string // Topic exchange for status events

	PesepayAPIURL         string // Gateway base URL
	PesepayIntegrationKey string // Gateway API key
	PesepayEncryptionKey  string // Webhook signing key
	WebhookInsecure       bool   // Accept unsigned webhooks, local runs only
	PesepayResultURL      string // Webhook URL registered with the gateway
	PesepayReturnURL      string // Client return URL

	TokenPriceUSD      decimal.Decimal // Price of one token
	JobPostTokenCost   int64           // Tokens charged per job post
	OfferTokenCost     int64           // Tokens charged per offer
	MessageTokenCost   int64           // Tokens charged per message
	MaxConflictRetries int             // Optimistic retries before surfacing a conflict

	StatusPollRPS   float64       // Allowed payment status polls per second per user
	StatusPollBurst int           // Burst for payment status polls
	GatewayTimeout  time.Duration // HTTP timeout for gateway calls
	SweepInterval   time.Duration // Pending intent sweep period, zero disables
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:    getEnv("APP_PORT", "8000"),      // Application port
		DBDriver:   getEnv("DB_DRIVER", "mysql"),    // Database driver
		DBDSN:      os.Getenv("DB_DSN"),             // Optional full DSN
		DBUser:     os.Getenv("DB_USER"),            // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),        // Database password
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),  // Database host
		DBPort:     getEnv("DB_PORT", "3306"),       // Database port
		DBName:     getEnv("DB_NAME", "labour"),     // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),         // JWT secret key
		RedisAddr:  getEnv("REDIS_ADDR", ""),        // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),         // Redis password
		RedisDB:    getInt("REDIS_DB", 0),           // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true", // Is production environment

		AMQPURL:        os.Getenv("AMQP_URL"),                      // RabbitMQ URL
		EventsExchange: getEnv("EVENTS_EXCHANGE", "labour_events"), // Events exchange

		PesepayAPIURL:         getEnv("PESEPAY_API_URL", "https://api.pesepay.com/api/payments-engine/v2"),
		PesepayIntegrationKey: os.Getenv("PESEPAY_INTEGRATION_KEY"),
		PesepayEncryptionKey:  os.Getenv("PESEPAY_ENCRYPTION_KEY"),
		WebhookInsecure:       os.Getenv("PESEPAY_WEBHOOK_INSECURE") == "true",
		PesepayResultURL:      getEnv("PESEPAY_RESULT_URL", "http://localhost:8000/payments/webhook"),
		PesepayReturnURL:      getEnv("PESEPAY_RETURN_URL", "http://localhost:3000/wallet"),

		TokenPriceUSD:      getDecimal("TOKEN_PRICE_USD", decimal.RequireFromString("0.50")),
		JobPostTokenCost:   int64(getInt("JOB_POST_TOKEN_COST", 2)),
		OfferTokenCost:     int64(getInt("OFFER_TOKEN_COST", 1)),
		MessageTokenCost:   int64(getInt("MESSAGE_TOKEN_COST", 1)),
		MaxConflictRetries: getInt("MAX_CONFLICT_RETRIES", 5),

		StatusPollRPS:   getFloat("STATUS_POLL_RPS", 1),
		StatusPollBurst: getInt("STATUS_POLL_BURST", 5),
		GatewayTimeout:  getDuration("GATEWAY_TIMEOUT", 30*time.Second),
		SweepInterval:   getDuration("PAYMENT_SWEEP_INTERVAL", time.Minute),
	}
}

// Validate rejects settings that must never reach production
func (c *Config) Validate() error {
	if !c.IsProd {
		return nil
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.PesepayEncryptionKey == "" {
		return errors.New("PESEPAY_ENCRYPTION_KEY is required in production")
	}
	if c.WebhookInsecure {
		return errors.New("PESEPAY_WEBHOOK_INSECURE is not allowed in production")
	}
	return nil
}

// getEnv returns the variable or a fallback when unset
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v, err := decimal.NewFromString(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// DSN builds the data source name for the configured driver
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "postgres":
		return "host=" + c.DBHost + " user=" + c.DBUser + " password=" + c.DBPassword +
			" dbname=" + c.DBName + " port=" + c.DBPort + " sslmode=disable"
	case "sqlite":
		return c.DBName + ".db"
	default:
		return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
	}
}
