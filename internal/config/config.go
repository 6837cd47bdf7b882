package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port               string
	Env                string
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Pipeline endpoints (cron sweeper)
	PipelineAPIKey string

	// Recurring sweep
	RecurringJitterMin        time.Duration
	RecurringJitterMax        time.Duration
	RecurringSweepInterval    time.Duration
	RecurringSweepConcurrency int

	// Stripe
	StripeSecretKey       string
	StripeWebhookSecret   string
	StripeProPriceID      string
	StripeBusinessPriceID string

	// Facturapi
	FacturapiAPIKey  string
	FacturapiBaseURL string

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Document archive
	GCSBucket string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	// Get values from environment variables with defaults
	config := &Config{
		// Server
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		// Database
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "lana"),
		DBPassword: getEnv("DB_PASSWORD", "lana"),
		DBName:     getEnv("DB_NAME", "lana"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBPath:     getEnv("DB_PATH", "lana.db"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		PipelineAPIKey: os.Getenv("PIPELINE_API_KEY"),

		StripeSecretKey:       os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeProPriceID:      os.Getenv("STRIPE_PRO_PRICE_ID"),
		StripeBusinessPriceID: os.Getenv("STRIPE_BUSINESS_PRICE_ID"),

		FacturapiAPIKey:  os.Getenv("FACTURAPI_API_KEY"),
		FacturapiBaseURL: getEnv("FACTURAPI_BASE_URL", "https://www.facturapi.io"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		GCSBucket: os.Getenv("GCS_BUCKET"),
	}

	// Parse JWT expiration duration
	expStr := getEnv("JWT_EXPIRES_IN", "15m")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 15m\n", expStr)
		expDur = 15 * time.Minute
	}
	config.JWTExpirationDur = expDur

	if config.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if config.RecurringJitterMin, err = parseDuration("RECURRING_JITTER_MIN", 2*time.Second); err != nil {
		return nil, err
	}
	if config.RecurringJitterMax, err = parseDuration("RECURRING_JITTER_MAX", 5*time.Second); err != nil {
		return nil, err
	}
	if config.RecurringJitterMax < config.RecurringJitterMin {
		return nil, fmt.Errorf("RECURRING_JITTER_MAX (%v) must not be below RECURRING_JITTER_MIN (%v)",
			config.RecurringJitterMax, config.RecurringJitterMin)
	}
	if config.RecurringSweepInterval, err = parseDuration("RECURRING_SWEEP_INTERVAL", 6*time.Hour); err != nil {
		return nil, err
	}
	if config.RecurringSweepConcurrency, err = parsePositiveInt("RECURRING_SWEEP_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	switch config.DBDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: must be postgres or sqlite", config.DBDriver)
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %v", key, d)
	}
	return d, nil
}

func parsePositiveInt(key string, defaultValue int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
