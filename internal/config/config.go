package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Env      string
	Port     string
	LogLevel string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Pipeline endpoints (scheduled jobs)
	PipelineAPIKey string

	// ML categorization service
	MLServiceURL string
	MLTimeout    time.Duration

	// Correction dispatch
	CorrectionQueueSize int
	CorrectionWorkers   int
	CorrectionTimeout   time.Duration

	// Optional AMQP publishing of corrections
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Budget estimator defaults
	BudgetWindowMonths int
	BudgetMultiplier   float64
	BudgetMinimum      float64

	// Concurrent ML calls for batch prediction
	PredictBatchConcurrency int
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Env:      getEnv("ENV", "development"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "fintrack"),
		DBPassword: getEnv("DB_PASSWORD", "fintrack"),
		DBName:     getEnv("DB_NAME", "fintrack"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		// Explicit IPv4 so "localhost" never resolves to ::1 when the ML service only binds IPv4
		MLServiceURL: getEnv("ML_SERVICE_URL", "http://127.0.0.1:8000/api/v1"),
		MLTimeout:    getEnvDuration("ML_TIMEOUT", 5*time.Second),

		CorrectionQueueSize: getEnvInt("CORRECTION_QUEUE_SIZE", 256),
		CorrectionWorkers:   getEnvInt("CORRECTION_WORKERS", 2),
		CorrectionTimeout:   getEnvDuration("CORRECTION_TIMEOUT", 10*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_CORRECTIONS_QUEUE", "ml.corrections"),

		BudgetWindowMonths: getEnvInt("BUDGET_WINDOW_MONTHS", 6),
		BudgetMultiplier:   getEnvFloat("BUDGET_MULTIPLIER", 1.5),
		BudgetMinimum:      getEnvFloat("BUDGET_MINIMUM", 500),

		PredictBatchConcurrency: getEnvInt("PREDICT_BATCH_CONCURRENCY", 4),
	}

	// Parse JWT expiration duration
	config.JWTExpirationDur = getEnvDuration("JWT_EXPIRES_IN", 24*time.Hour)

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

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %g\n", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
