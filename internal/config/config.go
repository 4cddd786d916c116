package config

import (
	"os"
	"strconv"
	"time"

	"classfit/internal/cache"
	"classfit/internal/database"
	"classfit/internal/external"
	"classfit/internal/messaging"
	"classfit/internal/search"
)

// WaitlistSkipPolicy controls what happens to a waitlisted booking whose
// payment source cannot be resolved at promotion time.
type WaitlistSkipPolicy string

const (
	// SkipPolicySkip stamps the booking and leaves it queued (the
	// historical behavior; it can sit behind newer arrivals until its
	// payment source recovers).
	SkipPolicySkip WaitlistSkipPolicy = "skip"
	// SkipPolicyExpire cancels the booking instead.
	SkipPolicyExpire WaitlistSkipPolicy = "expire"
)

// Config holds the application configuration
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// How long a booking transaction may wait on a row lock before it
	// fails with a retryable timeout.
	LockTimeout time.Duration

	WaitlistSkipPolicy WaitlistSkipPolicy

	// Sweeper cadence.
	SweepInterval time.Duration

	Database database.Config
	NATS     messaging.Config
	Cache    cache.Config
	Search   search.Config
	Billing  external.BillingConfig
}

// Load reads the configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		LockTimeout:    time.Duration(getEnvInt("LOCK_TIMEOUT_MS", 3000)) * time.Millisecond,

		WaitlistSkipPolicy: skipPolicy(getEnv("WAITLIST_SKIP_POLICY", "skip")),

		SweepInterval: time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 60)) * time.Second,

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "classfit"),
			Password:           getEnv("DB_PASSWORD", "classfit"),
			DBName:             getEnv("DB_NAME", "classfit"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "classfit"),
			ClientID:  getEnv("NATS_CLIENT_ID", "classfit-api"),
		},

		Cache: cache.Config{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			TTL:      time.Duration(getEnvInt("SCHEDULE_CACHE_TTL_SEC", 30)) * time.Second,
		},

		Search: search.Config{
			URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
			Index:      getEnv("ELASTICSEARCH_INDEX", "class-sessions"),
			MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
		},

		Billing: external.BillingConfig{
			BaseURL: getEnv("BILLING_GATEWAY_URL", "http://localhost:8090"),
			APIKey:  getEnv("BILLING_API_KEY", ""),
			Timeout: time.Duration(getEnvInt("BILLING_TIMEOUT_SEC", 30)) * time.Second,
		},
	}
}

func skipPolicy(v string) WaitlistSkipPolicy {
	if v == string(SkipPolicyExpire) {
		return SkipPolicyExpire
	}
	return SkipPolicySkip
}

// getEnv returns the environment variable value or the default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer environment variable value or the default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
