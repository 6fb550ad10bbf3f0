package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures all tunable parameters for the API process. Values come
// from environment variables with defaults that work for local development.
type Config struct {
	Port      string
	JWTSecret string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisURL string

	FirebaseServiceAccountPath string
	StripeAPIKey               string

	// Dispatch behaviour.
	DispatchFallbackDelay  time.Duration // CREATED -> SEARCHING_DRIVER safety net
	DispatchRequeueEvery   time.Duration // zero disables re-matching on empty result
	DispatchRequeueMaxRuns int

	// Driver matching defaults.
	MatchLimit           int
	MatchMaxRadiusMeters float64

	// Notification retry queue.
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
}

func defaults() Config {
	return Config{
		Port:                   "8080",
		DBHost:                 "localhost",
		DBUser:                 "postgres",
		DBName:                 "delivering",
		DBPort:                 "5432",
		RedisURL:               "redis://localhost:6379",
		DispatchFallbackDelay:  2 * time.Second,
		DispatchRequeueEvery:   0,
		DispatchRequeueMaxRuns: 5,
		MatchLimit:             5,
		MatchMaxRadiusMeters:   10000,
		RetryMaxAttempts:       3,
		RetryBaseDelay:         2 * time.Second,
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := defaults()

	setString(&cfg.Port, "PORT")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.DBHost, "DB_HOST")
	setString(&cfg.DBUser, "DB_USER")
	setString(&cfg.DBPassword, "DB_PASSWORD")
	setString(&cfg.DBName, "DB_NAME")
	setString(&cfg.DBPort, "DB_PORT")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.FirebaseServiceAccountPath, "FIREBASE_SERVICE_ACCOUNT_PATH")
	setString(&cfg.StripeAPIKey, "STRIPE_API_KEY")

	if err := setDuration(&cfg.DispatchFallbackDelay, "DISPATCH_FALLBACK_DELAY"); err != nil {
		return cfg, err
	}
	if err := setDuration(&cfg.DispatchRequeueEvery, "DISPATCH_REQUEUE_EVERY"); err != nil {
		return cfg, err
	}
	if err := setInt(&cfg.DispatchRequeueMaxRuns, "DISPATCH_REQUEUE_MAX_RUNS"); err != nil {
		return cfg, err
	}
	if err := setInt(&cfg.MatchLimit, "MATCH_LIMIT"); err != nil {
		return cfg, err
	}
	if err := setFloat(&cfg.MatchMaxRadiusMeters, "MATCH_MAX_RADIUS_METERS"); err != nil {
		return cfg, err
	}
	if err := setInt(&cfg.RetryMaxAttempts, "NOTIFY_RETRY_MAX_ATTEMPTS"); err != nil {
		return cfg, err
	}
	if err := setDuration(&cfg.RetryBaseDelay, "NOTIFY_RETRY_BASE_DELAY"); err != nil {
		return cfg, err
	}

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.MatchLimit <= 0 {
		return cfg, fmt.Errorf("MATCH_LIMIT must be > 0")
	}

	return cfg, nil
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setInt(target *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = i
	return nil
}

func setFloat(target *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = f
	return nil
}

func setDuration(target *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*target = d
	return nil
}
