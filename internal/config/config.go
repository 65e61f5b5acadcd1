// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
	BackendPebble   = "pebble"

	NotifyAWS = "aws"
	NotifyLog = "log"
)

// Config holds runtime settings for the TrackItNow server.
type Config struct {
	Port         string
	JWTSecret    string
	CookieSecure bool
	BcryptCost   int

	StoreBackend  string
	DatabasePath  string
	PebbleDir     string
	DynamoDBTable string
	StoreTimeout  time.Duration

	AWSRegion      string
	AWSEndpointURL string

	NotifyBackend        string
	ConfirmationFunction string

	LoginRatePerMinute int
	LogLevel           slog.Level
}

// Load reads an optional env file (ignored when absent) and then builds a
// Config from environment variables. Variables already set in the process
// environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv()
}

// FromEnv builds and validates a Config from the current environment.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:      envOrDefault("PORT", "8080"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		// Default to secure cookies; disable only for local development.
		CookieSecure:         os.Getenv("COOKIE_SECURE") != "false",
		StoreBackend:         strings.ToLower(envOrDefault("STORE_BACKEND", BackendSQLite)),
		DatabasePath:         envOrDefault("DATABASE_PATH", "trackitnow.db"),
		PebbleDir:            envOrDefault("PEBBLE_DIR", "trackitnow-pebble"),
		DynamoDBTable:        envOrDefault("DYNAMODB_TABLE", "Users"),
		AWSRegion:            envOrDefault("AWS_REGION", "us-east-1"),
		AWSEndpointURL:       os.Getenv("AWS_ENDPOINT_URL"),
		NotifyBackend:        strings.ToLower(envOrDefault("NOTIFY_BACKEND", NotifyLog)),
		ConfirmationFunction: envOrDefault("CONFIRMATION_FUNCTION", "SendOrderConfirmation"),
	}
	// An explicitly empty CONFIRMATION_FUNCTION selects direct topic publishing.
	if v, ok := os.LookupEnv("CONFIRMATION_FUNCTION"); ok && v == "" {
		cfg.ConfirmationFunction = ""
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}

	cost, err := intOrDefault("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}
	if cost < 4 || cost > 14 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", cost)
	}
	cfg.BcryptCost = cost

	switch cfg.StoreBackend {
	case BackendSQLite, BackendDynamoDB, BackendPebble:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.NotifyBackend {
	case NotifyAWS, NotifyLog:
	default:
		return nil, fmt.Errorf("unknown NOTIFY_BACKEND %q", cfg.NotifyBackend)
	}

	cfg.StoreTimeout, err = time.ParseDuration(envOrDefault("STORE_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_TIMEOUT: %w", err)
	}
	if cfg.StoreTimeout <= 0 {
		return nil, errors.New("STORE_TIMEOUT must be positive")
	}

	cfg.LoginRatePerMinute, err = intOrDefault("LOGIN_RATE_PER_MINUTE", 10)
	if err != nil {
		return nil, err
	}
	if cfg.LoginRatePerMinute < 1 {
		return nil, errors.New("LOGIN_RATE_PER_MINUTE must be at least 1")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOrDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intOrDefault(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
