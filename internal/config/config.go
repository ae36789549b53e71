// Package config provides configuration loading and management for the application.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Base URL of the indexer supplying reserve and user-position snapshots
	IndexerURL string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// API keys for upstream services
	APIKeys map[string]string

	// Accrual model name: "binomial" (default) or "exact"
	AccrualModel string

	// Timeouts and circuit breaker settings
	RequestTimeout    time.Duration
	MinReserves       int
	CircuitResetDelay time.Duration
	SnapshotMaxAge    time.Duration

	// Result signing
	SignResults bool
}

// Load creates a new Config from environment variables
func Load() Config {
	apiKeys := map[string]string{}
	if raw := os.Getenv("API_KEYS"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &apiKeys)
	}

	return Config{
		Port:              GetEnvOrDefault("PORT", "8080"),
		IndexerURL:        GetEnvOrDefault("INDEXER_URL", "https://api.protocol-data.xyz"),
		OtelEndpoint:      GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		APIKeys:           apiKeys,
		AccrualModel:      strings.ToLower(GetEnvOrDefault("ACCRUAL_MODEL", "binomial")),
		RequestTimeout:    GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		MinReserves:       GetEnvAsInt("MIN_RESERVES", 1),
		CircuitResetDelay: GetEnvAsDuration("CIRCUIT_RESET_DELAY", 5*time.Minute),
		SnapshotMaxAge:    GetEnvAsDuration("SNAPSHOT_MAX_AGE", 24*time.Hour),
		SignResults:       GetEnvAsBool("SIGN_RESULTS", false),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
