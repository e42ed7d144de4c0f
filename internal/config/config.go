// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config aggregates all runtime configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	NATS     NATSConfig
	Workflow WorkflowConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
}

// ServerConfig governs the HTTP server.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NATSConfig describes the optional milestone relay target. An empty URL
// disables the relay.
type NATSConfig struct {
	URL string
}

// WorkflowConfig tunes engine behaviour.
type WorkflowConfig struct {
	// SettlementDelay simulates settlement rail latency between confirmation
	// and completion. Zero completes synchronously.
	SettlementDelay time.Duration
	// CallExpiry is how long a published call stays open to investors.
	CallExpiry time.Duration
	// SettlementWindow is how long the investor has to wire funds after KYC
	// approval.
	SettlementWindow time.Duration
}

const (
	defaultPort             = 8086
	defaultReadTimeout      = 10 * time.Second
	defaultWriteTimeout     = 15 * time.Second
	defaultIdleTimeout      = 60 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
	defaultCallExpiry       = 7 * 24 * time.Hour
	defaultSettlementWindow = 3 * 24 * time.Hour
)

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "forwardsflow-cc-workflow"),
			Version:     getEnv("SERVICE_VERSION", "0.1.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", defaultPort),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		NATS: NATSConfig{
			URL: os.Getenv("NATS_URL"),
		},
		Workflow: WorkflowConfig{
			SettlementDelay:  getEnvDuration("SETTLEMENT_DELAY", 0),
			CallExpiry:       getEnvDuration("CALL_EXPIRY", defaultCallExpiry),
			SettlementWindow: getEnvDuration("SETTLEMENT_WINDOW", defaultSettlementWindow),
		},
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns a
// default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
