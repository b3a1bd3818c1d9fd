// Package config loads application configuration from the environment.
// A local .env file is honored for development; production supplies real
// environment variables. Rate overrides never come from here - they
// travel with each calculation request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Port      string
	StaticDir string

	// Storage
	DBPath string

	// Scheduler
	SchedulerEnabled  bool
	SchedulerInterval time.Duration

	// Sentry
	SentryDSN         string
	SentryEnvironment string
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:              getEnv("PORT", "8080"),
		StaticDir:         getEnv("STATIC_DIR", "./static"),
		DBPath:            getEnv("DB_PATH", "./casa.db"),
		SchedulerEnabled:  getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", 24*time.Hour),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive, got %v", c.SchedulerInterval)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
