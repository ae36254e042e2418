// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	// External collaborators
	API      *APIConfig
	Postgres *PostgresConfig

	// Pipeline settings
	BatchSize    int
	FailFast     bool
	FetchWorkers int

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		// Default values
		BatchSize:    getEnvAsInt("BATCH_SIZE", 500),
		FailFast:     getEnvAsBool("FAIL_FAST", false),
		FetchWorkers: getEnvAsInt("FETCH_WORKERS", 1),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "json"),
	}

	apiConfig, err := LoadAPIConfig()
	if err != nil {
		return nil, errors.New("failed to load API configuration: " + err.Error())
	}
	cfg.API = apiConfig

	pgConfig, err := LoadPostgresConfig()
	if err != nil {
		return nil, errors.New("failed to load PostgreSQL configuration: " + err.Error())
	}
	cfg.Postgres = pgConfig

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.API == nil {
		return errors.New("API configuration is required")
	}

	if c.Postgres == nil {
		return errors.New("postgreSQL configuration is required")
	}

	if c.BatchSize <= 0 {
		return errors.New("batch size must be positive")
	}

	if c.FetchWorkers <= 0 {
		return errors.New("fetch worker count must be positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
