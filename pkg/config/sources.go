// pkg/config/sources.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// APIConfig holds WMATA Bus API connection parameters
type APIConfig struct {
	BaseURL string
	APIKey  string

	// Pagination
	PageSize int
	MaxPages int

	// Request behavior
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

// PostgresConfig holds PostgreSQL connection parameters
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Statement timeout
	StatementTimeout time.Duration
}

// LoadAPIConfig loads API configuration from environment variables
func LoadAPIConfig() (*APIConfig, error) {
	apiKey := os.Getenv("WMATA_API_KEY")
	if apiKey == "" {
		return nil, errors.New("WMATA_API_KEY environment variable is required")
	}

	cfg := &APIConfig{
		BaseURL: getEnv("WMATA_BASE_URL", "https://api.wmata.com/Bus.svc/json"),
		APIKey:  apiKey,

		PageSize: getEnvAsInt("API_PAGE_SIZE", 1000),
		MaxPages: getEnvAsInt("API_MAX_PAGES", 100),

		RequestTimeout: getEnvAsDuration("API_REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:  getEnvAsInt("API_RETRY_ATTEMPTS", 3),
		RetryDelay:     getEnvAsDuration("API_RETRY_DELAY", time.Second),
	}

	return cfg, nil
}

// LoadPostgresConfig loads PostgreSQL configuration from environment variables
func LoadPostgresConfig() (*PostgresConfig, error) {
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		return nil, errors.New("POSTGRES_USER environment variable is required")
	}

	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		return nil, errors.New("POSTGRES_PASSWORD environment variable is required")
	}

	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		return nil, errors.New("POSTGRES_DB environment variable is required")
	}

	cfg := &PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvAsInt("POSTGRES_PORT", 5432),
		User:     user,
		Password: password,
		Database: database,
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxOpenConns:     getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_LIFETIME_SECONDS", 1800)) * time.Second,
		ConnMaxIdleTime:  time.Duration(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_TIME_SECONDS", 600)) * time.Second,
		StatementTimeout: time.Duration(getEnvAsInt("POSTGRES_STATEMENT_TIMEOUT_SECONDS", 300)) * time.Second,
	}

	return cfg, nil
}

// ConnectionString returns a formatted PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Database,
		c.SSLMode,
	)
}
