// pkg/connector/postgres.go
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/transitops/wmata-ingress/pkg/config"
)

// PostgresConnector implements the DatabaseConnector interface for PostgreSQL
type PostgresConnector struct {
	db     *sqlx.DB
	logger *zap.Logger
	cfg    *config.PostgresConfig
}

// NewPostgresConnector creates and initializes a new PostgreSQL connector
func NewPostgresConnector(ctx context.Context, cfg *config.PostgresConfig) (*PostgresConnector, error) {
	logger := zap.L().Named("postgres-connector")

	logger.Info("Connecting to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User))

	// Open database connection
	db, err := sql.Open("pgx", cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL connection: %w", err)
	}

	// Configure connection pool
	ApplyConnectionSettings(
		db,
		cfg.MaxOpenConns,
		cfg.MaxIdleConns,
		cfg.ConnMaxLifetime,
		cfg.ConnMaxIdleTime,
	)

	// Set statement timeout if configured
	if cfg.StatementTimeout > 0 {
		_, err = db.ExecContext(
			ctx,
			fmt.Sprintf("SET statement_timeout = %d", cfg.StatementTimeout.Milliseconds()),
		)
		if err != nil {
			logger.Warn("Failed to set statement timeout", zap.Error(err))
		}
	}

	// Verify connection
	if err := PingWithTimeout(ctx, db, 5*time.Second); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	connector := NewWithDB(db, cfg, logger)

	LogConnectionStats(logger, cfg.Database, db)
	return connector, nil
}

// NewWithDB wraps an already-open connection. The caller has configured
// the pool; the connector only adds the timeout helpers and validation.
func NewWithDB(db *sql.DB, cfg *config.PostgresConfig, logger *zap.Logger) *PostgresConnector {
	return &PostgresConnector{
		db:     sqlx.NewDb(db, "pgx"),
		logger: logger,
		cfg:    cfg,
	}
}

// DB returns the underlying database connection
func (c *PostgresConnector) DB() *sql.DB {
	return c.db.DB
}

// Validate verifies the PostgreSQL connection and required permissions
func (c *PostgresConnector) Validate() error {
	// Check database version
	var version string
	err := c.db.QueryRow("SELECT version()").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	c.logger.Info("Connected to PostgreSQL", zap.String("version", version))

	// Contract tables are created on first run, so the role needs CREATE
	// on the public schema
	var canCreate bool
	err = c.db.QueryRow("SELECT has_schema_privilege(current_user, 'public', 'CREATE')").Scan(&canCreate)
	if err != nil {
		return fmt.Errorf("failed to check schema privileges: %w", err)
	}
	if !canCreate {
		return fmt.Errorf("role %s lacks CREATE on schema public", c.cfg.User)
	}

	c.logger.Info("PostgreSQL connection validated",
		zap.String("database", c.cfg.Database),
		zap.String("host", c.cfg.Host),
		zap.Int("port", c.cfg.Port))

	return nil
}

// Close closes the database connection
func (c *PostgresConnector) Close() error {
	c.logger.Info("Closing PostgreSQL connection")
	LogConnectionStats(c.logger, c.cfg.Database, c.db.DB)
	return c.db.Close()
}

// statementTimeout bounds a single statement; the config default applies
// when unset
func (c *PostgresConnector) statementTimeout() time.Duration {
	if c.cfg.StatementTimeout > 0 {
		return c.cfg.StatementTimeout
	}
	return 5 * time.Minute
}

// ExecWithTimeout executes a statement under the statement timeout
func (c *PostgresConnector) ExecWithTimeout(
	ctx context.Context,
	query string,
	args ...interface{},
) (sql.Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, c.statementTimeout())
	defer cancel()
	return c.db.ExecContext(queryCtx, query, args...)
}

// GetWithTimeout runs a single-row query under the statement timeout.
// The row is scanned into dest before the timeout context is released.
func (c *PostgresConnector) GetWithTimeout(
	ctx context.Context,
	dest interface{},
	query string,
	args ...interface{},
) error {
	queryCtx, cancel := context.WithTimeout(ctx, c.statementTimeout())
	defer cancel()
	return c.db.GetContext(queryCtx, dest, query, args...)
}

// SelectWithTimeout runs a query under the statement timeout. All rows
// are scanned into dest before the timeout context is released.
func (c *PostgresConnector) SelectWithTimeout(
	ctx context.Context,
	dest interface{},
	query string,
	args ...interface{},
) error {
	queryCtx, cancel := context.WithTimeout(ctx, c.statementTimeout())
	defer cancel()
	return c.db.SelectContext(queryCtx, dest, query, args...)
}
