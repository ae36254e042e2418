// pkg/loader/loader.go
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/transitops/wmata-ingress/pkg/connector"
	"github.com/transitops/wmata-ingress/pkg/contract"
)

// Loader persists clean records into the contract's target table with
// idempotent upsert semantics
type Loader struct {
	conn     connector.DatabaseConnector
	db       *sqlx.DB
	contract *contract.Contract
	logger   *zap.Logger

	batchSize int
	failFast  bool
}

// NewLoader creates a loader over a validated database connector.
// The caller owns the connection's lifecycle; the loader never closes it.
func NewLoader(conn connector.DatabaseConnector, c *contract.Contract, logger *zap.Logger) (*Loader, error) {
	if conn == nil {
		return nil, errors.New("database connector cannot be nil")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}

	return &Loader{
		conn:      conn,
		db:        sqlx.NewDb(conn.DB(), "pgx"),
		contract:  c,
		logger:    logger.Named("loader").With(zap.String("table", c.Table)),
		batchSize: 500,
	}, nil
}

// WithBatchSize sets the batch size and returns the modified loader
func (l *Loader) WithBatchSize(size int) *Loader {
	if size > 0 {
		l.batchSize = size
	}
	return l
}

// WithFailFast makes the first batch failure abort the whole run
func (l *Loader) WithFailFast(failFast bool) *Loader {
	l.failFast = failFast
	return l
}

// LoadResult summarizes one load
type LoadResult struct {
	Inserted      int
	Updated       int
	Unchanged     int
	FailedBatches []BatchWriteError
}

// Failed reports how many records were in failed batches
func (r *LoadResult) Failed() int {
	n := 0
	for _, b := range r.FailedBatches {
		n += b.Records
	}
	return n
}

// Load ensures the target table exists, then upserts the records in
// fixed-size batches. Each batch commits or rolls back as a unit. A batch
// failure is recorded and the next batch proceeds, unless fail-fast mode
// is set, in which case the run aborts on the first failure.
func (l *Loader) Load(ctx context.Context, records []contract.CleanRecord) (*LoadResult, error) {
	if err := l.EnsureTable(ctx); err != nil {
		return nil, err
	}

	result := &LoadResult{}
	query := l.upsertSQL()

	batchIndex := 0
	for start := 0; start < len(records); start += l.batchSize {
		// Cancellation is honored at batch boundaries, never mid-record
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + l.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		if err := l.loadBatch(ctx, query, batch, result); err != nil {
			batchErr := BatchWriteError{Batch: batchIndex, Records: len(batch), Err: err}
			result.FailedBatches = append(result.FailedBatches, batchErr)

			l.logger.Warn("Batch write failed",
				zap.Int("batch", batchIndex),
				zap.Int("records", len(batch)),
				zap.String("class", classifyBatchError(err)),
				zap.Error(err))

			if l.failFast {
				return result, &batchErr
			}
		}
		batchIndex++
	}

	l.logger.Info("Load completed",
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("failed_batches", len(result.FailedBatches)))

	return result, nil
}

// loadBatch applies one batch inside a single transaction. Counts are
// added to the result only after the batch commits.
func (l *Loader) loadBatch(ctx context.Context, query string, batch []contract.CleanRecord, result *LoadResult) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	var inserted, updated, unchanged int
	for _, rec := range batch {
		var wasInsert bool
		err := stmt.QueryRowxContext(ctx, map[string]interface{}(rec)).Scan(&wasInsert)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// The IS DISTINCT FROM guard suppressed the update: the
			// stored row already equals the incoming one
			unchanged++
		case err != nil:
			return fmt.Errorf("upsert failed for key %s: %w", l.contract.KeyOf(rec), err)
		case wasInsert:
			inserted++
		default:
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	result.Inserted += inserted
	result.Updated += updated
	result.Unchanged += unchanged
	return nil
}
