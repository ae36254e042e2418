// pkg/loader/errors.go
package loader

import (
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
)

// SchemaMismatchError reports a contract column missing from an existing
// target table. Always fatal, raised before any write.
type SchemaMismatchError struct {
	Table  string
	Column string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("table %s exists but is missing contract column %s", e.Table, e.Column)
}

// BatchWriteError reports a batch that failed to commit. The whole batch
// was rolled back; no partial batch state reaches the table.
type BatchWriteError struct {
	Batch   int
	Records int
	Err     error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("batch %d (%d records) failed: %v", e.Batch, e.Records, e.Err)
}

func (e *BatchWriteError) Unwrap() error {
	return e.Err
}

// classifyBatchError maps a database error onto a coarse failure class
// using the SQLSTATE when one is available
func classifyBatchError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23":
			return "constraint_violation"
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return "connection"
		default:
			return "sqlstate_" + pgErr.Code
		}
	}
	return "other"
}
