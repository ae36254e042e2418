// pkg/loader/schema.go
package loader

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// EnsureTable makes the target table match the data contract. A missing
// table is created with the contract's columns and a natural-key primary
// key; an existing table is only inspected, never altered. A contract
// column absent from an existing table is a fatal SchemaMismatchError.
func (l *Loader) EnsureTable(ctx context.Context) error {
	exists, err := l.tableExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if table exists: %w", err)
	}

	if !exists {
		return l.createTable(ctx)
	}

	return l.verifySchema(ctx)
}

func (l *Loader) tableExists(ctx context.Context) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`

	var exists bool
	err := l.conn.GetWithTimeout(ctx, &exists, query, l.contract.Table)
	return exists, err
}

func (l *Loader) createTable(ctx context.Context) error {
	createSQL := fmt.Sprintf(
		"CREATE TABLE %s (\n\t%s,\n\tPRIMARY KEY (%s)\n)",
		l.contract.Table,
		strings.Join(l.contract.ColumnDefs(), ",\n\t"),
		strings.Join(l.contract.NaturalKey, ", "),
	)

	if _, err := l.conn.ExecWithTimeout(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table %s: %w", l.contract.Table, err)
	}

	l.logger.Info("Created table", zap.String("table", l.contract.Table))
	return nil
}

// verifySchema checks that every contract column is present in the
// existing table
func (l *Loader) verifySchema(ctx context.Context) error {
	query := `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`

	var names []string
	if err := l.conn.SelectWithTimeout(ctx, &names, query, l.contract.Table); err != nil {
		return fmt.Errorf("failed to query table columns: %w", err)
	}

	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[strings.ToLower(name)] = true
	}

	for _, col := range l.contract.ColumnNames() {
		if !existing[strings.ToLower(col)] {
			return &SchemaMismatchError{Table: l.contract.Table, Column: col}
		}
	}

	l.logger.Debug("Existing table matches contract", zap.String("table", l.contract.Table))
	return nil
}

// upsertSQL builds the named upsert statement for the contract. Non-key
// columns update in place only when something actually changed, so
// re-running the same load is a no-op; `xmax = 0` distinguishes fresh
// inserts from updates. Contracts whose columns are all key columns
// degrade to insert-or-ignore.
func (l *Loader) upsertSQL() string {
	cols := l.contract.ColumnNames()
	nonKey := l.contract.NonKeyColumns()

	params := make([]string, len(cols))
	for i, c := range cols {
		params[i] = ":" + c
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		l.contract.Table,
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
	)

	if len(nonKey) == 0 {
		return sql + fmt.Sprintf(
			" ON CONFLICT (%s) DO NOTHING RETURNING true AS inserted",
			strings.Join(l.contract.NaturalKey, ", "),
		)
	}

	sets := make([]string, len(nonKey))
	current := make([]string, len(nonKey))
	incoming := make([]string, len(nonKey))
	for i, c := range nonKey {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
		current[i] = fmt.Sprintf("%s.%s", l.contract.Table, c)
		incoming[i] = "EXCLUDED." + c
	}

	sql += fmt.Sprintf(
		" ON CONFLICT (%s) DO UPDATE SET %s WHERE (%s) IS DISTINCT FROM (%s) RETURNING (xmax = 0) AS inserted",
		strings.Join(l.contract.NaturalKey, ", "),
		strings.Join(sets, ", "),
		strings.Join(current, ", "),
		strings.Join(incoming, ", "),
	)

	return sql
}
