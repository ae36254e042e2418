package connector

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transitops/wmata-ingress/pkg/config"
)

func newMockConnector(t *testing.T) (*PostgresConnector, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.PostgresConfig{
		User:             "ingress",
		Database:         "transit",
		StatementTimeout: time.Minute,
	}
	return NewWithDB(db, cfg, zap.NewNop()), mock
}

func TestValidatePasses(t *testing.T) {
	conn, mock := newMockConnector(t)

	mock.ExpectQuery("SELECT version").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.2"))
	mock.ExpectQuery("SELECT has_schema_privilege").
		WillReturnRows(sqlmock.NewRows([]string{"has_schema_privilege"}).AddRow(true))

	require.NoError(t, conn.Validate())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateRejectsRoleWithoutCreate(t *testing.T) {
	conn, mock := newMockConnector(t)

	mock.ExpectQuery("SELECT version").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.2"))
	mock.ExpectQuery("SELECT has_schema_privilege").
		WillReturnRows(sqlmock.NewRows([]string{"has_schema_privilege"}).AddRow(false))

	err := conn.Validate()
	require.ErrorContains(t, err, "CREATE on schema public")
	require.ErrorContains(t, err, "ingress")
}

func TestGetWithTimeout(t *testing.T) {
	conn, mock := newMockConnector(t)

	mock.ExpectQuery("SELECT count").
		WithArgs("bus_stops").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	var count int
	err := conn.GetWithTimeout(context.Background(), &count, "SELECT count(*) FROM t WHERE name = $1", "bus_stops")
	require.NoError(t, err)
	require.Equal(t, 42, count)
}

func TestSelectWithTimeoutReadsAllRows(t *testing.T) {
	conn, mock := newMockConnector(t)

	mock.ExpectQuery("SELECT column_name").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
			AddRow("stop_id").AddRow("stop_name").AddRow("lat"))

	// Every row must be materialized before the call returns; nothing is
	// iterated after the statement timeout context is released
	var names []string
	err := conn.SelectWithTimeout(context.Background(), &names, "SELECT column_name FROM information_schema.columns")
	require.NoError(t, err)
	require.Equal(t, []string{"stop_id", "stop_name", "lat"}, names)
}

func TestExecWithTimeout(t *testing.T) {
	conn, mock := newMockConnector(t)

	mock.ExpectExec("CREATE TABLE bus_stops").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := conn.ExecWithTimeout(context.Background(), "CREATE TABLE bus_stops (stop_id BIGINT PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeoutHelpersHonorCancelledContext(t *testing.T) {
	conn, _ := newMockConnector(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var n int
	require.ErrorIs(t, conn.GetWithTimeout(ctx, &n, "SELECT 1"), context.Canceled)
	_, err := conn.ExecWithTimeout(ctx, "SELECT 1")
	require.ErrorIs(t, err, context.Canceled)
}
