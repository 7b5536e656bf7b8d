package testdb

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/chapterq/internal/platform/migrations"
	"github.com/phrazzld/chapterq/internal/platform/postgres"
	"github.com/phrazzld/chapterq/internal/platform/sqlite"
	"github.com/stretchr/testify/require"
)

// DatabaseURLEnv names the variable that enables PostgreSQL tests.
const DatabaseURLEnv = "CHAPTERQ_TEST_DATABASE_URL"

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// GetTestDatabaseURL returns the PostgreSQL URL for tests, or "".
func GetTestDatabaseURL() string {
	return os.Getenv(DatabaseURLEnv)
}

// ShouldSkipDatabaseTest reports whether PostgreSQL tests must be skipped.
func ShouldSkipDatabaseTest() bool {
	return GetTestDatabaseURL() == ""
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenSQLite creates a migrated SQLite database in a temp directory. It is
// closed when the test ends.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "data", "chapterq.db"))
	require.NoError(t, err, "Failed to open SQLite database")
	t.Cleanup(func() { CleanupDB(t, db) })

	require.NoError(t,
		migrations.Run(ctx, db, "sqlite", migrations.CommandUp, discardLogger()),
		"Failed to run migrations")
	return db
}

// OpenPostgres connects to the database named by DatabaseURLEnv and applies
// migrations, skipping the test when the variable is unset.
func OpenPostgres(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skipf("%s not set - skipping PostgreSQL integration test", DatabaseURLEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, dbURL)
	require.NoError(t, err, "Failed to open database connection")
	t.Cleanup(func() { CleanupDB(t, db) })

	require.NoError(t,
		migrations.Run(ctx, db, "postgres", migrations.CommandUp, discardLogger()),
		"Failed to run migrations")
	return db
}

// WithTx executes a test function within a transaction, automatically rolling back
// after the test completes. This ensures test isolation and prevents side effects.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "Failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		// sql.ErrTxDone is expected if tx is already committed or rolled back
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}

// CleanupDB closes a database connection, logging any errors.
func CleanupDB(t *testing.T, db *sql.DB) {
	t.Helper()
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		t.Logf("Warning: failed to close database connection: %v", err)
	}
}
