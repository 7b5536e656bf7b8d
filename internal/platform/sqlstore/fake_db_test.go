package sqlstore

import (
	"context"
	"database/sql"
	"errors"
)

var errFakeDB = errors.New("fake db")

// fakeDB satisfies store.DBTX for tests that never touch the database.
type fakeDB struct{}

func (fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, errFakeDB
}

func (fakeDB) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return nil, errFakeDB
}

func (fakeDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, errFakeDB
}

func (fakeDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}
