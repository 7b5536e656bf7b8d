package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// TableName is the goose version-tracking table.
const TableName = "schema_migrations"

// migrationsDir is the directory inside the embedded filesystem.
const migrationsDir = "sql"

// Supported migration commands.
const (
	CommandUp      = "up"
	CommandDown    = "down"
	CommandReset   = "reset"
	CommandStatus  = "status"
	CommandVersion = "version"
)

// ErrUnknownCommand is returned for a command goose is not asked to run.
var ErrUnknownCommand = errors.New("unknown migration command")

// ErrUnsupportedDriver is returned for a database driver without a goose dialect.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// goose keeps its dialect, table name and filesystem in package globals.
var gooseMu sync.Mutex

// Commands lists the accepted migration commands.
func Commands() []string {
	return []string{CommandUp, CommandDown, CommandReset, CommandStatus, CommandVersion}
}

// Dialect maps a configured database driver to its goose dialect.
func Dialect(driver string) (goose.Dialect, error) {
	switch driver {
	case "postgres":
		return goose.DialectPostgres, nil
	case "sqlite":
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Run executes a goose command against db using the embedded migrations.
func Run(ctx context.Context, db *sql.DB, driver, command string, logger *slog.Logger) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}

	logger = logger.With("component", "migrations", "command", command, "driver", driver)

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(&slogGooseLogger{logger: logger})
	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)
	goose.SetTableName(TableName)
	if err := goose.SetDialect(string(dialect)); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	start := time.Now()
	logger.Info("starting migration command")

	switch command {
	case CommandUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case CommandDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case CommandReset:
		err = goose.ResetContext(ctx, db, migrationsDir)
	case CommandStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	case CommandVersion:
		err = goose.VersionContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("%w: %s (expected one of %v)", ErrUnknownCommand, command, Commands())
	}

	if err != nil {
		logger.Error("migration command failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	logger.Info("migration command completed",
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// slogGooseLogger adapts the goose logger interface to use slog
type slogGooseLogger struct {
	logger *slog.Logger
}

// Printf implements the goose.Logger Printf method by forwarding messages to slog.Info
func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf implements the goose.Logger Fatalf method by forwarding error messages to slog.Error.
// Unlike the standard Fatalf it does not exit; the error is returned to the caller.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
