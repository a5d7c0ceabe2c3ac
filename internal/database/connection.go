package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned for drivers other than sqlite3 and postgres
var ErrUnsupportedDriver = errors.New("unsupported database driver")

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Connect opens the database and applies pending migrations
func Connect(ctx context.Context, driver, dsn string, log *slog.Logger) (*sqlx.DB, error) {
	if log == nil {
		log = slog.Default()
	}

	var migrationsDir string
	switch driver {
	case DriverSQLite:
		migrationsDir = "migrations/sqlite"
		if dir := sqliteDataDir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case DriverPostgres:
		migrationsDir = "migrations/postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := migrate(ctx, db, driver, migrationsDir, log); err != nil {
		db.Close()
		return nil, err
	}

	log.InfoContext(ctx, "database ready", slog.String("driver", driver))
	return db, nil
}

func migrate(ctx context.Context, db *sqlx.DB, driver, dir string, log *slog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log})
	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// sqliteDataDir returns the directory holding a file based SQLite database, or "" for in-memory databases
func sqliteDataDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return ""
	}
	return dir
}

// statementBuilder returns a squirrel builder using the driver's placeholder style
func statementBuilder(db *sqlx.DB) sq.StatementBuilderType {
	if db.DriverName() == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// gooseLogger routes migration output through slog
type gooseLogger struct {
	log *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrations"))
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrations"))
	os.Exit(1)
}
