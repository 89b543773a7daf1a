package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/finsec-io/finsec-api/internal/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Dialect identifies the SQL flavour behind a connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a connection pool paired with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the configured database and runs pending migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch Dialect(cfg.Type) {
	case DialectPostgres:
		conn, err = openPostgres(cfg, logger)
	case DialectSQLite, "":
		conn, err = openSQLite(cfg.Path, logger)
		cfg.Type = string(DialectSQLite)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{DB: conn, Dialect: Dialect(cfg.Type)}
	if err := RunMigrations(ctx, db, logger); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Str("dialect", cfg.Type).Msg("database initialized")
	return db, nil
}

// OpenSQLite is a shortcut used by tools and tests.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*DB, error) {
	return Open(ctx, config.DatabaseConfig{Type: string(DialectSQLite), Path: path}, logger)
}

func openPostgres(cfg config.DatabaseConfig, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Name).
		Str("user", cfg.User).
		Msg("connecting to PostgreSQL")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

func openSQLite(path string, logger zerolog.Logger) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// _txlock=immediate takes the write lock at BEGIN so payment units of work serialize.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	logger.Info().Str("path", path).Msg("opening SQLite database")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// Rebind rewrites "?" placeholders into the dialect's bind syntax.
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ForUpdate returns the row-locking suffix for SELECTs inside a transaction.
// SQLite locks the whole database for the writer, so it needs none.
func (db *DB) ForUpdate() string {
	return ForUpdate(db.Dialect)
}

func ForUpdate(dialect Dialect) string {
	if dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}
