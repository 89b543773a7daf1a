package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all database migrations
func GetMigrations(dialect Dialect) []Migration {
	if dialect == DialectPostgres {
		return getPostgresMigrations()
	}
	return getSQLiteMigrations()
}

func getPostgresMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(64) PRIMARY KEY,
				email VARCHAR(255) UNIQUE NOT NULL,
				password_hash VARCHAR(255) NOT NULL,
				first_name VARCHAR(50) NOT NULL DEFAULT '',
				last_name VARCHAR(50) NOT NULL DEFAULT '',
				mfa_secret VARCHAR(64),
				mfa_enabled BOOLEAN NOT NULL DEFAULT FALSE,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				is_admin BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     2,
			Description: "Create sessions table",
			SQL: `CREATE TABLE IF NOT EXISTS sessions (
				id VARCHAR(64) PRIMARY KEY,
				user_id VARCHAR(64) NOT NULL REFERENCES users(id),
				session_id VARCHAR(64) UNIQUE NOT NULL,
				device_info VARCHAR(255) NOT NULL DEFAULT '',
				ip_address VARCHAR(45) NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				last_active_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				expires_at TIMESTAMP WITH TIME ZONE NOT NULL
			)`,
		},
		{
			Version:     3,
			Description: "Create cards table",
			SQL: `CREATE TABLE IF NOT EXISTS cards (
				id VARCHAR(64) PRIMARY KEY,
				user_id VARCHAR(64) NOT NULL REFERENCES users(id),
				card_holder VARCHAR(100) NOT NULL,
				card_number VARCHAR(19) NOT NULL,
				expiry_date VARCHAR(5) NOT NULL,
				card_type VARCHAR(50) NOT NULL,
				bank_name VARCHAR(100) NOT NULL,
				card_network VARCHAR(20) NOT NULL,
				balance_cents BIGINT NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
				daily_limit_cents BIGINT NOT NULL DEFAULT 500000,
				monthly_limit_cents BIGINT NOT NULL DEFAULT 1500000,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     4,
			Description: "Create transactions table",
			SQL: `CREATE TABLE IF NOT EXISTS transactions (
				id VARCHAR(64) PRIMARY KEY,
				card_id VARCHAR(64) NOT NULL REFERENCES cards(id),
				amount_cents BIGINT NOT NULL,
				merchant VARCHAR(100) NOT NULL,
				category VARCHAR(50) NOT NULL,
				status VARCHAR(20) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     5,
			Description: "Create bills table",
			SQL: `CREATE TABLE IF NOT EXISTS bills (
				id VARCHAR(64) PRIMARY KEY,
				user_id VARCHAR(64) NOT NULL REFERENCES users(id),
				name VARCHAR(100) NOT NULL,
				category VARCHAR(50) NOT NULL,
				amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
				due_date TIMESTAMP WITH TIME ZONE NOT NULL,
				status VARCHAR(20) NOT NULL,
				autopay BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			)`,
		},
		{
			Version:     6,
			Description: "Create indexes",
			SQL: `CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
				CREATE INDEX IF NOT EXISTS idx_cards_user_id ON cards(user_id);
				CREATE INDEX IF NOT EXISTS idx_transactions_card_id ON transactions(card_id);
				CREATE INDEX IF NOT EXISTS idx_bills_user_id ON bills(user_id);
				CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status)`,
		},
	}
}

func getSQLiteMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				first_name TEXT NOT NULL DEFAULT '',
				last_name TEXT NOT NULL DEFAULT '',
				mfa_secret TEXT,
				mfa_enabled BOOLEAN NOT NULL DEFAULT 0,
				is_active BOOLEAN NOT NULL DEFAULT 1,
				is_admin BOOLEAN NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
		},
		{
			Version:     2,
			Description: "Create sessions table",
			SQL: `CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				session_id TEXT UNIQUE NOT NULL,
				device_info TEXT NOT NULL DEFAULT '',
				ip_address TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				last_active_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
		{
			Version:     3,
			Description: "Create cards table",
			SQL: `CREATE TABLE IF NOT EXISTS cards (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				card_holder TEXT NOT NULL,
				card_number TEXT NOT NULL,
				expiry_date TEXT NOT NULL,
				card_type TEXT NOT NULL,
				bank_name TEXT NOT NULL,
				card_network TEXT NOT NULL,
				balance_cents INTEGER NOT NULL DEFAULT 0 CHECK (balance_cents >= 0),
				daily_limit_cents INTEGER NOT NULL DEFAULT 500000,
				monthly_limit_cents INTEGER NOT NULL DEFAULT 1500000,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
		{
			Version:     4,
			Description: "Create transactions table",
			SQL: `CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				card_id TEXT NOT NULL,
				amount_cents INTEGER NOT NULL,
				merchant TEXT NOT NULL,
				category TEXT NOT NULL,
				status TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (card_id) REFERENCES cards(id)
			)`,
		},
		{
			Version:     5,
			Description: "Create bills table",
			SQL: `CREATE TABLE IF NOT EXISTS bills (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				category TEXT NOT NULL,
				amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
				due_date DATETIME NOT NULL,
				status TEXT NOT NULL,
				autopay BOOLEAN NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				FOREIGN KEY (user_id) REFERENCES users(id)
			)`,
		},
		{
			Version:     6,
			Description: "Create indexes",
			SQL: `CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
				CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
				CREATE INDEX IF NOT EXISTS idx_cards_user_id ON cards(user_id);
				CREATE INDEX IF NOT EXISTS idx_transactions_card_id ON transactions(card_id);
				CREATE INDEX IF NOT EXISTS idx_bills_user_id ON bills(user_id);
				CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status)`,
		},
	}
}

// createMigrationsTable creates the migrations tracking table
func createMigrationsTable(ctx context.Context, db *DB) error {
	query := `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if db.Dialect == DialectPostgres {
		query = `CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`
	}

	_, err := db.ExecContext(ctx, query)
	return err
}

// getAppliedMigrations returns the set of applied migration versions
func getAppliedMigrations(ctx context.Context, db *DB) (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return applied, err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return applied, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// RunMigrations applies every pending migration, each in its own transaction.
func RunMigrations(ctx context.Context, db *DB, logger zerolog.Logger) error {
	if err := createMigrationsTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range GetMigrations(db.Dialect) {
		if applied[migration.Version] {
			continue
		}

		logger.Info().
			Int("version", migration.Version).
			Str("description", migration.Description).
			Msg("applying migration")

		if err := applyMigration(ctx, db, migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, db *DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Split SQL by semicolon and execute each statement
	for _, stmt := range strings.Split(migration.SQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, db.Rebind("INSERT INTO schema_migrations (version) VALUES (?)"), migration.Version); err != nil {
		return err
	}
	return tx.Commit()
}

