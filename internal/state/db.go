// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
//
// The database is an audit mirror of the custodian's event trail and counter
// snapshots. It is never read back to drive an operation; the external token
// ledgers stay the only source of truth for funds.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		-- Append-only receipt per emitted vault event. Amounts are stored as
		-- NUMERIC(78, 0): wide enough for any uint256-denominated value.
		CREATE TABLE IF NOT EXISTS vault_events (
			receipt_id SERIAL PRIMARY KEY,
			event_id UUID NOT NULL UNIQUE,
			event_type VARCHAR(32) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			destination VARCHAR(64),
			total_deposited NUMERIC(78, 0) NOT NULL,
			total_withdrawn NUMERIC(78, 0) NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_vault_events_type ON vault_events(event_type);

		-- Single-row snapshot of the two cumulative counters.
		CREATE TABLE IF NOT EXISTS vault_totals (
			id INTEGER PRIMARY KEY DEFAULT 1,
			total_deposited NUMERIC(78, 0) NOT NULL DEFAULT 0,
			total_withdrawn NUMERIC(78, 0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO vault_totals (id, total_deposited, total_withdrawn)
		VALUES (1, 0, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured (vault_events, vault_totals).")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
