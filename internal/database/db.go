package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// New opens the PostgreSQL pool the triage store runs on
func New(databaseURL string, logger zerolog.Logger) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if !strings.HasPrefix(databaseURL, "postgres") {
		return nil, fmt.Errorf("DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Int("max_open_conns", 10).
		Msg("Database connection established")

	return db, nil
}

// ExecuteReadOnlyQuery runs a select inside a transaction that is always
// rolled back
func ExecuteReadOnlyQuery(ctx context.Context, db *sqlx.DB, dest interface{}, query string, args ...interface{}) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read-only transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := tx.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("failed to execute read-only query: %w", err)
	}
	return nil
}

// Ping checks the connection with a trivial query and reports its latency
func Ping(ctx context.Context, db *sqlx.DB) (time.Duration, error) {
	start := time.Now()

	var result int
	if err := db.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return time.Since(start), fmt.Errorf("failed to execute ping query: %w", err)
	}
	return time.Since(start), nil
}
