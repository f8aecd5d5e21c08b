// Package postgres stores a history of completed estimator runs, adapted
// from the teacher pack's store/postgres.DB connection wrapper. Wiring this
// store is optional: cmd/ctmrun only opens it when CTM_RUN_HISTORY_DSN is
// set.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps *sql.DB the way the teacher pack does, so pool settings are
// configured once at construction.
type DB struct {
	*sql.DB
}

// Config mirrors the subset of the teacher pack's postgres.Config this
// store needs; run-history writes are low-volume so the pool can stay
// small.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// New opens and pings a connection pool against cfg.URL.
func New(cfg Config) (*DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 5
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// EnsureSchema creates the run_history table if it does not already exist.
// Kept inline (rather than a migrations directory) since this store has
// exactly one table.
func (db *DB) EnsureSchema() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS run_history (
			id                 BIGSERIAL PRIMARY KEY,
			n_states           INTEGER NOT NULL,
			max_runtime_steps  BIGINT NOT NULL,
			enumeration        TEXT NOT NULL,
			blank_symbol       SMALLINT NOT NULL,
			halting_total      BIGINT NOT NULL,
			non_halting_total  BIGINT NOT NULL,
			distinct_outputs   INTEGER NOT NULL,
			completion_applied BOOLEAN NOT NULL,
			started_at         TIMESTAMPTZ NOT NULL,
			finished_at        TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}
