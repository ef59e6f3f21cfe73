// Package sqlite opens the database/sql handle backing the persistence
// DAO, using the pure-Go modernc.org/sqlite driver by default — mirroring
// the teacher's internal/memory/backend/sqlitevec/backend.go, which
// opens the same driver under the registered name "sqlite3". A
// cgo-tagged alternate driver (github.com/mattn/go-sqlite3) is also
// present in the teacher's go.mod side by side with modernc.org/sqlite;
// see driver_cgo.go for the build-tag-gated swap.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Config configures the SQLite connection.
type Config struct {
	Path            string
	MaxOpenConns    int
	BusyTimeout     time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig mirrors the teacher's CockroachConfig-style defaults,
// scaled down for a single-writer embedded database.
func DefaultConfig() Config {
	return Config{
		Path:           "gtplanner.db",
		MaxOpenConns:   1, // single-writer discipline per §4.5
		BusyTimeout:    5 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}
}

// Open opens (creating if absent) the SQLite database at cfg.Path and
// pings it before returning, matching the teacher's NewCockroachStore
// ping-with-timeout idiom.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultConfig().BusyTimeout
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConfig().ConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", cfg.Path, err)
	}
	return db, nil
}
