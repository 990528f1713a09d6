// Package journal implements the Journal Store (spec §4.9): a single
// ordered, append-only log per record family, backed by one SQLite
// database, the way the teacher's internal/database package wraps
// modernc.org/sqlite with production pragmas.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config configures the underlying SQLite file.
type Config struct {
	Path string
}

// DB wraps the raw connection with the journal's production pragmas.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates (or reopens) the journal database at cfg.Path, applying
// WAL + busy-timeout pragmas tuned for a single-writer, many-reader workload
// (spec §4.9/§5: "writers append under a per-family exclusive lock; readers
// are non-blocking").
func Open(cfg Config) (*DB, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("journal: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create directory: %w", err)
	}

	connStr := absPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", absPath, err)
	}
	conn.SetMaxOpenConns(8)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("journal: ping: %w", err)
	}

	db := &DB{conn: conn, path: absPath}
	if err := db.migrate(ctx); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

const schemaVersion = 1

func (db *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY, ticker TEXT NOT NULL, created_at DATETIME NOT NULL,
			schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY, ticker TEXT NOT NULL, created_at DATETIME NOT NULL,
			final_action TEXT NOT NULL, schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			prediction_id TEXT PRIMARY KEY, closed_at DATETIME NOT NULL,
			schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id TEXT PRIMARY KEY, ticker TEXT NOT NULL, created_at DATETIME NOT NULL,
			open INTEGER NOT NULL, schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agent_logs (
			id TEXT PRIMARY KEY, created_at DATETIME NOT NULL, level TEXT NOT NULL,
			schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_health (
			id TEXT PRIMARY KEY, created_at DATETIME NOT NULL,
			schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learning_cycles (
			id TEXT PRIMARY KEY, created_at DATETIME NOT NULL, committed INTEGER NOT NULL,
			schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS watchlists (
			id TEXT PRIMARY KEY, created_at DATETIME NOT NULL,
			schema_version INTEGER NOT NULL, payload BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_ticker ON decisions(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_ticker ON predictions(ticker)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(open)`,
	}
	for _, s := range stmts {
		if _, err := db.conn.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
