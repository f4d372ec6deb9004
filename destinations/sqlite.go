package destinations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/sluicekit/sluice/core"
)

// SQLite persists events to a local relational table. Accept is one insert;
// AcceptBatch wraps a batch in a single transaction. Use it behind a
// buffered sink for write-heavy workloads.
type SQLite struct {
	db   *sql.DB
	path string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp  TEXT NOT NULL,
	level      TEXT NOT NULL,
	message    TEXT NOT NULL,
	template   TEXT NOT NULL,
	exception  TEXT,
	properties TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_level ON events(level);`

// NewSQLite opens (creating if necessary) the database at path and applies
// the events schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// Accept inserts one event row.
func (s *SQLite) Accept(event *core.Event) error {
	args, err := insertArgs(event)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`INSERT INTO events (timestamp, level, message, template, exception, properties)
		 VALUES (?, ?, ?, ?, ?, ?)`, args...); err != nil {
		return core.NewDeliveryError(core.ErrCodeWriteFailed, "insert event: %v", err)
	}
	return nil
}

// AcceptBatch inserts the batch in one transaction.
func (s *SQLite) AcceptBatch(events []*core.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return core.NewDeliveryError(core.ErrCodeWriteFailed, "begin batch: %v", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO events (timestamp, level, message, template, exception, properties)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return core.NewDeliveryError(core.ErrCodeWriteFailed, "prepare batch insert: %v", err)
	}
	defer stmt.Close()

	for _, event := range events {
		args, err := insertArgs(event)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(args...); err != nil {
			return core.NewDeliveryError(core.ErrCodeWriteFailed, "insert event: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.NewDeliveryError(core.ErrCodeWriteFailed, "commit batch: %v", err)
	}
	return nil
}

func insertArgs(event *core.Event) ([]any, error) {
	var exception any
	if event.Exception != nil {
		exception = event.Exception.Error()
	}
	var properties any
	if len(event.Properties) > 0 {
		encoded, err := json.Marshal(event.Properties)
		if err != nil {
			return nil, core.NewDeliveryError(core.ErrCodeRejected, "encode properties: %v", err)
		}
		properties = string(encoded)
	}
	return []any{
		event.Timestamp.Format("2006-01-02T15:04:05.000000000Z07:00"),
		event.Level.String(),
		event.RenderedMessage,
		event.MessageTemplate,
		exception,
		properties,
	}, nil
}

// Probe verifies the database answers within the deadline.
func (s *SQLite) Probe(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Flush is a no-op: inserts are durable on return (WAL).
func (s *SQLite) Flush(ctx context.Context) core.FlushResult {
	return core.FlushOK
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Count returns the number of stored rows; used by tests and maintenance
// tooling.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}
