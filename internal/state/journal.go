package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is the append-only bootstrap event log backing `courseboot status`.
// All methods are nil-receiver safe so callers can carry a disabled journal
// without guarding every call site.
type Journal struct {
	db *sql.DB
}

// Entry is one journal row.
type Entry struct {
	ID        int64
	RunID     string
	Phase     string
	EventType string
	Detail    string
	CreatedAt time.Time
}

// OpenJournal opens (and if needed creates) the journal database.
// Use ":memory:" for tests.
func OpenJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	// Single writer; also keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		event_type TEXT NOT NULL,
		detail TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append records one event. Disabled journals drop events silently.
func (j *Journal) Append(ctx context.Context, runID, phase, eventType, detail string) error {
	if j == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO events (run_id, phase, event_type, detail, created_at) VALUES (?, ?, ?, ?, ?)",
		runID, phase, eventType, detail, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert journal event: %w", err)
	}
	return nil
}

// Recent returns the newest events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, run_id, phase, event_type, detail, created_at FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal events: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ByRun returns all events of one bootstrap run in order.
func (j *Journal) ByRun(ctx context.Context, runID string) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, run_id, phase, event_type, detail, created_at FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal events: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdUnix int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Phase, &e.EventType, &e.Detail, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan journal event: %w", err)
		}
		e.CreatedAt = time.Unix(createdUnix, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
