package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Event type constants
const (
	EventRunStarted           = "run.started"
	EventSourceLoaded         = "source.loaded"
	EventDatasetPreprocessed  = "dataset.preprocessed"
	EventDatasetSplit         = "dataset.split"
	EventOutputsPersisted     = "outputs.persisted"
	EventRunCompleted         = "run.completed"
	EventRunFailed            = "run.failed"
	EventInterruptedRunClosed = "run.interrupted"
)

// Event is one row of the events table.
type Event struct {
	ID        int64
	RunID     sql.NullString
	ParentID  sql.NullInt64
	Timestamp int64
	EventType string
	Payload   sql.NullString
}

// Open opens (or creates) the ledger database at the given path, ensuring
// that the parent directory exists.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger at %s: %w", path, err)
	}

	return db, nil
}

// InitSchema creates all tables: events, runs, outputs.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY,
			timestamp INTEGER NOT NULL DEFAULT (unixepoch()),
			run_id TEXT,
			parent_id INTEGER,
			event_type TEXT NOT NULL,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
		CREATE INDEX IF NOT EXISTS idx_events_parent_id ON events(parent_id);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			data_dir TEXT NOT NULL,
			test_size REAL NOT NULL,
			seed INTEGER NOT NULL,
			status TEXT NOT NULL,
			input_rows INTEGER,
			train_rows INTEGER,
			test_rows INTEGER,
			last_error TEXT,
			started_at INTEGER NOT NULL DEFAULT (unixepoch()),
			finished_at INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_runs_status_started_at ON runs(status, started_at);

		CREATE TABLE IF NOT EXISTS outputs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			rows INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			sha256 TEXT NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
		CREATE INDEX IF NOT EXISTS idx_outputs_run_id ON outputs(run_id);
	`)
	return err
}

// LogEvent inserts an event and returns its auto-generated id. runID may be
// empty and parentID nil for process-level events. payload is serialized to
// JSON; nil payload stores NULL.
func LogEvent(db *sql.DB, runID string, parentID *int64, eventType string, payload map[string]any) (int64, error) {
	var payloadJSON any
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal event payload: %w", err)
		}
		payloadJSON = string(data)
	}

	res, err := db.Exec(
		`INSERT INTO events (run_id, parent_id, event_type, payload) VALUES (?, ?, ?, ?)`,
		nullIfEmpty(runID), parentID, eventType, payloadJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event %s: %w", eventType, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get event id: %w", err)
	}
	return id, nil
}

// ListEvents returns the events of one run in insertion order.
func ListEvents(db *sql.DB, runID string) ([]Event, error) {
	rows, err := db.Query(
		`SELECT id, run_id, parent_id, timestamp, event_type, payload
		   FROM events
		  WHERE run_id = ?
		  ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RunID, &e.ParentID, &e.Timestamp, &e.EventType, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
