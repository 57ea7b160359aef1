package ledger

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	if err := InitSchema(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nested", "ingest.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected parent dir created: %v", err)
	}
}

func TestInitSchema(t *testing.T) {
	db := testDB(t)

	tables := map[string]bool{}
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name IN ('events','runs','outputs')`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatal(err)
		}
		tables[name] = true
	}

	for _, want := range []string{"events", "runs", "outputs"} {
		if !tables[want] {
			t.Errorf("table %q not created", want)
		}
	}

	// Idempotent.
	if err := InitSchema(db); err != nil {
		t.Fatalf("second InitSchema failed: %v", err)
	}
}

func TestLogEvent_Basic(t *testing.T) {
	db := testDB(t)

	id1, err := LogEvent(db, "run-1", nil, EventRunStarted, map[string]any{"source": "spam.csv"})
	if err != nil {
		t.Fatal(err)
	}
	if id1 <= 0 {
		t.Errorf("expected positive id, got %d", id1)
	}

	id2, err := LogEvent(db, "run-1", &id1, EventSourceLoaded, map[string]any{"rows": 3})
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Errorf("expected id2 > id1, got %d <= %d", id2, id1)
	}

	if _, err := LogEvent(db, "", nil, EventInterruptedRunClosed, nil); err != nil {
		t.Fatal(err)
	}

	events, err := ListEvents(db, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for run-1, got %d", len(events))
	}
	if events[0].EventType != EventRunStarted || events[1].EventType != EventSourceLoaded {
		t.Fatalf("unexpected event order: %s, %s", events[0].EventType, events[1].EventType)
	}
	if events[0].Timestamp == 0 {
		t.Error("expected non-zero timestamp")
	}
	if events[0].ParentID.Valid {
		t.Errorf("expected NULL parent for root event, got %d", events[0].ParentID.Int64)
	}
	if !events[1].ParentID.Valid || events[1].ParentID.Int64 != id1 {
		t.Errorf("expected parent_id=%d, got %+v", id1, events[1].ParentID)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(events[1].Payload.String), &payload); err != nil {
		t.Fatalf("invalid payload JSON: %v", err)
	}
	if payload["rows"] != float64(3) {
		t.Errorf("expected rows=3, got %v", payload["rows"])
	}
}

func TestLogEvent_NilPayload(t *testing.T) {
	db := testDB(t)
	id, err := LogEvent(db, "run-1", nil, EventRunCompleted, nil)
	if err != nil {
		t.Fatal(err)
	}
	var payload sql.NullString
	if err := db.QueryRow(`SELECT payload FROM events WHERE id = ?`, id).Scan(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Valid {
		t.Errorf("expected NULL payload, got %q", payload.String)
	}
}
