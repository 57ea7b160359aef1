package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

var (
	ErrRunNotFound          = errors.New("run not found")
	ErrInvalidStatusTransit = errors.New("invalid run status transition")
)

type Run struct {
	ID         string
	Source     string
	DataDir    string
	TestSize   float64
	Seed       int64
	Status     string
	InputRows  sql.NullInt64
	TrainRows  sql.NullInt64
	TestRows   sql.NullInt64
	LastError  sql.NullString
	StartedAt  int64
	FinishedAt sql.NullInt64
}

// Counts carries the row counts recorded when a run finishes.
type Counts struct {
	Input int
	Train int
	Test  int
}

// Output is one file written by a run.
type Output struct {
	ID        int64
	RunID     string
	Name      string
	Path      string
	Rows      int64
	Bytes     int64
	SHA256    string
	CreatedAt int64
}

var runStatusTransitions = map[string]map[string]struct{}{
	RunStatusRunning: {
		RunStatusSucceeded: struct{}{},
		RunStatusFailed:    struct{}{},
	},
}

func IsValidRunStatusTransition(from, to string) bool {
	next, ok := runStatusTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// StartRun inserts a run in the running state.
func StartRun(database *sql.DB, id, source, dataDir string, testSize float64, seed int64) error {
	id = strings.TrimSpace(id)
	source = strings.TrimSpace(source)
	if id == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if source == "" {
		return fmt.Errorf("source cannot be empty")
	}
	_, err := database.Exec(
		`INSERT INTO runs (id, source, data_dir, test_size, seed, status) VALUES (?, ?, ?, ?, ?, ?)`,
		id, source, dataDir, testSize, seed, RunStatusRunning,
	)
	return err
}

// FinishRun moves a running run to toStatus. It reports false when the run
// was not in the running state.
func FinishRun(database *sql.DB, id, toStatus string, counts Counts, lastError string) (bool, error) {
	if !IsValidRunStatusTransition(RunStatusRunning, toStatus) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransit, RunStatusRunning, toStatus)
	}
	res, err := database.Exec(
		`UPDATE runs
		    SET status = ?, input_rows = ?, train_rows = ?, test_rows = ?,
		        last_error = ?, finished_at = unixepoch()
		  WHERE id = ? AND status = ?`,
		toStatus, nullIfZero(counts.Input), nullIfZero(counts.Train), nullIfZero(counts.Test),
		nullIfEmpty(truncateForDB(lastError)), id, RunStatusRunning,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const runColumns = `id, source, data_dir, test_size, seed, status, input_rows, train_rows, test_rows,
		        last_error, started_at, finished_at`

func scanRun(s interface{ Scan(...any) error }) (*Run, error) {
	var r Run
	if err := s.Scan(
		&r.ID, &r.Source, &r.DataDir, &r.TestSize, &r.Seed, &r.Status,
		&r.InputRows, &r.TrainRows, &r.TestRows, &r.LastError, &r.StartedAt, &r.FinishedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

func GetRun(database *sql.DB, id string) (*Run, error) {
	r, err := scanRun(database.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns the most recent runs first.
func ListRuns(database *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := database.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CleanupInterruptedRuns fails every run still marked running. It is meant
// to be called at startup, before a new run begins.
func CleanupInterruptedRuns(database *sql.DB) (int64, error) {
	res, err := database.Exec(
		`UPDATE runs
		    SET status = ?, finished_at = unixepoch(),
		        last_error = 'interrupted before completion'
		  WHERE status = ?`,
		RunStatusFailed, RunStatusRunning,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func RecordOutput(database *sql.DB, o Output) error {
	if strings.TrimSpace(o.RunID) == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	if strings.TrimSpace(o.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	_, err := database.Exec(
		`INSERT INTO outputs (run_id, name, path, rows, bytes, sha256) VALUES (?, ?, ?, ?, ?, ?)`,
		o.RunID, o.Name, o.Path, o.Rows, o.Bytes, o.SHA256,
	)
	return err
}

func ListOutputs(database *sql.DB, runID string) ([]Output, error) {
	rows, err := database.Query(
		`SELECT id, run_id, name, path, rows, bytes, sha256, created_at
		   FROM outputs
		  WHERE run_id = ?
		  ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Output
	for rows.Next() {
		var o Output
		if err := rows.Scan(&o.ID, &o.RunID, &o.Name, &o.Path, &o.Rows, &o.Bytes, &o.SHA256, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// truncateForDB caps s at 2000 bytes without splitting a UTF-8 sequence.
func truncateForDB(s string) string {
	const max = 2000
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
