package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    var_file            TEXT NOT NULL,
    mapping_source      TEXT NOT NULL,
    cloud               TEXT,
    mode                TEXT NOT NULL,
    started_at          DATETIME NOT NULL,
    finished_at         DATETIME,
    missing_mapping     INTEGER DEFAULT 0,
    text_mismatch       INTEGER DEFAULT 0,
    missing_description INTEGER DEFAULT 0,
    unsupported         INTEGER DEFAULT 0,
    status              TEXT DEFAULT 'running'
);

CREATE INDEX IF NOT EXISTS idx_runs_var_file ON runs(var_file);
`

// Run is one recorded invocation of the tool.
type Run struct {
	ID                 int64
	VarFile            string
	MappingSource      string
	Cloud              string
	Mode               string // "check", "patch", "inplace"
	StartedAt          time.Time
	FinishedAt         *time.Time
	MissingMapping     int
	TextMismatch       int
	MissingDescription int
	Unsupported        int
	Status             string
}

// Total returns the number of discrepancies the run found.
func (r Run) Total() int {
	return r.MissingMapping + r.TextMismatch + r.MissingDescription + r.Unsupported
}

// Store keeps run history in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a SQLite-backed history store.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return &Store{db: db}, nil
}

// Init creates the database schema if it doesn't exist.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a new run record and returns its ID.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (var_file, mapping_source, cloud, mode, started_at, status) VALUES (?, ?, ?, ?, ?, ?)
	`, run.VarFile, run.MappingSource, run.Cloud, run.Mode, run.StartedAt.Format(time.RFC3339), run.Status)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun updates a run record with its final status and per-kind counts.
func (s *Store) FinishRun(ctx context.Context, id int64, status string, missingMapping, textMismatch, missingDescription, unsupported int) error {
	now := time.Now().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, missing_mapping = ?, text_mismatch = ?, missing_description = ?, unsupported = ?, finished_at = ? WHERE id = ?
	`, status, missingMapping, textMismatch, missingDescription, unsupported, now, id)
	return err
}

// ListRuns returns the most recent run records, up to limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, var_file, mapping_source, cloud, mode, started_at, finished_at,
		       missing_mapping, text_mismatch, missing_description, unsupported, status
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // best-effort cleanup

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.VarFile, &r.MappingSource, &r.Cloud, &r.Mode, &startedAt, &finishedAt,
			&r.MissingMapping, &r.TextMismatch, &r.MissingDescription, &r.Unsupported, &r.Status); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(time.RFC3339, finishedAt.String)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
