// Package storage persists analysis outputs and the run ledger.
//
// Information Hiding:
// - SQLite connection management hidden behind SqliteLedger
// - Schema and time encoding encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// RunStatus is the outcome recorded for a run.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusError   RunStatus = "error"
)

// RunRecord is one row of the run ledger.
type RunRecord struct {
	RunID           string
	Repository      string
	Model           string
	Status          RunStatus
	ErrorKind       string // empty on success
	Stage           string // failing stage, empty on success
	OutputPath      string
	FilesTotal      int
	FilesAnalyzed   int
	SelectionMethod string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SqliteLedger records every analysis run in a SQLite database file.
// The ledger is write-mostly: analyses never read it.
type SqliteLedger struct {
	db *sql.DB
}

// OpenSqlite opens or creates a ledger at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteLedger, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newLedger(db)
}

// NewSqliteInMemory creates an in-memory ledger (useful for testing).
func NewSqliteInMemory() (*SqliteLedger, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newLedger(db)
}

func newLedger(db *sql.DB) (*SqliteLedger, error) {
	ledger := &SqliteLedger{db: db}
	if err := ledger.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return ledger, nil
}

// Close closes the database connection.
func (s *SqliteLedger) Close() error {
	return s.db.Close()
}

func (s *SqliteLedger) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			repository TEXT NOT NULL,
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			stage TEXT,
			output_path TEXT,
			files_total INTEGER NOT NULL DEFAULT 0,
			files_analyzed INTEGER NOT NULL DEFAULT 0,
			selection_method TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started
		ON runs(started_at DESC);

		CREATE INDEX IF NOT EXISTS idx_runs_repository
		ON runs(repository, started_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordRun inserts or replaces a run. An empty RunID is assigned a new UUID,
// which is returned.
func (s *SqliteLedger) RecordRun(ctx context.Context, rec RunRecord) (string, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusSuccess
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(run_id, repository, model, status, error_kind, stage, output_path,
		 files_total, files_analyzed, selection_method, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Repository,
		rec.Model,
		string(rec.Status),
		nullable(rec.ErrorKind),
		nullable(rec.Stage),
		nullable(rec.OutputPath),
		rec.FilesTotal,
		rec.FilesAnalyzed,
		nullable(rec.SelectionMethod),
		rec.StartedAt.UnixMilli(),
		rec.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return rec.RunID, nil
}

const runColumns = `run_id, repository, model, status, error_kind, stage, output_path,
	files_total, files_analyzed, selection_method, started_at, finished_at`

// ListRuns returns the most recent runs, newest first. A limit <= 0 returns
// every run. A non-empty repository restricts the list to that repository.
func (s *SqliteLedger) ListRuns(ctx context.Context, repository string, limit int) ([]RunRecord, error) {
	query := "SELECT " + runColumns + " FROM runs"
	var args []any
	if repository != "" {
		query += " WHERE repository = ?"
		args = append(args, repository)
	}
	query += " ORDER BY started_at DESC, run_id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{} // Start with empty slice, not nil
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run. The bool is false when no such run exists.
func (s *SqliteLedger) GetRun(ctx context.Context, runID string) (RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE run_id = ?", runID)
	rec, err := scanRun(row)
	if err == sql.ErrNoRows {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, err
	}
	return rec, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var status string
	var errorKind, stage, outputPath, method sql.NullString
	var started, finished int64
	err := row.Scan(
		&rec.RunID, &rec.Repository, &rec.Model, &status,
		&errorKind, &stage, &outputPath,
		&rec.FilesTotal, &rec.FilesAnalyzed, &method,
		&started, &finished,
	)
	if err == sql.ErrNoRows {
		return rec, err
	}
	if err != nil {
		return rec, fmt.Errorf("failed to scan run: %w", err)
	}
	rec.Status = RunStatus(status)
	rec.ErrorKind = errorKind.String
	rec.Stage = stage.String
	rec.OutputPath = outputPath.String
	rec.SelectionMethod = method.String
	rec.StartedAt = time.UnixMilli(started)
	rec.FinishedAt = time.UnixMilli(finished)
	return rec, nil
}

// nullable converts empty strings to NULL for optional columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
