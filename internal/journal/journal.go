// Package journal persists the operation history backed by SQLite. Every
// create, verify, extract, and repair run is recorded with its outcome so
// an operator can answer "when was this archive last checked, and did it
// pass" without re-running anything.
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

// Operation names as stored in the journal.
const (
	OpCreate  = "create"
	OpVerify  = "verify"
	OpExtract = "extract"
	OpRepair  = "repair"
)

// Outcome values as stored in the journal.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one journal row.
type Entry struct {
	ID          int64
	Operation   string
	Archive     string
	SourcePath  string
	Destination string
	Outcome     string
	Detail      string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is the wall-clock span of the operation.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Store manages journal persistence.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database and applies
// migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one entry and returns its ID.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO operations (
            operation, archive, source_path, destination, outcome, detail,
            started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Operation,
		entry.Archive,
		nullableString(entry.SourcePath),
		nullableString(entry.Destination),
		entry.Outcome,
		nullableString(entry.Detail),
		entry.StartedAt.UTC().Format(time.RFC3339Nano),
		entry.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// List returns entries newest first. archive filters by name when non-empty;
// limit caps the result when positive.
func (s *Store) List(ctx context.Context, archive string, limit int) ([]Entry, error) {
	query := `SELECT id, operation, archive, source_path, destination, outcome, detail,
            started_at, finished_at FROM operations`
	args := []any{}
	if archive != "" {
		query += " WHERE archive = ?"
		args = append(args, archive)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// LastVerification returns the most recent verify entry for the archive,
// or nil if it was never verified.
func (s *Store) LastVerification(ctx context.Context, archive string) (*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, archive, source_path, destination, outcome, detail,
            started_at, finished_at
        FROM operations WHERE archive = ? AND operation = ?
        ORDER BY id DESC LIMIT 1`,
		archive, OpVerify)
	if err != nil {
		return nil, fmt.Errorf("query last verification: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	entry, err := scanEntry(rows)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var entry Entry
	var source, destination, detail sql.NullString
	var started, finished string
	if err := rows.Scan(&entry.ID, &entry.Operation, &entry.Archive, &source,
		&destination, &entry.Outcome, &detail, &started, &finished); err != nil {
		return Entry{}, fmt.Errorf("scan journal entry: %w", err)
	}
	entry.SourcePath = source.String
	entry.Destination = destination.String
	entry.Detail = detail.String

	var err error
	if entry.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Entry{}, fmt.Errorf("parse started_at: %w", err)
	}
	if entry.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Entry{}, fmt.Errorf("parse finished_at: %w", err)
	}
	return entry, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
