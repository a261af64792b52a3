// Package manifest stores the subject records and flat slice index of a
// dataset in SQLite, so tools outside this module can address slices
// without rescanning the directory.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tofslices/internal/models"
)

// Source is the part of *dataset.Dataset written to a manifest
type Source interface {
	Root() string
	TestMode() bool
	Subjects() []models.Subject
	Len() int
	Locate(i int) (subject, slice int, err error)
	Identifier(i int) (string, error)
}

// Entry is one row of the flat index
type Entry struct {
	Index      int
	Subject    string
	Slice      int
	Identifier string
}

// Run describes the dataset scan a manifest was written from
type Run struct {
	ID        string
	Root      string
	TestMode  bool
	CreatedAt time.Time
	Length    int
}

// ErrNotFound is returned by Lookup for indices absent from the manifest
var ErrNotFound = errors.New("manifest entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    root TEXT NOT NULL,
    test_mode INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    length INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS subjects (
    position INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    orig_path TEXT NOT NULL,
    pre_path TEXT NOT NULL,
    seg_path TEXT NOT NULL,
    slices INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS entries (
    idx INTEGER PRIMARY KEY,
    subject INTEGER NOT NULL REFERENCES subjects(position),
    slice INTEGER NOT NULL,
    identifier TEXT NOT NULL
);`

// Store is an open manifest database
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the manifest at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Write replaces the manifest content with src and returns the new run
func (s *Store) Write(ctx context.Context, src Source) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Root:      src.Root(),
		TestMode:  src.TestMode(),
		CreatedAt: time.Now().UTC(),
		Length:    src.Len(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{"DELETE FROM entries", "DELETE FROM subjects", "DELETE FROM runs"} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return Run{}, fmt.Errorf("clear manifest: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, root, test_mode, created_at, length) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.TestMode, run.CreatedAt.Format(time.RFC3339Nano), run.Length,
	); err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	subjects := src.Subjects()
	for i, subj := range subjects {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subjects (position, name, orig_path, pre_path, seg_path, slices) VALUES (?, ?, ?, ?, ?, ?)`,
			i, subj.Name, subj.Orig, subj.Pre, subj.Seg, subj.Slices,
		); err != nil {
			return Run{}, fmt.Errorf("insert subject %s: %w", subj.Name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (idx, subject, slice, identifier) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < run.Length; i++ {
		subject, slice, err := src.Locate(i)
		if err != nil {
			return Run{}, err
		}
		id, err := src.Identifier(i)
		if err != nil {
			return Run{}, err
		}
		if _, err := stmt.ExecContext(ctx, i, subject, slice, id); err != nil {
			return Run{}, fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit manifest: %w", err)
	}
	return run, nil
}

// Run returns the run stored in the manifest
func (s *Store) Run(ctx context.Context) (Run, error) {
	var run Run
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, root, test_mode, created_at, length FROM runs LIMIT 1`,
	).Scan(&run.ID, &run.Root, &run.TestMode, &created, &run.Length)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	run.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp: %w", err)
	}
	return run, nil
}

// Lookup returns the entry for flat index i
func (s *Store) Lookup(ctx context.Context, i int) (Entry, error) {
	e := Entry{Index: i}
	err := s.db.QueryRowContext(ctx,
		`SELECT s.name, e.slice, e.identifier
         FROM entries e JOIN subjects s ON s.position = e.subject
         WHERE e.idx = ?`, i,
	).Scan(&e.Subject, &e.Slice, &e.Identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("index %d: %w", i, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("query entry %d: %w", i, err)
	}
	return e, nil
}

// Subjects returns the stored subject records in dataset order
func (s *Store) Subjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, orig_path, pre_path, seg_path, slices FROM subjects ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query subjects: %w", err)
	}
	defer rows.Close()

	var out []models.Subject
	for rows.Next() {
		var subj models.Subject
		if err := rows.Scan(&subj.Name, &subj.Orig, &subj.Pre, &subj.Seg, &subj.Slices); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, subj)
	}
	return out, rows.Err()
}
