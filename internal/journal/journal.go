// Package journal persists per-run summaries to SQLite so repeated
// migrations can be audited after the fact.
package journal

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vmunix/plexmirror/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Journal is an append-only log of completed runs.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at the given path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append persists one run summary and returns its ID.
func (j *Journal) Append(s *engine.Summary) (int64, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return 0, fmt.Errorf("marshal summary: %w", err)
	}

	result, err := j.db.Exec(`
		INSERT INTO runs (
			started_at, finished_at, dry_run,
			playlists_created, playlists_replaced, playlists_failed,
			collections_created, collections_updated, collections_failed,
			items_bulk, items_fallback, items_failed,
			unmatched, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.StartedAt.UTC().Format(time.RFC3339), s.FinishedAt.UTC().Format(time.RFC3339), s.DryRun,
		s.PlaylistsCreated, s.PlaylistsReplaced, s.PlaylistsFailed,
		s.CollectionsCreated, s.CollectionsUpdated, s.CollectionsFailed,
		s.ItemsBulk, s.ItemsFallback, s.ItemsFailed,
		len(s.Unmatched), string(payload),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	return result.LastInsertId()
}

// Entry is one persisted run.
type Entry struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	ItemsBulk  int
	Unmatched  int
	Summary    string
}

// Recent returns the most recent runs, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.Query(`
		SELECT id, started_at, finished_at, dry_run, items_bulk, unmatched, summary
		FROM runs
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started, finished string
		if err := rows.Scan(&e.ID, &started, &finished, &e.DryRun, &e.ItemsBulk, &e.Unmatched, &e.Summary); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.StartedAt, _ = time.Parse(time.RFC3339, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
