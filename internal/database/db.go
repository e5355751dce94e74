package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file created inside the data directory.
const FileName = "oercrawl.db"

// ErrNotFound is returned when the database file is required but missing.
var ErrNotFound = errors.New("database not found")

// ResourceDB is the SQLite store for resources and crawl bookkeeping.
type ResourceDB struct {
	db     *sql.DB
	dbPath string

	// now stamps updated_at and run timestamps.
	now func() time.Time
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and the file when missing.
	CreateIfNotExists bool

	// EnableWAL switches the journal to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the options used by the crawl command.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the database in dbDir.
func Open(dbDir string, opts Options) (*ResourceDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers; the pipeline workers share it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResourceDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Path returns the database file path.
func (r *ResourceDB) Path() string {
	return r.dbPath
}

// Close closes the database.
func (r *ResourceDB) Close() error {
	return r.db.Close()
}

func (r *ResourceDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS resources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		resource_id TEXT NOT NULL,
		context_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		url TEXT NOT NULL,
		origin_page_url TEXT,
		author TEXT,
		provider TEXT,
		resource_type TEXT,
		publication_date TEXT,
		image_url TEXT,
		license_text TEXT,
		license_normalized TEXT NOT NULL,
		license_hints TEXT NOT NULL DEFAULT '[]',
		subjects TEXT NOT NULL DEFAULT '[]',
		education_levels TEXT NOT NULL DEFAULT '[]',
		categories TEXT NOT NULL DEFAULT '[]',
		subject_area TEXT NOT NULL DEFAULT '',
		facet_slug TEXT NOT NULL DEFAULT '',
		rating REAL NOT NULL DEFAULT 0,
		difficulty TEXT NOT NULL,
		quality_score INTEGER NOT NULL,
		extracted_at TEXT,
		processed_at TEXT,
		first_seen TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(resource_id, context_id)
	);

	CREATE INDEX IF NOT EXISTS idx_resources_score ON resources(quality_score);
	CREATE INDEX IF NOT EXISTS idx_resources_facet ON resources(facet_slug);

	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		facets INTEGER NOT NULL DEFAULT 0,
		pages INTEGER NOT NULL DEFAULT 0,
		failed_pages INTEGER NOT NULL DEFAULT 0,
		accepted INTEGER NOT NULL DEFAULT 0,
		rejected INTEGER NOT NULL DEFAULT 0,
		sink_failures INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);

	CREATE TABLE IF NOT EXISTS crawl_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id),
		url TEXT NOT NULL,
		facet_slug TEXT NOT NULL,
		page INTEGER NOT NULL,
		status_code INTEGER,
		records INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		fetched_at TEXT NOT NULL,
		UNIQUE(run_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON crawl_pages(run_id);
	`

	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time for empty or unknown formats.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
