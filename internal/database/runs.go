package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunStatusRunning     = "running"
	RunStatusCompleted   = "completed"
	RunStatusInterrupted = "interrupted"
)

// Run is a crawl_runs row.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Facets       int
	Pages        int
	FailedPages  int
	Accepted     int
	Rejected     int
	SinkFailures int
	Status       string
}

// RunResult holds the counters written by FinishRun.
type RunResult struct {
	Pages        int
	FailedPages  int
	Accepted     int
	Rejected     int
	SinkFailures int
	Status       string
}

// PageRecord is one fetched index page of a run.
type PageRecord struct {
	RunID      string
	URL        string
	FacetSlug  string
	Page       int
	StatusCode int
	Records    int
	Skipped    int
	Err        error
	Duration   time.Duration
}

// StartRun inserts a running crawl_runs row.
func (r *ResourceDB) StartRun(ctx context.Context, runID string, facets int) error {
	query := `INSERT INTO crawl_runs (id, started_at, facets, status) VALUES (?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, runID, formatTimestamp(r.now()), facets, RunStatusRunning); err != nil {
		return fmt.Errorf("failed to start run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (r *ResourceDB) FinishRun(ctx context.Context, runID string, result RunResult) error {
	status := result.Status
	if status == "" {
		status = RunStatusCompleted
	}

	query := `
	UPDATE crawl_runs SET
		finished_at = ?,
		pages = ?,
		failed_pages = ?,
		accepted = ?,
		rejected = ?,
		sink_failures = ?,
		status = ?
	WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		formatTimestamp(r.now()),
		result.Pages,
		result.FailedPages,
		result.Accepted,
		result.Rejected,
		result.SinkFailures,
		status,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun returns a run, or nil, nil when it does not exist.
func (r *ResourceDB) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
	SELECT id, started_at, finished_at, facets, pages, failed_pages, accepted, rejected, sink_failures, status
	FROM crawl_runs WHERE id = ?
	`

	var run Run
	var startedAt string
	var finishedAt sql.NullString
	err := r.db.QueryRowContext(ctx, query, runID).Scan(
		&run.ID,
		&startedAt,
		&finishedAt,
		&run.Facets,
		&run.Pages,
		&run.FailedPages,
		&run.Accepted,
		&run.Rejected,
		&run.SinkFailures,
		&run.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt.String)
	return &run, nil
}

// RecordPage stores one page visit. Visiting the same URL again within a
// run overwrites the earlier row.
func (r *ResourceDB) RecordPage(ctx context.Context, p PageRecord) error {
	var errText sql.NullString
	if p.Err != nil {
		errText = sql.NullString{String: p.Err.Error(), Valid: true}
	}
	var status sql.NullInt64
	if p.StatusCode != 0 {
		status = sql.NullInt64{Int64: int64(p.StatusCode), Valid: true}
	}

	query := `
	INSERT INTO crawl_pages (run_id, url, facet_slug, page, status_code, records, skipped, error, duration_ms, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, url) DO UPDATE SET
		status_code = excluded.status_code,
		records = excluded.records,
		skipped = excluded.skipped,
		error = excluded.error,
		duration_ms = excluded.duration_ms,
		fetched_at = excluded.fetched_at
	`

	_, err := r.db.ExecContext(ctx, query,
		p.RunID,
		p.URL,
		p.FacetSlug,
		p.Page,
		status,
		p.Records,
		p.Skipped,
		errText,
		p.Duration.Milliseconds(),
		formatTimestamp(r.now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record page %s: %w", p.URL, err)
	}
	return nil
}

// CountPages returns the number of pages recorded for a run.
func (r *ResourceDB) CountPages(ctx context.Context, runID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM crawl_pages WHERE run_id = ?", runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}
