package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/oercrawl/internal/model"
)

// DefaultFeedTemplate names the feed file of a run.
const DefaultFeedTemplate = "oer_feed_{time}.json"

// FeedTimeLayout formats the {time} placeholder.
const FeedTimeLayout = "20060102T150405"

// ErrFeedClosed is returned by Write after Close.
var ErrFeedClosed = errors.New("feed closed")

// FeedPath expands the {time} and {run} placeholders of template.
func FeedPath(template string, start time.Time, runID string) string {
	if template == "" {
		template = DefaultFeedTemplate
	}
	return strings.NewReplacer(
		"{time}", start.Format(FeedTimeLayout),
		"{run}", runID,
	).Replace(template)
}

// FeedWriter streams records as one JSON array: UTF-8, two-space indent,
// HTML characters left unescaped. It is safe for concurrent use and the
// array is well-formed after Close even when no record was written.
type FeedWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	count  int
	closed bool
}

// NewFeedWriter creates a FeedWriter on w.
func NewFeedWriter(w io.Writer) *FeedWriter {
	return &FeedWriter{w: w}
}

// CreateFeed creates the file at path, and its parent directory, and
// returns a FeedWriter that closes the file on Close.
func CreateFeed(path string) (*FeedWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create feed directory: %w", err)
		}
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}

	fw := NewFeedWriter(f)
	fw.closer = f
	return fw, nil
}

// Write appends v to the array.
func (f *FeedWriter) Write(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("  ", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode feed item: %w", err)
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrFeedClosed
	}

	sep := ",\n  "
	if f.count == 0 {
		sep = "[\n  "
	}
	if _, err := io.WriteString(f.w, sep); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if _, err := f.w.Write(data); err != nil {
		return fmt.Errorf("failed to write feed: %w", err)
	}

	f.count++
	return nil
}

// Put implements the pipeline sink interface.
func (f *FeedWriter) Put(_ context.Context, r *model.Record) error {
	return f.Write(r)
}

// Count returns the number of items written.
func (f *FeedWriter) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// Close terminates the array and closes the underlying file, if any.
// Close is idempotent.
func (f *FeedWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	tail := "\n]\n"
	if f.count == 0 {
		tail = "[]\n"
	}
	_, err := io.WriteString(f.w, tail)

	if f.closer != nil {
		err = errors.Join(err, f.closer.Close())
	}
	return err
}
