package database

import (
	"context"

	"github.com/nao1215/oercrawl/internal/model"
)

// Sink stores accepted pipeline records in a ResourceDB.
type Sink struct {
	db *ResourceDB
}

// NewSink creates a Sink.
func NewSink(db *ResourceDB) *Sink {
	return &Sink{db: db}
}

// Put upserts r.
func (s *Sink) Put(ctx context.Context, r *model.Record) error {
	_, err := s.db.UpsertResource(ctx, r)
	return err
}
