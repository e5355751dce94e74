package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nao1215/oercrawl/internal/model"
)

// StoredResource is a resource row.
type StoredResource struct {
	model.Record

	ID        int64     `json:"id"`
	FirstSeen time.Time `json:"first_seen"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows ListResources.
type ListFilter struct {
	// Limit caps the number of rows; 0 means no limit.
	Limit int

	// MinScore keeps rows with quality_score >= MinScore.
	MinScore int

	// Category keeps rows tagged with this category.
	Category string

	// Facet keeps rows crawled under this facet slug.
	Facet string
}

const resourceColumns = `id, resource_id, context_id, title, description, url,
	origin_page_url, author, provider, resource_type, publication_date, image_url,
	license_text, license_normalized, license_hints, subjects, education_levels,
	categories, subject_area, facet_slug, rating, difficulty, quality_score,
	extracted_at, processed_at, first_seen, updated_at`

// UpsertResource inserts rec or updates the row with the same
// (resource_id, context_id) and returns the stored row.
func (r *ResourceDB) UpsertResource(ctx context.Context, rec *model.Record) (*StoredResource, error) {
	if rec == nil {
		return nil, errors.New("nil record")
	}
	if rec.ResourceID == "" {
		return nil, errors.New("record has no resource id")
	}

	lists, err := encodeLists(rec.LicenseHints, rec.Subjects, rec.EducationLevels, rec.Categories)
	if err != nil {
		return nil, err
	}

	now := formatTimestamp(r.now())

	query := `
	INSERT INTO resources (
		resource_id, context_id, title, description, url,
		origin_page_url, author, provider, resource_type, publication_date, image_url,
		license_text, license_normalized, license_hints, subjects, education_levels,
		categories, subject_area, facet_slug, rating, difficulty, quality_score,
		extracted_at, processed_at, first_seen, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(resource_id, context_id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		url = excluded.url,
		origin_page_url = excluded.origin_page_url,
		author = excluded.author,
		provider = excluded.provider,
		resource_type = excluded.resource_type,
		publication_date = excluded.publication_date,
		image_url = excluded.image_url,
		license_text = excluded.license_text,
		license_normalized = excluded.license_normalized,
		license_hints = excluded.license_hints,
		subjects = excluded.subjects,
		education_levels = excluded.education_levels,
		categories = excluded.categories,
		subject_area = excluded.subject_area,
		facet_slug = excluded.facet_slug,
		rating = excluded.rating,
		difficulty = excluded.difficulty,
		quality_score = excluded.quality_score,
		extracted_at = excluded.extracted_at,
		processed_at = excluded.processed_at,
		updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ResourceID,
		rec.ContextID,
		rec.Title,
		rec.Description,
		rec.URL,
		nullString(rec.OriginPageURL),
		nullString(rec.Author),
		nullString(rec.Provider),
		nullString(rec.ResourceType),
		nullString(rec.PublicationDate),
		nullString(rec.ImageURL),
		nullString(rec.LicenseText),
		rec.LicenseNormalized,
		lists[0],
		lists[1],
		lists[2],
		lists[3],
		rec.SubjectArea,
		rec.FacetSlug,
		rec.Rating,
		string(rec.Difficulty),
		rec.QualityScore,
		formatTimestamp(rec.ExtractedAt),
		formatTimestamp(rec.ProcessedAt),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert resource %s: %w", rec.ResourceID, err)
	}

	stored, err := r.GetResource(ctx, rec.ResourceID, rec.ContextID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("resource %s vanished after upsert", rec.ResourceID)
	}
	return stored, nil
}

// GetResource returns the row for (resourceID, contextID), or nil, nil
// when there is none. An empty contextID selects the context-less row.
func (r *ResourceDB) GetResource(ctx context.Context, resourceID, contextID string) (*StoredResource, error) {
	query := "SELECT " + resourceColumns + " FROM resources WHERE resource_id = ? AND context_id = ?"

	res, err := scanResource(r.db.QueryRowContext(ctx, query, resourceID, contextID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return res, nil
}

// ListResources returns resources ordered by quality score, best first.
func (r *ResourceDB) ListResources(ctx context.Context, filter ListFilter) ([]*StoredResource, error) {
	query := "SELECT " + resourceColumns + " FROM resources WHERE quality_score >= ?"
	args := []any{filter.MinScore}

	if filter.Category != "" {
		// categories is a JSON array of plain tags.
		query += " AND EXISTS (SELECT 1 FROM json_each(resources.categories) WHERE json_each.value = ?)"
		args = append(args, strings.ToLower(filter.Category))
	}
	if filter.Facet != "" {
		query += " AND facet_slug = ?"
		args = append(args, filter.Facet)
	}

	query += " ORDER BY quality_score DESC, title ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var out []*StoredResource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		out = append(out, res)
	}

	return out, rows.Err()
}

// CountResources returns the number of stored resources.
func (r *ResourceDB) CountResources(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM resources").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count resources: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResource(row rowScanner) (*StoredResource, error) {
	var res StoredResource
	var origin, author, provider, resourceType, published, image, license sql.NullString
	var hints, subjects, levels, categories, difficulty string
	var extractedAt, processedAt, firstSeen, updatedAt sql.NullString

	err := row.Scan(
		&res.ID,
		&res.ResourceID,
		&res.ContextID,
		&res.Title,
		&res.Description,
		&res.URL,
		&origin,
		&author,
		&provider,
		&resourceType,
		&published,
		&image,
		&license,
		&res.LicenseNormalized,
		&hints,
		&subjects,
		&levels,
		&categories,
		&res.SubjectArea,
		&res.FacetSlug,
		&res.Rating,
		&difficulty,
		&res.QualityScore,
		&extractedAt,
		&processedAt,
		&firstSeen,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	res.OriginPageURL = stringPtr(origin)
	res.Author = stringPtr(author)
	res.Provider = stringPtr(provider)
	res.ResourceType = stringPtr(resourceType)
	res.PublicationDate = stringPtr(published)
	res.ImageURL = stringPtr(image)
	res.LicenseText = stringPtr(license)
	res.Difficulty = model.Difficulty(difficulty)

	for dst, src := range map[*[]string]string{
		&res.LicenseHints:    hints,
		&res.Subjects:        subjects,
		&res.EducationLevels: levels,
		&res.Categories:      categories,
	} {
		if err := json.Unmarshal([]byte(src), dst); err != nil {
			return nil, fmt.Errorf("failed to decode list column: %w", err)
		}
	}

	res.ExtractedAt = parseTimestamp(extractedAt.String)
	res.ProcessedAt = parseTimestamp(processedAt.String)
	res.FirstSeen = parseTimestamp(firstSeen.String)
	res.UpdatedAt = parseTimestamp(updatedAt.String)

	return &res, nil
}

// encodeLists marshals each list as a JSON array; nil becomes "[]".
func encodeLists(lists ...[]string) ([]string, error) {
	out := make([]string, len(lists))
	for i, l := range lists {
		if l == nil {
			l = []string{}
		}
		b, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("failed to encode list column: %w", err)
		}
		out[i] = string(b)
	}
	return out, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
