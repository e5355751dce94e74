package pipeline

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/oercrawl/internal/extract"
	"github.com/nao1215/oercrawl/internal/model"
)

// Validation thresholds, in runes of whitespace-collapsed text.
const (
	minTitleLen       = 6
	minDescriptionLen = 21
)

// scoreLongDescription is the description length above which the score
// stage awards its description bonus.
const scoreLongDescription = 100

// maxQualityScore bounds QualityScore.
const maxQualityScore = 10

var errNoRecord = errors.New("record not built yet")

// Clock returns the current time.
type Clock func() time.Time

// ValidateStage rejects entries whose title or description is missing or
// too short. It reads the raw record and must run before CleanStage.
type ValidateStage struct{}

// Name implements Stage.
func (ValidateStage) Name() string { return "validate" }

// Process implements Stage.
func (s ValidateStage) Process(_ context.Context, item *Item) error {
	if item.Raw == nil {
		return errors.New("validate: raw record already consumed")
	}

	title := normalizeText(item.Raw.Title)
	switch {
	case title == "":
		return &Rejection{Stage: s.Name(), Reason: ReasonTitleMissing}
	case utf8.RuneCountInString(title) < minTitleLen:
		return &Rejection{Stage: s.Name(), Reason: ReasonTitleTooShort}
	}

	desc := normalizeText(item.Raw.Description())
	switch {
	case desc == "":
		return &Rejection{Stage: s.Name(), Reason: ReasonDescriptionMissing}
	case utf8.RuneCountInString(desc) < minDescriptionLen:
		return &Rejection{Stage: s.Name(), Reason: ReasonDescriptionTooShort}
	}

	return nil
}

// CleanStage builds the Record from the raw record and normalizes it.
// Raw is released once the Record exists.
type CleanStage struct {
	ContextID string
}

// Name implements Stage.
func (CleanStage) Name() string { return "clean" }

// Process implements Stage.
func (s CleanStage) Process(_ context.Context, item *Item) error {
	if item.Record == nil {
		if item.Raw == nil {
			return errors.New("clean: no raw record")
		}
		item.Record = newRecord(item.Raw, s.ContextID)
		item.Raw = nil
	}

	Normalize(item.Record)
	return nil
}

// newRecord copies raw into a Record without normalizing it.
func newRecord(raw *model.RawRecord, contextID string) *model.Record {
	return &model.Record{
		ResourceID:      model.ResourceID(raw.DetailURL),
		ContextID:       contextID,
		Title:           raw.Title,
		Description:     raw.Description(),
		URL:             raw.DetailURL,
		OriginPageURL:   ptr(raw.OriginPageURL),
		Author:          ptr(raw.Author),
		Provider:        ptr(raw.Provider),
		ResourceType:    ptr(raw.ResourceType),
		PublicationDate: ptr(raw.PublicationDate),
		ImageURL:        ptr(raw.ImageURL),
		LicenseText:     ptr(raw.LicenseText),
		LicenseHints:    slices.Clone(raw.LicenseHints),
		Subjects:        slices.Clone(raw.Subjects),
		EducationLevels: slices.Clone(raw.EducationLevels),
		Rating:          raw.Rating,
		SubjectArea:     raw.Facet.Name,
		FacetSlug:       raw.Facet.Slug,
		ExtractedAt:     raw.ExtractedAt,
	}
}

// Normalize collapses whitespace runs to a single space, trims, and
// applies Unicode NFC to every text field of r. Optional fields left
// empty become nil and empty list items are dropped. Normalize is
// idempotent.
func Normalize(r *model.Record) {
	r.ResourceID = normalizeText(r.ResourceID)
	r.ContextID = normalizeText(r.ContextID)
	r.Title = normalizeText(r.Title)
	r.Description = normalizeText(r.Description)
	r.URL = strings.TrimSpace(r.URL)
	r.SubjectArea = normalizeText(r.SubjectArea)

	for _, p := range []**string{
		&r.OriginPageURL,
		&r.Author,
		&r.Provider,
		&r.ResourceType,
		&r.PublicationDate,
		&r.ImageURL,
		&r.LicenseText,
	} {
		*p = normalizeOptional(*p)
	}

	r.LicenseHints = normalizeList(r.LicenseHints)
	r.Subjects = normalizeList(r.Subjects)
	r.EducationLevels = normalizeList(r.EducationLevels)
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func normalizeOptional(p *string) *string {
	if p == nil {
		return nil
	}
	v := normalizeText(*p)
	if v == "" {
		return nil
	}
	return &v
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := normalizeText(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// difficultyMarkers is checked in order; the first tier with a matching
// marker wins.
var difficultyMarkers = []struct {
	tier    model.Difficulty
	markers []string
}{
	{model.DifficultyAdvanced, []string{"advanced", "expert", "complex"}},
	{model.DifficultyIntermediate, []string{"intermediate", "undergraduate"}},
}

// EstimateDifficulty derives the difficulty tier from free text.
func EstimateDifficulty(text string) model.Difficulty {
	text = strings.ToLower(text)
	for _, d := range difficultyMarkers {
		if containsAny(text, d.markers) {
			return d.tier
		}
	}
	return model.DifficultyBeginner
}

// EnrichStage sets the difficulty, the normalized license and ProcessedAt.
type EnrichStage struct {
	Now Clock
}

// Name implements Stage.
func (EnrichStage) Name() string { return "enrich" }

// Process implements Stage.
func (s EnrichStage) Process(_ context.Context, item *Item) error {
	r := item.Record
	if r == nil {
		return errNoRecord
	}

	now := s.Now
	if now == nil {
		now = time.Now
	}

	r.Difficulty = EstimateDifficulty(r.Title + " " + r.Description)
	r.LicenseNormalized = extract.ResolveLicense(deref(r.LicenseText), r.LicenseHints)
	r.ProcessedAt = now().UTC()
	return nil
}

// Category tags.
const (
	CategoryMathematics = "mathematics"
	CategoryScience     = "science"
	CategoryProgramming = "programming"
	CategoryEconomics   = "economics"
	CategoryHumanities  = "humanities"
)

// categoryKeywords maps a category to the substrings that select it.
var categoryKeywords = map[string][]string{
	CategoryMathematics: {"math", "algebra", "calculus", "geometry"},
	CategoryScience:     {"science", "biology", "chemistry", "physics"},
	CategoryProgramming: {"programming", "coding", "computer"},
	CategoryEconomics:   {"economics", "economic", "market", "profit"},
	CategoryHumanities:  {"history", "literature", "philosophy", "art"},
}

// Categorize returns the sorted set of categories whose keywords occur in
// text, compared case-insensitively.
func Categorize(text string) []string {
	text = strings.ToLower(text)

	categories := make([]string, 0, len(categoryKeywords))
	for category, keywords := range categoryKeywords {
		if containsAny(text, keywords) {
			categories = append(categories, category)
		}
	}
	slices.Sort(categories)
	return categories
}

// CategorizeStage tags the record from its title and description.
type CategorizeStage struct{}

// Name implements Stage.
func (CategorizeStage) Name() string { return "categorize" }

// Process implements Stage.
func (CategorizeStage) Process(_ context.Context, item *Item) error {
	if item.Record == nil {
		return errNoRecord
	}
	item.Record.Categories = Categorize(item.Record.Title + " " + item.Record.Description)
	return nil
}

// Score computes the quality score of r, in [0, 10].
// The license bonus reads the license text as shown on the entry, not the
// normalized label.
func Score(r *model.Record) int {
	score := 0
	if r.Title != "" {
		score++
	}
	if utf8.RuneCountInString(r.Description) > scoreLongDescription {
		score += 2
	}
	if strings.Contains(deref(r.LicenseText), "CC") {
		score += 2
	}
	return min(max(score, 0), maxQualityScore)
}

// ScoreStage sets QualityScore.
type ScoreStage struct{}

// Name implements Stage.
func (ScoreStage) Name() string { return "score" }

// Process implements Stage.
func (ScoreStage) Process(_ context.Context, item *Item) error {
	if item.Record == nil {
		return errNoRecord
	}
	item.Record.QualityScore = Score(item.Record)
	return nil
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func ptr(s string) *string {
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
