package extract

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Selectors is the CSS selector table used by the Extractor and the page
// parser. Every field is a goquery/cascadia selector.
type Selectors struct {
	// Entry identifies one repeated catalog entry on an index page.
	Entry string `yaml:"entry,omitempty"`

	// Title selects the anchor holding the title text and the detail href.
	Title string `yaml:"title,omitempty"`

	DescriptionLong  string `yaml:"descriptionLong,omitempty"`
	DescriptionShort string `yaml:"descriptionShort,omitempty"`

	LicenseText  string `yaml:"licenseText,omitempty"`
	LicenseIcons string `yaml:"licenseIcons,omitempty"`

	Subjects     string `yaml:"subjects,omitempty"`
	MaterialType string `yaml:"materialType,omitempty"`
	Provider     string `yaml:"provider,omitempty"`

	// MetaLabel and MetaValue select definition-list style label/value pairs.
	// A value is the MetaValue element immediately following a label.
	MetaLabel string `yaml:"metaLabel,omitempty"`
	MetaValue string `yaml:"metaValue,omitempty"`

	// AuthorFallback is tried when no "Author" label is present.
	AuthorFallback string `yaml:"authorFallback,omitempty"`

	Rating string `yaml:"rating,omitempty"`
	Image  string `yaml:"image,omitempty"`

	// Next lists the next-page link selectors in priority order.
	Next []string `yaml:"next,omitempty"`
}

// DefaultSelectors returns the selector table for the OER Commons catalog.
func DefaultSelectors() Selectors {
	return Selectors{
		Entry:            "article.js-index-item",
		Title:            ".item-title a",
		DescriptionLong:  ".abstract-full p",
		DescriptionShort: ".abstract-short p",
		LicenseText:      ".cou-bucket span",
		LicenseIcons:     ".cc",
		Subjects:         `a[href*="f.general_subject"]`,
		MaterialType:     `a[href*="f.material_types"]`,
		Provider:         `a[href*="f.provider"]`,
		MetaLabel:        "dt",
		MetaValue:        "dd",
		AuthorFallback:   ".field-authors .field-item",
		Rating:           ".stars .sr-only",
		Image:            "img[alt]",
		Next:             []string{`a[rel="next"]`, ".pager-next a"},
	}
}

// Merge returns s with every non-empty field of override applied on top.
func (s Selectors) Merge(override Selectors) Selectors {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&s.Entry, override.Entry)
	set(&s.Title, override.Title)
	set(&s.DescriptionLong, override.DescriptionLong)
	set(&s.DescriptionShort, override.DescriptionShort)
	set(&s.LicenseText, override.LicenseText)
	set(&s.LicenseIcons, override.LicenseIcons)
	set(&s.Subjects, override.Subjects)
	set(&s.MaterialType, override.MaterialType)
	set(&s.Provider, override.Provider)
	set(&s.MetaLabel, override.MetaLabel)
	set(&s.MetaValue, override.MetaValue)
	set(&s.AuthorFallback, override.AuthorFallback)
	set(&s.Rating, override.Rating)
	set(&s.Image, override.Image)
	if len(override.Next) > 0 {
		s.Next = override.Next
	}

	return s
}

// Validate compiles every non-empty selector and reports the first one
// that is not valid CSS. Entry and Title are required.
func (s Selectors) Validate() error {
	if s.Entry == "" {
		return fmt.Errorf("%w: entry selector is empty", ErrInvalidSelector)
	}
	if s.Title == "" {
		return fmt.Errorf("%w: title selector is empty", ErrInvalidSelector)
	}

	named := []struct {
		name, sel string
	}{
		{"entry", s.Entry},
		{"title", s.Title},
		{"descriptionLong", s.DescriptionLong},
		{"descriptionShort", s.DescriptionShort},
		{"licenseText", s.LicenseText},
		{"licenseIcons", s.LicenseIcons},
		{"subjects", s.Subjects},
		{"materialType", s.MaterialType},
		{"provider", s.Provider},
		{"metaLabel", s.MetaLabel},
		{"metaValue", s.MetaValue},
		{"authorFallback", s.AuthorFallback},
		{"rating", s.Rating},
		{"image", s.Image},
	}
	for i, next := range s.Next {
		named = append(named, struct{ name, sel string }{fmt.Sprintf("next[%d]", i), next})
	}

	for _, n := range named {
		if n.sel == "" {
			continue
		}
		if _, err := cascadia.Compile(n.sel); err != nil {
			return fmt.Errorf("%w: %s %q: %w", ErrInvalidSelector, n.name, n.sel, err)
		}
	}

	return nil
}
