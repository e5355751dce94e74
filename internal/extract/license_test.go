package extract

import (
	"math/rand/v2"
	"testing"
)

// TestResolveLicense tests license label resolution.
func TestResolveLicense(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		hints []string
		want  string
	}{
		{"explicit text wins", "  CC BY 4.0\n", []string{"cc cc-zero"}, "CC BY 4.0"},
		{"text whitespace collapsed", "Creative   Commons\tAttribution", nil, "Creative Commons Attribution"},
		{"by nc sa", "", []string{"cc cc-by", "cc cc-nc", "cc cc-sa"}, "CC BY-NC-SA"},
		{"by nc", "", []string{"cc-by", "cc-nc"}, "CC BY-NC"},
		{"by sa", "", []string{"cc-sa", "cc-by"}, "CC BY-SA"},
		{"by only", "", []string{"cc cc-by"}, "CC BY"},
		{"zero", "", []string{"cc cc-zero"}, "CC0"},
		{"public domain", "", []string{"cc cc-publicdomain"}, "Public Domain"},
		{"compound token", "", []string{"cc-by-nc-sa"}, "CC BY-NC-SA"},
		{"case insensitive", "", []string{"CC CC-BY"}, "CC BY"},
		{"nc without by is unspecified", "", []string{"cc-nc", "cc-sa"}, LicenseUnspecified},
		{"plain cc class is unspecified", "", []string{"cc"}, LicenseUnspecified},
		{"nothing", "", nil, LicenseUnspecified},
		{"blank text falls back to icons", "   ", []string{"cc-by"}, "CC BY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := ResolveLicense(tt.text, tt.hints); got != tt.want {
				t.Errorf("ResolveLicense(%q, %v) = %q, want %q", tt.text, tt.hints, got, tt.want)
			}
		})
	}
}

// TestResolveLicenseIsTotal checks that every combination of icon tokens
// maps to exactly one known label and that BY+NC+SA always dominates.
func TestResolveLicenseIsTotal(t *testing.T) {
	t.Parallel()

	known := map[string]bool{LicenseUnspecified: true}
	for _, r := range licenseRules {
		known[r.label] = true
	}

	tokens := []string{"cc", "cc-by", "cc-nc", "cc-sa", "cc-nd", "cc-zero", "cc-publicdomain", "other"}
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		hints := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if rng.IntN(2) == 0 {
				hints = append(hints, tok)
			}
		}
		rng.Shuffle(len(hints), func(a, b int) { hints[a], hints[b] = hints[b], hints[a] })

		got := ResolveLicense("", hints)
		if !known[got] {
			t.Fatalf("unknown label %q for %v", got, hints)
		}

		if ResolveLicense("", hints) != got {
			t.Fatalf("non-deterministic label for %v", hints)
		}

		parts := licenseParts(hints)
		if parts["by"] && parts["nc"] && parts["sa"] && got != "CC BY-NC-SA" {
			t.Fatalf("expected CC BY-NC-SA for %v, got %q", hints, got)
		}
	}
}

// TestParseRating tests rating phrase parsing.
func TestParseRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want float64
	}{
		{"4.5 stars", 4.5},
		{"Rated 3 stars out of 5", 3},
		{"1 Star", 1},
		{"2.75stars", 2.75},
		{"", 0},
		{"no rating yet", 0},
		{"4.5", 0},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			if got := ParseRating(tt.text); got != tt.want {
				t.Errorf("ParseRating(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
