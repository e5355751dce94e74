package extract

import (
	"regexp"
	"strconv"
)

// ratingPattern matches "4.5 stars", "3 Stars", "1 star".
var ratingPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*stars?\b`)

// ParseRating extracts the numeric rating from a free-text rating phrase.
// It returns 0 when the phrase is empty or carries no number followed by
// the unit word.
func ParseRating(text string) float64 {
	m := ratingPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
