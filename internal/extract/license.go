package extract

import "strings"

// LicenseUnspecified is the label used when neither license text nor a
// recognized icon combination is present.
const LicenseUnspecified = "unspecified"

// licenseRule maps a set of required icon parts to a canonical label.
type licenseRule struct {
	parts []string
	label string
}

// licenseRules is checked in order, most specific combination first.
var licenseRules = []licenseRule{
	{parts: []string{"by", "nc", "sa"}, label: "CC BY-NC-SA"},
	{parts: []string{"by", "nc"}, label: "CC BY-NC"},
	{parts: []string{"by", "sa"}, label: "CC BY-SA"},
	{parts: []string{"by"}, label: "CC BY"},
	{parts: []string{"zero"}, label: "CC0"},
	{parts: []string{"publicdomain"}, label: "Public Domain"},
}

// ResolveLicense returns the canonical license label for an entry.
// Explicit text wins when it is non-blank. Otherwise the icon class tokens
// are matched against the rule table; "cc-by" contributes "by" and a
// compound token such as "cc-by-nc-sa" contributes every part.
func ResolveLicense(text string, hints []string) string {
	if t := strings.Join(strings.Fields(text), " "); t != "" {
		return t
	}

	parts := licenseParts(hints)
	for _, rule := range licenseRules {
		if hasAll(parts, rule.parts) {
			return rule.label
		}
	}

	return LicenseUnspecified
}

// licenseParts collects the icon parts named by class tokens.
func licenseParts(hints []string) map[string]bool {
	parts := make(map[string]bool)
	for _, hint := range hints {
		for _, token := range strings.Fields(strings.ToLower(hint)) {
			rest, ok := strings.CutPrefix(token, "cc-")
			if !ok {
				continue
			}
			for _, p := range strings.Split(rest, "-") {
				if p != "" {
					parts[p] = true
				}
			}
		}
	}
	return parts
}

func hasAll(set map[string]bool, want []string) bool {
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}
