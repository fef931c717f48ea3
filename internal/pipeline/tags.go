package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var tagCaser = cases.Upper(language.Und)

// NormalizeTags is the single point of truth for tag hygiene: trim, drop
// empties, upper-case, and de-duplicate while preserving first-seen order.
// Every write path goes through here so direct tag updates cannot diverge
// from upload-time normalization.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		cleaned := tagCaser.String(strings.TrimSpace(tag))
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		normalized = append(normalized, cleaned)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
