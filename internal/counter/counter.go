// Package counter computes platform-weighted post length.
//
// URLs are weighted as a fixed [URLWeight] regardless of their real length and every
// other character is counted as one extended grapheme cluster, so a multi-codepoint
// emoji counts as a single character.
package counter

import (
	"regexp"

	"github.com/rivo/uniseg"
)

const (
	// URLWeight is the length every URL contributes after link shortening.
	URLWeight = 23
	// DefaultLimit is the maximum weighted length of a single post.
	DefaultLimit = 280
)

var urlPattern = regexp.MustCompile(`(?i)[a-z][a-z0-9+.\-]*://\S+`)

// Count returns the weighted length of text.
func Count(text string) int {
	matches := urlPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return uniseg.GraphemeClusterCount(text)
	}

	working := []byte(text)
	for i := len(matches) - 1; i >= 0; i-- {
		start, end := matches[i][0], matches[i][1]
		working = append(working[:start], working[end:]...)
	}

	return uniseg.GraphemeClusterCount(string(working)) + len(matches)*URLWeight
}

// Remaining returns limit minus the weighted length of text. Negative means over the limit.
func Remaining(text string, limit int) int {
	return limit - Count(text)
}

// IsWithinLimit reports whether text fits in limit.
func IsWithinLimit(text string, limit int) bool {
	return Remaining(text, limit) >= 0
}

// PercentageUsed returns the fraction of limit consumed by text. It may exceed 1.
func PercentageUsed(text string, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(Count(text)) / float64(limit)
}

// Summary is a snapshot of a text's weighted length against a limit.
type Summary struct {
	Count          int
	Limit          int
	Remaining      int
	PercentageUsed float64
}

// Summarize computes every counter value for text in one pass.
func Summarize(text string, limit int) Summary {
	count := Count(text)
	s := Summary{Count: count, Limit: limit, Remaining: limit - count}
	if limit > 0 {
		s.PercentageUsed = float64(count) / float64(limit)
	}
	return s
}

// IsWithinLimit reports whether the summarized text fits.
func (s Summary) IsWithinLimit() bool { return s.Remaining >= 0 }
