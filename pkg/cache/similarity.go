package cache

import (
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Similarity scores two strings from 0 (unrelated) to 100 (identical) as
// the share of the longer string left untouched by the Levenshtein edit
// distance, rounded to the nearest integer.
func Similarity(a, b string) int {
	if a == b {
		return 100
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * float64(longest-d) / float64(longest)))
}

// maxSimilarity bounds Similarity from the rune lengths alone: the edit
// distance is at least the length difference.
func maxSimilarity(lenA, lenB int) int {
	longest := max(lenA, lenB)
	if longest == 0 {
		return 100
	}
	return int(math.Round(100 * float64(min(lenA, lenB)) / float64(longest)))
}
