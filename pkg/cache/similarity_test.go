package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "苹果多少钱", "苹果多少钱", 100},
		{"both empty", "", "", 100},
		{"one empty", "", "apple", 0},
		{"ten runes two edits", "abcdefghij", "abcdefghxy", 80},
		{"twenty four runes five edits", "abcdefghijklmnopqrstuvwx", "abcdefghijklmnopqrs12345", 79},
		{"cjk one insertion", "苹果多少钱", "苹果多少钱呢", 83},
		{"disjoint", "abc", "xyz", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similarity(tt.a, tt.b))
			assert.Equal(t, tt.want, Similarity(tt.b, tt.a))
		})
	}
}

func TestMaxSimilarityBoundsScore(t *testing.T) {
	pairs := [][2]string{
		{"abcdefghij", "abcdefghxy"},
		{"苹果", "苹果多少钱"},
		{"a", "abcdefghij"},
	}
	for _, p := range pairs {
		la, lb := len([]rune(p[0])), len([]rune(p[1]))
		assert.GreaterOrEqual(t, maxSimilarity(la, lb), Similarity(p[0], p[1]))
	}
}
