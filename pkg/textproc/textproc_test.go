package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "how much is the apple?", Normalize("  How   much is\tthe APPLE? \n"))
	assert.Equal(t, "", Normalize("   "))
	assert.Equal(t, "a b", Normalize("a\xffb"))
}

func TestTokenizeMixedScript(t *testing.T) {
	got := Tokenize("苹果多少钱？Fuji apples, 2kg!")
	assert.Equal(t, []string{"苹果多少钱", "fuji", "apples", "2kg"}, got)
}

func TestTokenizeDropsPunctuationAndEmoji(t *testing.T) {
	assert.Empty(t, Tokenize("？？！！ 🍎🍎 ..."))
	assert.Equal(t, []string{"香蕉", "甜吗"}, Tokenize("香蕉🍌，甜吗"))
}

func TestTokenizeArbitraryInput(t *testing.T) {
	inputs := []string{
		"",
		"\x00\xff\xfe",
		strings.Repeat("苹果", 6000),
		"é́́",
		"👨‍👩‍👧‍👦",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Tokenize(in) })
		assert.NotPanics(t, func() { Keywords(in) })
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("请问 苹果多少钱 what is the price of apples")
	assert.Contains(t, got, "苹果")
	assert.Contains(t, got, "多少")
	assert.Contains(t, got, "price")
	assert.Contains(t, got, "apples")
	assert.NotContains(t, got, "请问")
	assert.NotContains(t, got, "the")
}

func TestKeywordsDeduplicates(t *testing.T) {
	got := Keywords("apple apple APPLE")
	assert.Equal(t, []string{"apple"}, got)
}
