package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

var stopWords = map[string]bool{
	// Chinese particles and fillers.
	"的": true, "了": true, "吗": true, "呢": true, "吧": true, "啊": true, "呀": true,
	"嘛": true, "请问": true, "一下": true, "我们": true, "你们": true, "这个": true,
	"那个": true, "什么": true, "可以": true, "怎么": true, "有没": true, "没有": true,
	// English function words.
	"a": true, "an": true, "the": true, "is": true, "are": true, "do": true, "does": true,
	"you": true, "your": true, "we": true, "i": true, "me": true, "my": true, "it": true,
	"of": true, "to": true, "in": true, "on": true, "for": true, "and": true, "or": true,
	"what": true, "which": true, "can": true, "have": true, "has": true, "please": true,
	"this": true, "that": true, "with": true, "how": true,
}

// Normalize lower-cases text, trims it and collapses internal whitespace.
// Invalid UTF-8 sequences are replaced by a space.
func Normalize(text string) string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Tokenize splits text into lower-cased word tokens using Unicode word
// boundaries. Segments without letters or digits are dropped and adjacent
// Han ideographs are merged into a single token.
func Tokenize(text string) []string {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}

	var (
		tokens []string
		han    strings.Builder
		word   string
		state  = -1
	)
	flush := func() {
		if han.Len() > 0 {
			tokens = append(tokens, han.String())
			han.Reset()
		}
	}

	for rest := text; len(rest) > 0; {
		word, rest, state = uniseg.FirstWordInString(rest, state)
		switch {
		case isHan(word):
			han.WriteString(word)
		case hasLetterOrDigit(word):
			flush()
			tokens = append(tokens, strings.ToLower(word))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// Keywords returns the distinct content tokens of text in first-seen order.
// Stop-words and single-rune tokens are discarded; Han runs longer than two
// runes also contribute their bigrams.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(tok string) {
		if utf8.RuneCountInString(tok) < 2 || stopWords[tok] || seen[tok] {
			return
		}
		seen[tok] = true
		out = append(out, tok)
	}

	for _, tok := range Tokenize(text) {
		add(tok)
		if !isHan(tok) {
			continue
		}
		runes := []rune(tok)
		if len(runes) <= 2 {
			continue
		}
		for i := 0; i+2 <= len(runes); i++ {
			add(string(runes[i : i+2]))
		}
	}
	return out
}

func isHan(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.Is(unicode.Han, r) {
			return false
		}
	}
	return true
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
