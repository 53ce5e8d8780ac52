// Package textutil holds the text primitives shared by indexing, matching and
// citation rendering.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func keepRune(r rune) bool {
	switch {
	case r == '_':
		return true
	case r >= 0x0600 && r <= 0x06FF:
		return true
	case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsSpace(r):
		return true
	}
	return false
}

func stripPunctuation(text string) string {
	return strings.Map(func(r rune) rune {
		if keepRune(r) {
			return r
		}
		return ' '
	}, text)
}

// Normalize lowercases text, replaces punctuation by spaces and collapses whitespace
func Normalize(text string) string {
	text = stripPunctuation(strings.ToLower(strings.TrimSpace(text)))
	return strings.Join(strings.Fields(text), " ")
}

// Tokenize splits text into lowercase word tokens
func Tokenize(text string) []string {
	return strings.Fields(stripPunctuation(strings.ToLower(text)))
}

// Truncate returns at most n runes of text
func Truncate(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

// RuneLen returns the number of runes in text
func RuneLen(text string) int {
	return utf8.RuneCountInString(text)
}
