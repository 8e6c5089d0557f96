// Package textnorm provides the normalization and tokenization primitives
// shared by transcript reconciliation and alignment scoring.
package textnorm

import (
	"regexp"
	"strings"
)

// nonWord matches everything that is not a letter, digit, underscore,
// apostrophe or whitespace.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_'\s]+`)

// Normalize lowercases s, strips punctuation (apostrophes are kept) and
// collapses runs of whitespace into a single space.
func Normalize(s string) string {
	s = nonWord.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize returns the whitespace tokens of Normalize(s).
// The result is never nil.
func Tokenize(s string) []string {
	tokens := strings.Fields(Normalize(s))
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// ContainsWords reports whether needle occurs as a contiguous run inside
// haystack. An empty needle is always contained.
func ContainsWords(haystack, needle []string) bool {
	if len(needle) == 0 {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// WordSet returns the distinct tokens of words.
func WordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// TailRunes returns the last n runes of s.
func TailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
