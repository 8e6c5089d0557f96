package transcript

import (
	"math"
	"strings"

	"pronunciation-practice-service/internal/textnorm"
)

// MergeTranscript splices incoming onto previous without duplicating the span
// they share. It is a greedy longest-overlap splice, cheap enough to run on
// every recognizer message:
//
//   - incoming already inside previous (normalized) → previous
//   - previous inside incoming (normalized) → incoming
//   - literal prefix extension in either direction → the longer string
//   - longest case-insensitive suffix(previous)/prefix(incoming) overlap → spliced
//   - otherwise both joined with a single space
func MergeTranscript(previous, incoming string) string {
	merged, _ := mergeTranscript(previous, incoming)
	return merged
}

// mergeKind records which branch of the text merge produced the result, so
// that confidences can follow the same decision.
type mergeKind int

const (
	mergeKeptPrevious mergeKind = iota
	mergeAdoptedIncoming
	mergeSpliced
)

func mergeTranscript(previous, incoming string) (string, mergeKind) {
	prev := strings.TrimSpace(previous)
	inc := strings.TrimSpace(incoming)

	if prev == "" {
		return inc, mergeAdoptedIncoming
	}
	if inc == "" || prev == inc {
		return prev, mergeKeptPrevious
	}

	normPrev := textnorm.Normalize(prev)
	normInc := textnorm.Normalize(inc)
	if normInc == "" {
		return prev, mergeKeptPrevious
	}
	if normPrev == "" {
		return inc, mergeAdoptedIncoming
	}
	if strings.Contains(normPrev, normInc) {
		return prev, mergeKeptPrevious
	}
	if strings.Contains(normInc, normPrev) {
		return inc, mergeAdoptedIncoming
	}
	if strings.HasPrefix(inc, prev) {
		return inc, mergeAdoptedIncoming
	}
	if strings.HasPrefix(prev, inc) {
		return prev, mergeKeptPrevious
	}

	if k := runeOverlap(prev, inc); k > 0 {
		return prev + string([]rune(inc)[k:]), mergeSpliced
	}
	return prev + " " + inc, mergeSpliced
}

// runeOverlap returns the length in runes of the longest suffix of a that
// equals (case-insensitively) a prefix of b.
func runeOverlap(a, b string) int {
	ar, br := []rune(a), []rune(b)
	for k := min(len(ar), len(br)); k > 0; k-- {
		if strings.EqualFold(string(ar[len(ar)-k:]), string(br[:k])) {
			return k
		}
	}
	return 0
}

// wordOverlap is runeOverlap over token slices, so the boundary always falls
// between whole words.
func wordOverlap(a, b []string) int {
	for k := min(len(a), len(b)); k > 0; k-- {
		match := true
		for i := 0; i < k; i++ {
			if a[len(a)-k+i] != b[i] {
				match = false
				break
			}
		}
		if match {
			return k
		}
	}
	return 0
}

// MergeWordConfidences merges the confidence arrays that belong to previous
// and incoming using the same decisions MergeTranscript makes, but over word
// tokens. prevConf is first fitted to the token count of previous.
//
// A nil entry means the confidence is unknown.
func MergeWordConfidences(previous, incoming string, prevConf, incConf []*float64) []*float64 {
	prevWords := textnorm.Tokenize(previous)
	incWords := textnorm.Tokenize(incoming)
	prevConf = fitConfidences(prevConf, len(prevWords))
	incConf = fitConfidences(incConf, len(incWords))

	switch {
	case len(incWords) == 0:
		return prevConf
	case len(prevWords) == 0:
		return incConf
	case textnorm.ContainsWords(prevWords, incWords):
		return prevConf
	case textnorm.ContainsWords(incWords, prevWords):
		return incConf
	}

	k := wordOverlap(prevWords, incWords)
	merged := make([]*float64, 0, len(prevConf)+len(incConf)-k)
	merged = append(merged, prevConf...)
	return append(merged, incConf[k:]...)
}

// mergeConfidences returns the confidences for a merged transcript of n
// tokens, following the branch the text merge took. A kept or adopted text
// keeps its own confidences. A splice uses the word-level merge, and when a
// splice inside a word leaves that out of step with the text, incoming's
// confidences are placed on the tail, which the spliced text always ends with.
func mergeConfidences(kind mergeKind, previous, incoming string, prevConf, incConf []*float64, n int) []*float64 {
	switch kind {
	case mergeKeptPrevious:
		return fitConfidences(prevConf, n)
	case mergeAdoptedIncoming:
		return fitConfidences(incConf, n)
	}

	conf := MergeWordConfidences(previous, incoming, prevConf, incConf)
	if len(conf) == n {
		return conf
	}
	incConf = fitConfidences(incConf, len(textnorm.Tokenize(incoming)))
	if len(incConf) >= n {
		return fitConfidences(incConf[len(incConf)-n:], n)
	}
	out := fitConfidences(prevConf, n-len(incConf))
	return append(out, incConf...)
}

// fitConfidences truncates conf or right-pads it with unknown entries so that
// it has exactly n elements. The returned slice never aliases conf.
func fitConfidences(conf []*float64, n int) []*float64 {
	out := make([]*float64, n)
	copy(out, conf)
	return out
}

// confidencesFor lines the recognizer's word list up with the tokens of text.
// When the lists agree in length they are paired by position; otherwise each
// token takes the confidence of the next word that normalizes to the same
// token, and tokens without such a word stay unknown.
func confidencesFor(text string, words []WordHypothesis) []*float64 {
	tokens := textnorm.Tokenize(text)
	out := make([]*float64, len(tokens))
	if len(words) == 0 {
		return out
	}

	if len(words) == len(tokens) {
		for i, w := range words {
			out[i] = copyConfidence(w.Confidence)
		}
		return out
	}

	next := 0
	for i, tok := range tokens {
		for j := next; j < len(words); j++ {
			if textnorm.Normalize(words[j].Token) == tok {
				out[i] = copyConfidence(words[j].Confidence)
				next = j + 1
				break
			}
		}
	}
	return out
}

// copyConfidence detaches c from the caller's memory. NaN and infinities are
// treated as unknown.
func copyConfidence(c *float64) *float64 {
	if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
		return nil
	}
	v := *c
	return &v
}
