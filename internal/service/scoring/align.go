// Package scoring aligns a hypothesis transcript against a reference sentence
// at word level and derives an accuracy score and coaching hints from the
// alignment. Everything here is pure and safe for concurrent use.
package scoring

import (
	"math"

	"pronunciation-practice-service/internal/textnorm"
)

// Status classifies one hypothesis token.
type Status string

const (
	StatusMatch        Status = "match"
	StatusSubstitution Status = "substitution"
	StatusInsertion    Status = "insertion"
)

// Token is one spoken word with its alignment status. Confidence is nil when
// unknown and otherwise in [0,1].
type Token struct {
	Word       string   `json:"word"`
	Status     Status   `json:"status"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Mismatch records one substitution, insertion or deletion. Deletions have no
// HypothesisWord and insertions have no ReferenceWord.
type Mismatch struct {
	ReferenceWord  string `json:"referenceWord,omitempty"`
	HypothesisWord string `json:"hypothesisWord,omitempty"`
}

// Counts tallies the edit operations of an alignment.
type Counts struct {
	Matches       int `json:"matches"`
	Substitutions int `json:"substitutions"`
	Insertions    int `json:"insertions"`
	Deletions     int `json:"deletions"`
	Reference     int `json:"reference"`
}

// Result is the outcome of Align.
type Result struct {
	Tokens     []Token    `json:"tokens"`
	Accuracy   float64    `json:"accuracy"`
	Mismatches []Mismatch `json:"mismatches"`
	Counts     Counts     `json:"counts"`
}

type op int

const (
	opMatch op = iota
	opSubstitution
	opInsertion
	opDeletion
)

const (
	// accuracyExponent compresses the match rate so that near-misses are not
	// rewarded as generously as a linear scale would.
	accuracyExponent = 1.15
	// confidenceFloor is the weighting applied when every matched word has
	// confidence 0; full confidence keeps the unweighted score.
	confidenceFloor = 0.85
	// weakConfidence marks a matched word that was probably mispronounced.
	weakConfidence = 0.6
)

// Align computes the word-level edit-distance alignment between reference and
// hypothesis. confidences, when given, is index-aligned with the tokens of
// hypothesis; entries may be nil (unknown) or on a 0–100 scale.
func Align(reference, hypothesis string, confidences []*float64) Result {
	ref := textnorm.Tokenize(reference)
	hyp := textnorm.Tokenize(hypothesis)

	res := Result{
		Tokens:     []Token{},
		Mismatches: []Mismatch{},
		Counts:     Counts{Reference: len(ref)},
	}

	i, j := 0, 0
	var confSum float64
	var confN int
	for _, o := range backtrace(ref, hyp) {
		switch o {
		case opMatch:
			c := NormalizeConfidence(at(confidences, j))
			res.Tokens = append(res.Tokens, Token{Word: hyp[j], Status: StatusMatch, Confidence: c})
			res.Counts.Matches++
			if c != nil {
				confSum += *c
				confN++
			}
			i++
			j++
		case opSubstitution:
			res.Tokens = append(res.Tokens, Token{
				Word:       hyp[j],
				Status:     StatusSubstitution,
				Confidence: NormalizeConfidence(at(confidences, j)),
			})
			res.Mismatches = append(res.Mismatches, Mismatch{ReferenceWord: ref[i], HypothesisWord: hyp[j]})
			res.Counts.Substitutions++
			i++
			j++
		case opInsertion:
			res.Tokens = append(res.Tokens, Token{
				Word:       hyp[j],
				Status:     StatusInsertion,
				Confidence: NormalizeConfidence(at(confidences, j)),
			})
			res.Mismatches = append(res.Mismatches, Mismatch{HypothesisWord: hyp[j]})
			res.Counts.Insertions++
			j++
		case opDeletion:
			res.Mismatches = append(res.Mismatches, Mismatch{ReferenceWord: ref[i]})
			res.Counts.Deletions++
			i++
		}
	}

	avg := -1.0
	if confN > 0 {
		avg = confSum / float64(confN)
	}
	res.Accuracy = accuracy(res.Counts.Matches, len(ref), avg)
	return res
}

// backtrace fills the (n+1)x(m+1) Levenshtein matrix and walks it back from
// the bottom-right corner, preferring match, substitution, insertion and
// deletion in that order. The returned operations are in forward order.
func backtrace(ref, hyp []string) []op {
	n, m := len(ref), len(hyp)
	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			cost := 1
			if ref[i-1] == hyp[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j-1]+cost, d[i][j-1]+1, d[i-1][j]+1)
		}
	}

	ops := make([]op, 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && ref[i-1] == hyp[j-1] && d[i][j] == d[i-1][j-1]:
			ops = append(ops, opMatch)
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			ops = append(ops, opSubstitution)
			i--
			j--
		case j > 0 && d[i][j] == d[i][j-1]+1:
			ops = append(ops, opInsertion)
			j--
		default:
			ops = append(ops, opDeletion)
			i--
		}
	}

	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

// accuracy maps the match rate to [0,100] with a power curve and, when at
// least one matched word carries a confidence (avg >= 0), scales it by a
// factor in [confidenceFloor, 1]. The result never exceeds the unweighted
// curve and is rounded to one decimal.
func accuracy(matches, refLen int, avg float64) float64 {
	if refLen == 0 {
		return 0
	}
	base := float64(matches) / float64(max(1, refLen))
	score := 100 * math.Pow(base, accuracyExponent)
	if avg >= 0 {
		score *= confidenceFloor + (1-confidenceFloor)*math.Min(1, avg)
	}
	score = math.Round(score*10) / 10
	return math.Max(0, math.Min(100, score))
}

// NormalizeConfidence maps a recognizer confidence onto [0,1]. Values above 1
// are taken to be percentages. nil, NaN and infinities are unknown.
func NormalizeConfidence(c *float64) *float64 {
	if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
		return nil
	}
	v := *c
	if v > 1 {
		v /= 100
	}
	v = math.Max(0, math.Min(1, v))
	return &v
}

func at(conf []*float64, i int) *float64 {
	if i < 0 || i >= len(conf) {
		return nil
	}
	return conf[i]
}

// WeakWords lists the reference words worth drilling: words that were
// skipped or replaced, and matched words recognised with low confidence.
// Each word appears once, in order of first occurrence.
func (r Result) WeakWords() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(w string) {
		if w == "" {
			return
		}
		if _, ok := seen[w]; ok {
			return
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}

	for _, m := range r.Mismatches {
		add(m.ReferenceWord)
	}
	for _, t := range r.Tokens {
		if t.Status == StatusMatch && t.Confidence != nil && *t.Confidence < weakConfidence {
			add(t.Word)
		}
	}
	return out
}
