package scoring

import (
	"regexp"

	"github.com/antzucaro/matchr"
)

// hintRule pairs a reference-word pattern with a hypothesis-word pattern that
// together indicate a common second-language confusion.
type hintRule struct {
	reference  *regexp.Regexp
	hypothesis *regexp.Regexp
	tip        string
}

// hintRules is scanned in order; the first rule matching any mismatch wins.
var hintRules = []hintRule{
	{regexp.MustCompile(`^th`), regexp.MustCompile(`^d`),
		`Put the tip of your tongue between your teeth for "th" instead of a "d" sound.`},
	{regexp.MustCompile(`^th`), regexp.MustCompile(`^[fst]`),
		`For "th", let air flow over your tongue between your teeth.`},
	{regexp.MustCompile(`^v`), regexp.MustCompile(`^w`),
		`For "v", touch your top teeth to your bottom lip and let it buzz.`},
	{regexp.MustCompile(`^w`), regexp.MustCompile(`^v`),
		`For "w", round your lips without touching your teeth.`},
	{regexp.MustCompile(`^l`), regexp.MustCompile(`^r`),
		`For "l", press your tongue tip against the ridge behind your top teeth.`},
	{regexp.MustCompile(`^r`), regexp.MustCompile(`^l`),
		`For "r", curl your tongue back without touching the roof of your mouth.`},
	{regexp.MustCompile(`ing$`), regexp.MustCompile(`in$`),
		`Finish "-ing" words with the "ng" sound at the back of your mouth.`},
	{regexp.MustCompile(`[^aeiou]s$`), regexp.MustCompile(`[^s]$`),
		`Don't drop the final "s"; it often changes the meaning.`},
	{regexp.MustCompile(`[^aeiou]ed$`), regexp.MustCompile(`[^d]$`),
		`Pronounce the "-ed" ending; it marks the past tense.`},
}

const (
	soundsAlikeTip = `Close! That word sounded similar; slow down and stress each syllable.`
	genericTip     = `Good effort! Listen to the sentence again and repeat it slowly.`

	soundsAlikeThreshold = 0.7
)

// PickCoachingHint returns the tip for the first rule in the table that
// matches any substitution in mismatches. When no rule matches it falls back
// to a sounds-alike tip (Double Metaphone codes overlap) and then to generic
// encouragement. ok is false when there are no mismatches at all.
func PickCoachingHint(mismatches []Mismatch) (hint string, ok bool) {
	if len(mismatches) == 0 {
		return "", false
	}

	for _, rule := range hintRules {
		for _, m := range mismatches {
			if m.ReferenceWord == "" || m.HypothesisWord == "" {
				continue
			}
			if rule.reference.MatchString(m.ReferenceWord) && rule.hypothesis.MatchString(m.HypothesisWord) {
				return rule.tip, true
			}
		}
	}

	for _, m := range mismatches {
		if soundsAlike(m.ReferenceWord, m.HypothesisWord) {
			return soundsAlikeTip, true
		}
	}
	return genericTip, true
}

// soundsAlike reports whether two words share a Double Metaphone code and
// are close by Jaro-Winkler similarity.
func soundsAlike(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	shared := ap == bp || (as != "" && as == bs) || (bs != "" && ap == bs) || (as != "" && as == bp)
	return shared && matchr.JaroWinkler(a, b, false) >= soundsAlikeThreshold
}
