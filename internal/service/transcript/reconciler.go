package transcript

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/textnorm"
)

// Options tunes the loop/repeat detector. The defaults were chosen
// empirically; treat them as knobs rather than contracts.
type Options struct {
	HistorySize         int     // Accepted finals remembered for the similarity check
	SimilarityThreshold float64 // Word-set Jaccard at or above which a final is a repeat
	MinRepeatWords      int     // Finals shorter than this are never treated as repeats by similarity
	TailWindow          int     // Normalized runes of committed text checked for containment
	TailOverlapRatio    float64 // Share of distinct words already in the tail that marks a repeat
}

// DefaultOptions returns the detector settings used in production.
func DefaultOptions() Options {
	return Options{
		HistorySize:         12,
		SimilarityThreshold: 0.9,
		MinRepeatWords:      8,
		TailWindow:          400,
		TailOverlapRatio:    0.85,
	}
}

// Reconciler owns the transcript of one practice session.
//
// It is not safe for concurrent use; callers receiving events on several
// goroutines must serialize them (see practice.Session).
type Reconciler struct {
	opts   Options
	logger zerolog.Logger

	committed    string
	confidences  []*float64
	pending      string
	pendingWords []WordHypothesis
	lastPartial  string // normalized
	history      []string
}

// NewReconciler creates an empty reconciler. Zero-valued option fields fall
// back to DefaultOptions.
func NewReconciler(opts Options) *Reconciler {
	def := DefaultOptions()
	if opts.HistorySize <= 0 {
		opts.HistorySize = def.HistorySize
	}
	if opts.SimilarityThreshold <= 0 {
		opts.SimilarityThreshold = def.SimilarityThreshold
	}
	if opts.MinRepeatWords <= 0 {
		opts.MinRepeatWords = def.MinRepeatWords
	}
	if opts.TailWindow <= 0 {
		opts.TailWindow = def.TailWindow
	}
	if opts.TailOverlapRatio <= 0 {
		opts.TailOverlapRatio = def.TailOverlapRatio
	}
	return &Reconciler{
		opts:        opts,
		logger:      logging.WithComponent("transcript-reconciler"),
		confidences: []*float64{},
	}
}

// Apply dispatches ev to OnPartial or OnFinal.
func (r *Reconciler) Apply(ev RecognitionEvent) Outcome {
	if !utf8.ValidString(ev.Text) {
		r.logger.Warn().Bool("isFinal", ev.IsFinal).Msg("Dropping recognition event with invalid UTF-8")
		return OutcomeIgnored
	}
	if ev.IsFinal {
		return r.OnFinal(ev.Text, ev.Words)
	}
	return r.OnPartial(ev.Text, ev.Words)
}

// OnPartial records the latest interim fragment for live display. Nothing is
// committed and no confidences are attached.
func (r *Reconciler) OnPartial(text string, words []WordHypothesis) Outcome {
	norm := textnorm.Normalize(text)
	switch {
	case norm == "":
		return OutcomeIgnored
	case norm == r.lastPartial:
		return OutcomeDuplicate
	case strings.Contains(textnorm.Normalize(r.committed), norm):
		return OutcomeContained
	}

	r.pending = strings.TrimSpace(text)
	r.pendingWords = append(r.pendingWords[:0], words...)
	r.lastPartial = norm
	return OutcomePending
}

// OnFinal merges a settled fragment into the committed transcript unless the
// loop detector recognises it as a retransmission.
func (r *Reconciler) OnFinal(text string, words []WordHypothesis) Outcome {
	norm := textnorm.Normalize(text)
	if norm == "" {
		r.clearPending()
		return OutcomeIgnored
	}

	if r.isRepeat(norm) {
		r.logger.Debug().Str("text", text).Msg("Suppressed repeated final")
		r.clearPending()
		return OutcomeRepeat
	}

	r.commit(text, confidencesFor(text, words))
	r.clearPending()
	return OutcomeCommitted
}

// CommitPendingPartial promotes the pending partial into the committed
// transcript. It is used when a final answer is needed before the recognizer
// sends its own final. Calling it with nothing pending is a no-op.
func (r *Reconciler) CommitPendingPartial() Outcome {
	if r.pending == "" {
		return OutcomeIgnored
	}
	text, words := r.pending, r.pendingWords
	r.clearPending()

	if strings.Contains(textnorm.Normalize(r.committed), textnorm.Normalize(text)) {
		return OutcomeContained
	}
	r.commit(text, confidencesFor(text, words))
	return OutcomeCommitted
}

// Reset returns the reconciler to its initial empty state.
func (r *Reconciler) Reset() {
	r.committed = ""
	r.confidences = []*float64{}
	r.history = nil
	r.clearPending()
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	conf := make([]*float64, len(r.confidences))
	for i, c := range r.confidences {
		conf[i] = copyConfidence(c)
	}
	return Snapshot{
		CommittedText:      r.committed,
		PendingPartialText: r.pending,
		WordConfidences:    conf,
	}
}

func (r *Reconciler) commit(text string, incConf []*float64) {
	merged, kind := mergeTranscript(r.committed, text)
	n := len(textnorm.Tokenize(merged))
	conf := mergeConfidences(kind, r.committed, text, r.confidences, incConf, n)

	r.committed = merged
	r.confidences = conf
	r.remember(textnorm.Normalize(text))
}

func (r *Reconciler) remember(norm string) {
	r.history = append(r.history, norm)
	if over := len(r.history) - r.opts.HistorySize; over > 0 {
		r.history = append(r.history[:0], r.history[over:]...)
	}
}

func (r *Reconciler) clearPending() {
	r.pending = ""
	r.pendingWords = nil
	r.lastPartial = ""
}

// isRepeat reports whether a normalized final duplicates what has already
// been accepted.
func (r *Reconciler) isRepeat(norm string) bool {
	words := strings.Fields(norm)
	set := textnorm.WordSet(words)
	long := len(words) >= r.opts.MinRepeatWords

	if long {
		for _, h := range r.history {
			if textnorm.Jaccard(set, textnorm.WordSet(strings.Fields(h))) >= r.opts.SimilarityThreshold {
				return true
			}
		}
	}

	if r.committed == "" {
		return false
	}
	tail := textnorm.TailRunes(textnorm.Normalize(r.committed), r.opts.TailWindow)
	if strings.Contains(tail, norm) {
		return true
	}
	if !long {
		return false
	}

	tailSet := textnorm.WordSet(strings.Fields(tail))
	seen := 0
	for w := range set {
		if _, ok := tailSet[w]; ok {
			seen++
		}
	}
	return float64(seen) >= r.opts.TailOverlapRatio*float64(len(set))
}
