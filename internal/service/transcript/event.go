// Package transcript reconciles the partial and final fragments of a
// streaming recognizer into one growing transcript, keeping a per-word
// confidence array aligned with it.
package transcript

// WordHypothesis is token-level detail attached to a recognition event.
// Confidence is nil when the recognizer did not report one; the scale may be
// [0,1] or [0,100].
type WordHypothesis struct {
	Token      string   `json:"token" validate:"required,utf8"`
	Confidence *float64 `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// RecognitionEvent is one message from the streaming recognizer.
type RecognitionEvent struct {
	Text    string           `json:"text" validate:"utf8,max=4096"`
	IsFinal bool             `json:"isFinal"`
	Words   []WordHypothesis `json:"words,omitempty" validate:"omitempty,max=512,dive"`
}

// Snapshot is an immutable copy of the reconciler state.
type Snapshot struct {
	CommittedText      string     `json:"committedText"`
	PendingPartialText string     `json:"pendingPartialText"`
	WordConfidences    []*float64 `json:"wordConfidences"`
}

// Outcome tells the caller what an event did to the transcript.
type Outcome int

const (
	// OutcomeIgnored - empty or whitespace-only text.
	OutcomeIgnored Outcome = iota
	// OutcomeDuplicate - identical to the previous partial.
	OutcomeDuplicate
	// OutcomeContained - already present in the committed text.
	OutcomeContained
	// OutcomeRepeat - rejected by the loop detector.
	OutcomeRepeat
	// OutcomePending - the pending partial was replaced.
	OutcomePending
	// OutcomeCommitted - the committed text was merged.
	OutcomeCommitted
)

// String returns the outcome label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeContained:
		return "contained"
	case OutcomeRepeat:
		return "repeat"
	case OutcomePending:
		return "pending"
	case OutcomeCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// Changed reports whether the outcome mutated the visible state.
func (o Outcome) Changed() bool {
	return o == OutcomePending || o == OutcomeCommitted
}
