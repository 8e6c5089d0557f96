package transcript

import (
	"math"
	"testing"

	"pronunciation-practice-service/internal/textnorm"
)

func assertAligned(t *testing.T, r *Reconciler) {
	t.Helper()
	snap := r.Snapshot()
	if n := len(textnorm.Tokenize(snap.CommittedText)); len(snap.WordConfidences) != n {
		t.Fatalf("confidences out of step: %d entries for %d tokens in %q",
			len(snap.WordConfidences), n, snap.CommittedText)
	}
}

func TestReconciler_InitialState(t *testing.T) {
	r := NewReconciler(Options{})
	snap := r.Snapshot()

	if snap.CommittedText != "" || snap.PendingPartialText != "" {
		t.Errorf("expected empty state, got %+v", snap)
	}
	if snap.WordConfidences == nil || len(snap.WordConfidences) != 0 {
		t.Errorf("expected empty non-nil confidences, got %#v", snap.WordConfidences)
	}
}

func TestReconciler_OnPartial(t *testing.T) {
	r := NewReconciler(Options{})

	if got := r.OnPartial("   ", nil); got != OutcomeIgnored {
		t.Errorf("expected ignored for blank partial, got %v", got)
	}
	if got := r.OnPartial("I want", nil); got != OutcomePending {
		t.Errorf("expected pending, got %v", got)
	}
	if got := r.OnPartial("i WANT!", nil); got != OutcomeDuplicate {
		t.Errorf("expected duplicate for normalized repeat, got %v", got)
	}
	if got := r.OnPartial("I want to", nil); got != OutcomePending {
		t.Errorf("expected pending, got %v", got)
	}

	snap := r.Snapshot()
	if snap.PendingPartialText != "I want to" {
		t.Errorf("expected pending 'I want to', got %q", snap.PendingPartialText)
	}
	if snap.CommittedText != "" || len(snap.WordConfidences) != 0 {
		t.Errorf("partials must not commit, got %+v", snap)
	}

	r.OnFinal("I want to cancel", nil)
	if got := r.OnPartial("to cancel", nil); got != OutcomeContained {
		t.Errorf("expected contained partial to be dropped, got %v", got)
	}
	if r.Snapshot().PendingPartialText != "" {
		t.Error("expected pending to stay empty after contained partial")
	}
}

func TestReconciler_OnFinal(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnPartial("I want", nil)

	got := r.OnFinal("I want to", []WordHypothesis{
		{Token: "I", Confidence: f(0.9)},
		{Token: "want", Confidence: f(0.8)},
		{Token: "to", Confidence: f(0.7)},
	})
	if got != OutcomeCommitted {
		t.Fatalf("expected committed, got %v", got)
	}

	r.OnFinal("to cancel", []WordHypothesis{
		{Token: "to", Confidence: f(0.6)},
		{Token: "cancel", Confidence: f(0.5)},
	})

	snap := r.Snapshot()
	if snap.CommittedText != "I want to cancel" {
		t.Errorf("expected 'I want to cancel', got %q", snap.CommittedText)
	}
	if snap.PendingPartialText != "" {
		t.Errorf("expected pending cleared, got %q", snap.PendingPartialText)
	}
	assertConfidences(t, snap.WordConfidences, []*float64{f(0.9), f(0.8), f(0.7), f(0.5)})
}

func TestReconciler_OnFinal_EmptyClearsPending(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnPartial("hello", nil)

	if got := r.OnFinal("  ", nil); got != OutcomeIgnored {
		t.Errorf("expected ignored, got %v", got)
	}
	if snap := r.Snapshot(); snap.PendingPartialText != "" || snap.CommittedText != "" {
		t.Errorf("expected empty state, got %+v", snap)
	}
}

func TestReconciler_OnFinal_WithoutWordsUsesUnknown(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnFinal("good morning everyone", []WordHypothesis{})

	snap := r.Snapshot()
	assertConfidences(t, snap.WordConfidences, []*float64{nil, nil, nil})
}

func TestReconciler_NaNConfidenceIsUnknown(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnFinal("hello there", []WordHypothesis{
		{Token: "hello", Confidence: f(math.NaN())},
		{Token: "there", Confidence: f(0.5)},
	})
	assertConfidences(t, r.Snapshot().WordConfidences, []*float64{nil, f(0.5)})
}

func TestReconciler_LoopSuppression(t *testing.T) {
	r := NewReconciler(Options{})
	sentence := "this is a test sentence with enough words"

	if got := r.OnFinal(sentence, nil); got != OutcomeCommitted {
		t.Fatalf("expected first final committed, got %v", got)
	}
	before := r.Snapshot()

	if got := r.OnFinal(sentence, nil); got != OutcomeRepeat {
		t.Errorf("expected second final suppressed as repeat, got %v", got)
	}
	if after := r.Snapshot(); after.CommittedText != before.CommittedText {
		t.Errorf("expected committed text unchanged, got %q", after.CommittedText)
	}
	assertAligned(t, r)
}

func TestReconciler_ParaphrasedRepeatSuppressed(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnFinal("could you please tell me where the train station is", nil)

	got := r.OnFinal("please could you tell me where is the train station", nil)
	if got != OutcomeRepeat {
		t.Errorf("expected reordered repeat suppressed, got %v", got)
	}
}

func TestReconciler_RepeatAgainstHistory(t *testing.T) {
	r := NewReconciler(Options{TailWindow: 10})
	r.OnFinal("my favourite season is autumn because of the colours", nil)
	r.OnFinal("completely different words arrive here afterwards", nil)

	got := r.OnFinal("my favourite season is autumn because of the colours", nil)
	if got != OutcomeRepeat {
		t.Errorf("expected history match to suppress repeat, got %v", got)
	}
}

func TestReconciler_ShortRepeatsPreserved(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnFinal("yes", nil)

	if got := r.OnFinal("yes yes", nil); got != OutcomeCommitted {
		t.Errorf("expected short repeat accepted, got %v", got)
	}
	if snap := r.Snapshot(); snap.CommittedText != "yes yes" {
		t.Errorf("expected 'yes yes', got %q", snap.CommittedText)
	}
	assertAligned(t, r)
}

func TestReconciler_CommitPendingPartial(t *testing.T) {
	r := NewReconciler(Options{})

	if got := r.CommitPendingPartial(); got != OutcomeIgnored {
		t.Errorf("expected no-op with nothing pending, got %v", got)
	}

	r.OnFinal("good morning", nil)
	r.OnPartial("morning everyone", []WordHypothesis{
		{Token: "morning", Confidence: f(0.7)},
		{Token: "everyone", Confidence: f(0.6)},
	})

	if got := r.CommitPendingPartial(); got != OutcomeCommitted {
		t.Fatalf("expected committed, got %v", got)
	}
	snap := r.Snapshot()
	if snap.CommittedText != "good morning everyone" {
		t.Errorf("expected 'good morning everyone', got %q", snap.CommittedText)
	}
	if snap.PendingPartialText != "" {
		t.Errorf("expected pending cleared, got %q", snap.PendingPartialText)
	}
	assertConfidences(t, snap.WordConfidences, []*float64{nil, nil, f(0.6)})

	if got := r.CommitPendingPartial(); got != OutcomeIgnored {
		t.Errorf("expected second commit to be a no-op, got %v", got)
	}
}

func TestReconciler_ConfidencesTrackTokens(t *testing.T) {
	r := NewReconciler(Options{})
	events := []RecognitionEvent{
		{Text: "I want", IsFinal: false},
		{Text: "I want to", IsFinal: true, Words: []WordHypothesis{{Token: "I", Confidence: f(90)}}},
		{Text: "hello wor", IsFinal: true},
		{Text: "world peace", IsFinal: true, Words: []WordHypothesis{{Token: "world", Confidence: f(0.3)}, {Token: "peace", Confidence: f(0.2)}}},
		{Text: "...", IsFinal: true},
		{Text: "Peace, and quiet!", IsFinal: false},
		{Text: "concatenate", IsFinal: true},
		{Text: "cat", IsFinal: true, Words: []WordHypothesis{{Token: "cat", Confidence: f(0.1)}}},
		{Text: "a b c d e f g h", IsFinal: true},
	}

	for i, ev := range events {
		r.Apply(ev)
		if i%2 == 0 {
			r.CommitPendingPartial()
		}
		assertAligned(t, r)
	}
}

func TestReconciler_FinalSupersedesCommittedPartial(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnPartial("the quick bro", nil)
	r.CommitPendingPartial()

	got := r.OnFinal("the quick brown fox", []WordHypothesis{
		{Token: "the", Confidence: f(0.9)},
		{Token: "quick", Confidence: f(0.8)},
		{Token: "brown", Confidence: f(0.7)},
		{Token: "fox", Confidence: f(0.2)},
	})
	if got != OutcomeCommitted {
		t.Fatalf("expected committed, got %v", got)
	}

	snap := r.Snapshot()
	if snap.CommittedText != "the quick brown fox" {
		t.Errorf("expected 'the quick brown fox', got %q", snap.CommittedText)
	}
	assertConfidences(t, snap.WordConfidences, []*float64{f(0.9), f(0.8), f(0.7), f(0.2)})
}

func TestReconciler_SpliceInsideWordKeepsTailConfidences(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnFinal("good morning every", []WordHypothesis{
		{Token: "good", Confidence: f(0.9)},
		{Token: "morning", Confidence: f(0.8)},
		{Token: "every", Confidence: f(0.1)},
	})
	r.OnFinal("everyone is here", []WordHypothesis{
		{Token: "everyone", Confidence: f(0.7)},
		{Token: "is", Confidence: f(0.6)},
		{Token: "here", Confidence: f(0.5)},
	})

	snap := r.Snapshot()
	if snap.CommittedText != "good morning everyone is here" {
		t.Errorf("expected 'good morning everyone is here', got %q", snap.CommittedText)
	}
	assertConfidences(t, snap.WordConfidences, []*float64{f(0.9), f(0.8), f(0.7), f(0.6), f(0.5)})
}

func TestReconciler_SnapshotIsCopy(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnFinal("hello", []WordHypothesis{{Token: "hello", Confidence: f(0.5)}})

	snap := r.Snapshot()
	*snap.WordConfidences[0] = 0.1
	snap.WordConfidences[0] = nil

	again := r.Snapshot()
	if again.WordConfidences[0] == nil || *again.WordConfidences[0] != 0.5 {
		t.Error("snapshot mutation leaked into reconciler state")
	}
}

func TestReconciler_Reset(t *testing.T) {
	r := NewReconciler(Options{})
	r.OnFinal("this is a test sentence with enough words", nil)
	r.OnPartial("more words", nil)

	r.Reset()

	snap := r.Snapshot()
	if snap.CommittedText != "" || snap.PendingPartialText != "" || len(snap.WordConfidences) != 0 {
		t.Errorf("expected empty state after reset, got %+v", snap)
	}

	// History is cleared too, so the same sentence is accepted again.
	if got := r.OnFinal("this is a test sentence with enough words", nil); got != OutcomeCommitted {
		t.Errorf("expected commit after reset, got %v", got)
	}
}

func TestReconciler_ApplyDropsInvalidUTF8(t *testing.T) {
	r := NewReconciler(Options{})
	if got := r.Apply(RecognitionEvent{Text: "bad \xff bytes", IsFinal: true}); got != OutcomeIgnored {
		t.Errorf("expected ignored, got %v", got)
	}
	if r.Snapshot().CommittedText != "" {
		t.Error("expected no state change")
	}
}

func TestOutcome_String(t *testing.T) {
	if OutcomeRepeat.String() != "repeat" {
		t.Errorf("expected 'repeat', got %s", OutcomeRepeat.String())
	}
	if !OutcomeCommitted.Changed() || OutcomeContained.Changed() {
		t.Error("unexpected Changed() result")
	}
}
