package practice

import (
	"errors"
	"testing"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", lc.State())
	}
	if lc.AttemptId() != "" {
		t.Errorf("expected empty attempt id, got %q", lc.AttemptId())
	}
	if lc.Accepting("") {
		t.Error("expected idle lifecycle not to accept events")
	}
}

func TestLifecycle_PauseResume(t *testing.T) {
	lc := NewLifecycle()
	lc.Begin("a-1")

	if err := lc.Pause(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StatePaused {
		t.Errorf("expected StatePaused, got %v", lc.State())
	}
	if !lc.Accepting("a-1") {
		t.Error("expected paused attempt to accept late events")
	}
	if err := lc.Pause(); !errors.Is(err, ErrNotListening) {
		t.Errorf("expected ErrNotListening, got %v", err)
	}
	if err := lc.Resume(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := lc.Resume(); !errors.Is(err, ErrNotPaused) {
		t.Errorf("expected ErrNotPaused, got %v", err)
	}
}

func TestLifecycle_IdleTransitions(t *testing.T) {
	lc := NewLifecycle()

	if err := lc.Pause(); !errors.Is(err, ErrNoAttempt) {
		t.Errorf("Pause: expected ErrNoAttempt, got %v", err)
	}
	if err := lc.Resume(); !errors.Is(err, ErrNoAttempt) {
		t.Errorf("Resume: expected ErrNoAttempt, got %v", err)
	}
	if err := lc.Finish(); !errors.Is(err, ErrNoAttempt) {
		t.Errorf("Finish: expected ErrNoAttempt, got %v", err)
	}
	if lc.Abort() {
		t.Error("expected Abort to report false when idle")
	}
}

func TestLifecycle_Finish(t *testing.T) {
	lc := NewLifecycle()
	lc.Begin("a-1")
	_ = lc.Pause()

	if err := lc.Finish(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.State() != StateFinished {
		t.Errorf("expected StateFinished, got %v", lc.State())
	}
	if !lc.State().IsTerminal() {
		t.Error("expected FINISHED to be terminal")
	}
	if lc.Accepting("a-1") {
		t.Error("expected finished attempt to reject events")
	}
	if err := lc.Finish(); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("expected ErrAttemptClosed, got %v", err)
	}
	if lc.Abort() {
		t.Error("expected Abort to report false after finish")
	}
}

func TestLifecycle_Abort(t *testing.T) {
	lc := NewLifecycle()
	lc.Begin("a-1")

	if !lc.Abort() {
		t.Fatal("expected Abort to succeed")
	}
	if lc.State() != StateAborted {
		t.Errorf("expected StateAborted, got %v", lc.State())
	}
	if err := lc.Pause(); !errors.Is(err, ErrAttemptClosed) {
		t.Errorf("expected ErrAttemptClosed, got %v", err)
	}
}

func TestLifecycle_BeginReplacesAttempt(t *testing.T) {
	lc := NewLifecycle()
	lc.Begin("a-1")
	lc.Abort()
	lc.Begin("a-2")

	if lc.State() != StateListening {
		t.Errorf("expected StateListening, got %v", lc.State())
	}
	if lc.Accepting("a-1") {
		t.Error("expected old attempt to be rejected")
	}
	if !lc.Accepting("a-2") {
		t.Error("expected new attempt to be accepted")
	}
}

func TestLifecycle_Reset(t *testing.T) {
	lc := NewLifecycle()
	lc.Begin("a-1")
	lc.Reset()

	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", lc.State())
	}
	if lc.AttemptId() != "" {
		t.Errorf("expected empty attempt id, got %q", lc.AttemptId())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "IDLE"},
		{StateListening, "LISTENING"},
		{StatePaused, "PAUSED"},
		{StateFinished, "FINISHED"},
		{StateAborted, "ABORTED"},
		{State(99), "UNKNOWN(99)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}
