package schema

import (
	"errors"
	"testing"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/transcript"
)

func conf(v float64) *float64 { return &v }

func TestValidate_RecognitionEvent(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		event   transcript.RecognitionEvent
		wantErr bool
		reason  string
	}{
		{"valid partial", transcript.RecognitionEvent{Text: "hello"}, false, ""},
		{"empty text is allowed", transcript.RecognitionEvent{Text: "", IsFinal: true}, false, ""},
		{"valid words", transcript.RecognitionEvent{Text: "hi", Words: []transcript.WordHypothesis{{Token: "hi", Confidence: conf(0.7)}}}, false, ""},
		{"percent confidence", transcript.RecognitionEvent{Text: "hi", Words: []transcript.WordHypothesis{{Token: "hi", Confidence: conf(87)}}}, false, ""},
		{"invalid utf8", transcript.RecognitionEvent{Text: "bad \xff"}, true, "utf8"},
		{"empty token", transcript.RecognitionEvent{Text: "hi", Words: []transcript.WordHypothesis{{Token: ""}}}, true, "required"},
		{"negative confidence", transcript.RecognitionEvent{Text: "hi", Words: []transcript.WordHypothesis{{Token: "hi", Confidence: conf(-1)}}}, true, "gte"},
		{"confidence over 100", transcript.RecognitionEvent{Text: "hi", Words: []transcript.WordHypothesis{{Token: "hi", Confidence: conf(101)}}}, true, "lte"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
			if got := Reason(err); got != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, got)
			}
		})
	}
}

func TestValidate_ControlMessage(t *testing.T) {
	v := New()

	if err := v.Validate(models.ControlMessage{Type: "start", Reference: "The quick brown fox"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.Validate(models.ControlMessage{Type: "pause"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.Validate(models.ControlMessage{Type: "start", SentenceID: "th-1"}); err != nil {
		t.Errorf("unexpected error for start by sentence ID: %v", err)
	}
	err := v.Validate(models.ControlMessage{Type: "start"})
	if err == nil {
		t.Error("expected start without reference to fail")
	} else if got := Reason(err); got != "required_without" {
		t.Errorf("expected reason 'required_without', got %q", got)
	}
	if err := v.Validate(&models.ControlMessage{Type: "start"}); err == nil {
		t.Error("expected start without reference to fail through a pointer")
	}
	if err := v.Validate(models.ControlMessage{Type: "dance"}); err == nil {
		t.Error("expected unknown type to fail")
	}
}

func TestReason_NonValidationError(t *testing.T) {
	if got := Reason(errors.New("other")); got != "unknown" {
		t.Errorf("expected 'unknown', got %q", got)
	}
}
