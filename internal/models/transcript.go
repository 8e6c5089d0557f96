// Package models defines the data structures exchanged with clients and
// published as events.
package models

import (
	"pronunciation-practice-service/internal/service/scoring"
)

// Event types.
const (
	EventTranscriptUpdate = "practice.transcript.update"
	EventAttemptResult    = "practice.attempt.result"
)

// TranscriptUpdate carries the live transcript and its alignment against the
// reference after a recognition event changed it.
type TranscriptUpdate struct {
	EventType          string          `json:"eventType"`
	SessionID          string          `json:"sessionId"`
	AttemptID          string          `json:"attemptId"`
	Timestamp          int64           `json:"timestamp"`
	CommittedText      string          `json:"committedText"`
	PendingPartialText string          `json:"pendingPartialText"`
	WordConfidences    []*float64      `json:"wordConfidences"`
	Alignment          *scoring.Result `json:"alignment,omitempty"`
}

// AttemptResult is the end-of-attempt score.
type AttemptResult struct {
	EventType  string         `json:"eventType"`
	SessionID  string         `json:"sessionId"`
	AttemptID  string         `json:"attemptId"`
	Timestamp  int64          `json:"timestamp"`
	Reference  string         `json:"reference"`
	Transcript string         `json:"transcript"`
	Alignment  scoring.Result `json:"alignment"`
	Hint       string         `json:"hint,omitempty"`
	WeakWords  []string       `json:"weakWords,omitempty"`
	DurationMs int64          `json:"durationMs"`
}
