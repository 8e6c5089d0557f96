package models

import "pronunciation-practice-service/internal/service/scoring"

// Control message types sent by the practice page.
const (
	ControlStart  = "start"
	ControlPause  = "pause"
	ControlResume = "resume"
	ControlStop   = "stop"
	ControlReset  = "reset"
)

// ControlMessage is a JSON text frame from the practice page. A start
// message names the sentence either by text or by catalog ID.
type ControlMessage struct {
	Type       string `json:"type" validate:"required,oneof=start pause resume stop reset"`
	Reference  string `json:"reference,omitempty" validate:"max=1024"`
	SentenceID string `json:"sentenceId,omitempty" validate:"max=64"`
}

// Server message types pushed to the practice page.
const (
	ServerTranscript = "transcript"
	ServerResult     = "result"
	ServerError      = "error"
	ServerState      = "state"
)

// ServerMessage is a JSON text frame sent to the practice page.
type ServerMessage struct {
	Type       string            `json:"type"`
	Transcript *TranscriptUpdate `json:"transcript,omitempty"`
	Result     *AttemptResult    `json:"result,omitempty"`
	State      string            `json:"state,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ScoreRequest is the body of the stateless scoring endpoint.
type ScoreRequest struct {
	Reference   string     `json:"reference" validate:"required,max=1024"`
	Hypothesis  string     `json:"hypothesis" validate:"max=4096"`
	Confidences []*float64 `json:"confidences,omitempty" validate:"max=512"`
}

// ScoreResponse is the reply of the stateless scoring endpoint.
type ScoreResponse struct {
	scoring.Result
	Hint      string   `json:"hint,omitempty"`
	WeakWords []string `json:"weakWords,omitempty"`
}
