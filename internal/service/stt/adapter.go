// Package stt defines the interface for streaming speech recognizers.
package stt

import (
	"context"

	"pronunciation-practice-service/internal/service/transcript"
)

// Callback receives recognition results from the STT provider.
type Callback interface {
	// OnPartial is called when an interim transcript is received.
	// words is nil when the provider reports no token detail.
	OnPartial(text string, words []transcript.WordHypothesis)

	// OnFinal is called when the provider settles a transcript fragment.
	OnFinal(text string, words []transcript.WordHypothesis)

	// OnError is called when an error occurs during recognition.
	OnError(err error)
}

// Adapter defines the interface for STT providers.
type Adapter interface {
	// Start begins a streaming recognition session.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends LINEAR16 little-endian audio bytes to the provider.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the session and releases resources.
	Close() error
}

// Drainer is implemented by adapters that can report when the result
// stream has ended after Close, meaning no further callbacks will follow.
type Drainer interface {
	Done() <-chan struct{}
}
