// Package mock provides a credential-free STT adapter that replays scripted
// practice utterances: progressive partials, a final with word confidences,
// and optionally a retransmitted final like the ones real recognizers send
// after a network hiccup.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"pronunciation-practice-service/internal/service/stt"
	"pronunciation-practice-service/internal/service/transcript"
)

// SimulatedUtterance is one scripted recognition sequence.
type SimulatedUtterance struct {
	Partials    []string  // Progressive partial transcripts
	Final       string    // Final transcript text
	Confidences []float64 // Per-word confidence of Final, 0–1
	RepeatFinal bool      // Send the final twice
}

// DefaultUtterances provides sample practice attempts.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:    []string{"The quick", "The quick brown", "The quick brown fox jumps"},
		Final:       "The quick brown fox jumps over the lazy dog",
		Confidences: []float64{0.97, 0.95, 0.91, 0.93, 0.88, 0.9, 0.96, 0.72, 0.94},
		RepeatFinal: true,
	},
	{
		Partials:    []string{"I sink", "I sink dis", "I sink dis is wery"},
		Final:       "I sink dis is wery good",
		Confidences: []float64{0.98, 0.61, 0.55, 0.92, 0.58, 0.95},
	},
	{
		Partials:    []string{"She sells", "She sells sea", "She sells sea shells"},
		Final:       "She sells sea shells by the sea shore",
		Confidences: []float64{0.94, 0.83, 0.9, 0.77, 0.91, 0.96, 0.89, 0.8},
	},
}

// Adapter implements stt.Adapter with scripted responses.
// One partial is emitted per audio frame; once the partials run out the
// final follows, mimicking end-of-utterance detection.
type Adapter struct {
	cb           stt.Callback
	mu           sync.Mutex
	utterance    SimulatedUtterance
	delay        time.Duration
	partialIndex int  // Next partial to send
	finalSent    bool // Ensures the script's final is sent once
	closed       bool
	done         chan struct{}
}

var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock adapter cycling through DefaultUtterances.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	return NewWithUtterance(DefaultUtterances[idx], 50*time.Millisecond)
}

// NewWithUtterance creates a mock adapter replaying u. Callbacks are delivered
// after delay on a separate goroutine; a zero delay delivers them
// synchronously from SendAudio.
func NewWithUtterance(u SimulatedUtterance, delay time.Duration) *Adapter {
	return &Adapter{utterance: u, delay: delay, done: make(chan struct{})}
}

// Start registers the callback.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cb = cb
	return nil
}

// SendAudio advances the script by one step.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	if a.closed || a.cb == nil {
		a.mu.Unlock()
		return nil
	}

	var step func(stt.Callback)
	if a.partialIndex < len(a.utterance.Partials) {
		text := a.utterance.Partials[a.partialIndex]
		a.partialIndex++
		step = func(cb stt.Callback) { cb.OnPartial(text, nil) }
	} else if !a.finalSent {
		a.finalSent = true
		step = a.sendFinal
	}
	cb := a.cb
	a.mu.Unlock()

	if step != nil {
		a.deliver(cb, step)
	}
	return nil
}

// Close ends the mock session. If the final was never sent it is sent now,
// as a recognizer flushing its last hypothesis would.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	flush := !a.finalSent && a.cb != nil
	a.finalSent = true
	cb := a.cb
	a.mu.Unlock()

	if !flush {
		close(a.done)
		return nil
	}
	a.deliver(cb, func(cb stt.Callback) {
		a.sendFinal(cb)
		close(a.done)
	})
	return nil
}

// Done is closed once Close has delivered every remaining callback.
func (a *Adapter) Done() <-chan struct{} {
	return a.done
}

func (a *Adapter) deliver(cb stt.Callback, step func(stt.Callback)) {
	if a.delay <= 0 {
		step(cb)
		return
	}
	go func() {
		time.Sleep(a.delay)
		step(cb)
	}()
}

func (a *Adapter) sendFinal(cb stt.Callback) {
	words := a.words()
	cb.OnFinal(a.utterance.Final, words)
	if a.utterance.RepeatFinal {
		cb.OnFinal(a.utterance.Final, words)
	}
}

func (a *Adapter) words() []transcript.WordHypothesis {
	tokens := strings.Fields(a.utterance.Final)
	words := make([]transcript.WordHypothesis, len(tokens))
	for i, tok := range tokens {
		words[i].Token = tok
		if i < len(a.utterance.Confidences) {
			c := a.utterance.Confidences[i]
			words[i].Confidence = &c
		}
	}
	return words
}
