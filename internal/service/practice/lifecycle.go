package practice

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a sentence attempt.
type State int

const (
	// StateIdle - No attempt in progress.
	StateIdle State = iota
	// StateListening - Audio is forwarded and recognition events are applied.
	StateListening
	// StatePaused - Pending partial committed; audio is dropped until resumed.
	StatePaused
	// StateFinished - Attempt scored. Terminal until the next Begin.
	StateFinished
	// StateAborted - Attempt abandoned without a score (STT error, limits).
	StateAborted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StatePaused:
		return "PAUSED"
	case StateFinished:
		return "FINISHED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the attempt is over (FINISHED or ABORTED).
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateAborted
}

// Errors for invalid state transitions.
var (
	ErrNoAttempt     = errors.New("no attempt in progress")
	ErrNotListening  = errors.New("attempt is not listening")
	ErrNotPaused     = errors.New("attempt is not paused")
	ErrAttemptClosed = errors.New("attempt is finished or aborted")
)

// Lifecycle manages the state machine for the current attempt.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	IDLE ──Begin──→ LISTENING ⇄ PAUSED
//	                    │          │
//	                    └─Finish───┴──→ FINISHED
//	                    └─Abort────┴──→ ABORTED
//
// Begin is allowed from any state and starts a fresh attempt.
type Lifecycle struct {
	mu        sync.RWMutex
	attemptId string
	state     State
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// AttemptId returns the current attempt ID ("" when idle).
func (l *Lifecycle) AttemptId() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attemptId
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Accepting reports whether attemptId is current and still taking
// recognition events.
func (l *Lifecycle) Accepting(attemptId string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return attemptId == l.attemptId && (l.state == StateListening || l.state == StatePaused)
}

// Begin starts a new attempt, replacing whatever came before.
func (l *Lifecycle) Begin(attemptId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attemptId = attemptId
	l.state = StateListening
}

// Pause transitions LISTENING → PAUSED.
func (l *Lifecycle) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateListening:
		l.state = StatePaused
		return nil
	case StateIdle:
		return ErrNoAttempt
	case StatePaused:
		return ErrNotListening
	default:
		return ErrAttemptClosed
	}
}

// Resume transitions PAUSED → LISTENING.
func (l *Lifecycle) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StatePaused:
		l.state = StateListening
		return nil
	case StateIdle:
		return ErrNoAttempt
	case StateListening:
		return ErrNotPaused
	default:
		return ErrAttemptClosed
	}
}

// Finish transitions LISTENING or PAUSED → FINISHED.
func (l *Lifecycle) Finish() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateListening, StatePaused:
		l.state = StateFinished
		return nil
	case StateIdle:
		return ErrNoAttempt
	default:
		return ErrAttemptClosed
	}
}

// Abort transitions a live attempt to ABORTED.
// Returns true if the attempt was aborted, false if none was live.
func (l *Lifecycle) Abort() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateListening && l.state != StatePaused {
		return false
	}
	l.state = StateAborted
	return true
}

// Reset returns to IDLE and forgets the attempt.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attemptId = ""
	l.state = StateIdle
}
