// Package practice runs a live pronunciation attempt: audio goes to the
// recognizer, recognition events are reconciled into one transcript, and
// the transcript is scored against the reference sentence.
package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/observability/metrics"
	"pronunciation-practice-service/internal/schema"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/scoring"
	"pronunciation-practice-service/internal/service/stt"
	"pronunciation-practice-service/internal/service/transcript"
	"pronunciation-practice-service/internal/textnorm"
)

var (
	ErrEmptyReference = errors.New("reference sentence has no words")
	ErrLimitExceeded  = errors.New("attempt limit exceeded")
	ErrSessionClosed  = errors.New("session closed")
)

// Publisher receives session events. *events.Publisher satisfies it.
type Publisher interface {
	PublishTranscript(ctx context.Context, update models.TranscriptUpdate) error
	PublishResult(ctx context.Context, result models.AttemptResult) error
}

// Limits defines safety guardrails for a single attempt.
type Limits struct {
	MaxAudioBytes int64         // Max LINEAR16 bytes forwarded per attempt
	MaxDuration   time.Duration // Max wall-clock attempt duration
	MaxEvents     int           // Max recognition events per attempt
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 4 * 1024 * 1024, // ~2 minutes at 16kHz 16-bit mono
		MaxDuration:   2 * time.Minute,
		MaxEvents:     1000,
	}
}

// Options configures a Session.
type Options struct {
	Provider     string // label for logs and metrics
	NewAdapter   AdapterFactory
	Publisher    Publisher // optional
	Validator    *schema.Validator
	Metrics      *metrics.Metrics
	Cache        *scoring.Cache // optional
	Reconciler   transcript.Options
	Limits       Limits
	QueueSize    int           // buffered recognition events and outgoing messages
	DrainTimeout time.Duration // how long Stop waits for the recognizer's last final
}

const (
	defaultQueueSize    = 64
	defaultDrainTimeout = 500 * time.Millisecond
)

type attempt struct {
	id        string
	reference string
	adapter   stt.Adapter
	started   time.Time

	// guarded by Session.mu
	audioBytes int64
	draining   bool

	// touched only by the run goroutine
	events int

	flushed   chan struct{}
	flushOnce sync.Once
	closeOnce sync.Once
}

// Session is one practice page connection. It owns the transcript
// reconciler and serializes every mutation of it on a single goroutine.
type Session struct {
	id        string
	opts      Options
	logger    zerolog.Logger
	lifecycle *Lifecycle
	startedAt time.Time

	reconciler *transcript.Reconciler // run goroutine only

	mu      sync.Mutex
	current *attempt

	inbox   chan func()
	updates chan models.ServerMessage
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSession creates a session and starts its event loop. Close must be
// called to release it.
func NewSession(opts Options) (*Session, error) {
	if opts.NewAdapter == nil {
		return nil, errors.New("practice: adapter factory is required")
	}
	if opts.Validator == nil {
		opts.Validator = schema.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if opts.Provider == "" {
		opts.Provider = "unknown"
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s := &Session{
		id:         id,
		opts:       opts,
		logger:     logging.WithSession(id),
		lifecycle:  NewLifecycle(),
		startedAt:  time.Now(),
		reconciler: transcript.NewReconciler(opts.Reconciler),
		inbox:      make(chan func(), opts.QueueSize),
		updates:    make(chan models.ServerMessage, opts.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	opts.Metrics.RecordSessionStart()
	s.logger.Info().Str("provider", opts.Provider).Msg("Practice session opened")

	go s.run()
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state of the current attempt.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// Updates delivers transcript, result, state and error messages. Messages
// are dropped when the reader falls more than QueueSize behind. The channel
// is closed by Close.
func (s *Session) Updates() <-chan models.ServerMessage {
	return s.updates
}

// Start begins an attempt at reference, abandoning any attempt in progress.
func (s *Session) Start(ctx context.Context, reference string) error {
	if len(textnorm.Tokenize(reference)) == 0 {
		return ErrEmptyReference
	}
	s.abortCurrent("restarted")

	adapter, err := s.opts.NewAdapter(ctx)
	if err != nil {
		s.opts.Metrics.RecordSTTError(s.opts.Provider)
		return fmt.Errorf("open recognizer: %w", err)
	}

	a := &attempt{
		id:        uuid.NewString(),
		reference: reference,
		adapter:   adapter,
		started:   time.Now(),
		flushed:   make(chan struct{}),
	}

	s.mu.Lock()
	s.current = a
	s.mu.Unlock()
	s.lifecycle.Begin(a.id)

	// Queued ahead of any event from the new recognizer.
	if !s.enqueue(func() {
		s.reconciler.Reset()
		s.pushState(a.id)
	}) {
		s.closeAdapter(a)
		return ErrSessionClosed
	}

	if err := adapter.Start(s.ctx, &attemptCallback{s: s, a: a}); err != nil {
		s.opts.Metrics.RecordSTTError(s.opts.Provider)
		s.abort(a, "stt_start")
		return fmt.Errorf("start recognizer: %w", err)
	}

	s.opts.Metrics.RecordAttemptStarted()
	s.attemptLogger(a).Info().Int("referenceWords", len(textnorm.Tokenize(reference))).Msg("Attempt started")
	return nil
}

// SendAudio converts float32 PCM samples to LINEAR16 and forwards them.
// Returns ErrNotListening while paused or stopping, in which case the
// samples are dropped.
func (s *Session) SendAudio(ctx context.Context, samples []float32) error {
	pcm := audio.Float32ToLinear16(samples)

	s.mu.Lock()
	a := s.current
	if a == nil {
		s.mu.Unlock()
		return ErrNoAttempt
	}
	state := s.lifecycle.State()
	if state.IsTerminal() {
		s.mu.Unlock()
		return ErrAttemptClosed
	}
	if state != StateListening || a.draining {
		s.mu.Unlock()
		return ErrNotListening
	}
	a.audioBytes += int64(len(pcm))
	total := a.audioBytes
	s.mu.Unlock()

	limits := s.opts.Limits
	if limits.MaxAudioBytes > 0 && total > limits.MaxAudioBytes {
		s.opts.Metrics.RecordLimitExceeded("audio_bytes")
		s.abort(a, "max_audio_bytes")
		return fmt.Errorf("%w: max audio bytes %d > %d", ErrLimitExceeded, total, limits.MaxAudioBytes)
	}
	if limits.MaxDuration > 0 && time.Since(a.started) > limits.MaxDuration {
		s.opts.Metrics.RecordLimitExceeded("duration")
		s.abort(a, "max_duration")
		return fmt.Errorf("%w: max duration %v", ErrLimitExceeded, limits.MaxDuration)
	}

	s.opts.Metrics.RecordAudioReceived(len(pcm))
	return a.adapter.SendAudio(ctx, pcm)
}

// Pause commits the pending partial and stops accepting audio.
func (s *Session) Pause() error {
	a := s.attempt()
	if a == nil {
		return ErrNoAttempt
	}
	if err := s.lifecycle.Pause(); err != nil {
		return err
	}
	s.enqueue(func() {
		if s.lifecycle.AttemptId() != a.id {
			return
		}
		if s.reconciler.CommitPendingPartial().Changed() {
			s.emitTranscript(a)
		}
		s.pushState(a.id)
	})
	return nil
}

// Resume accepts audio again after Pause.
func (s *Session) Resume() error {
	a := s.attempt()
	if a == nil {
		return ErrNoAttempt
	}
	if err := s.lifecycle.Resume(); err != nil {
		return err
	}
	s.enqueue(func() { s.pushState(a.id) })
	return nil
}

// Stop ends the attempt and scores it. The recognizer is closed first and
// given DrainTimeout to deliver its last final.
func (s *Session) Stop(ctx context.Context) (*models.AttemptResult, error) {
	s.mu.Lock()
	a := s.current
	if a == nil {
		s.mu.Unlock()
		return nil, ErrNoAttempt
	}
	if s.lifecycle.State().IsTerminal() || a.draining {
		s.mu.Unlock()
		return nil, ErrAttemptClosed
	}
	a.draining = true
	s.mu.Unlock()

	s.closeAdapter(a)

	var ended <-chan struct{}
	if d, ok := a.adapter.(stt.Drainer); ok {
		ended = d.Done()
	}
	timer := time.NewTimer(s.opts.DrainTimeout)
	defer timer.Stop()
	select {
	case <-a.flushed:
	case <-ended:
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	type reply struct {
		result *models.AttemptResult
		err    error
	}
	ch := make(chan reply, 1)
	if !s.enqueue(func() {
		res, err := s.finish(a)
		ch <- reply{res, err}
	}) {
		return nil, ErrSessionClosed
	}

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrSessionClosed
	}
}

// Reset abandons any attempt and clears the transcript.
func (s *Session) Reset() {
	s.abortCurrent("reset")
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.lifecycle.Reset()
	s.enqueue(func() {
		s.reconciler.Reset()
		s.push(models.ServerMessage{Type: models.ServerState, State: StateIdle.String()})
	})
}

// Close abandons any attempt, stops the event loop and closes Updates.
func (s *Session) Close() {
	s.abortCurrent("session_closed")
	s.cancel()
	<-s.done
	s.opts.Metrics.RecordSessionEnd(time.Since(s.startedAt).Seconds())
	s.logger.Info().Dur("duration", time.Since(s.startedAt)).Msg("Practice session closed")
}

// Transcript returns a copy of the reconciled transcript.
func (s *Session) Transcript(ctx context.Context) (transcript.Snapshot, error) {
	ch := make(chan transcript.Snapshot, 1)
	if !s.enqueue(func() { ch <- s.reconciler.Snapshot() }) {
		return transcript.Snapshot{}, ErrSessionClosed
	}
	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return transcript.Snapshot{}, ctx.Err()
	case <-s.done:
		return transcript.Snapshot{}, ErrSessionClosed
	}
}

func (s *Session) run() {
	defer close(s.done)
	defer close(s.updates)
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

// enqueue hands fn to the run goroutine. Must not be called from it.
func (s *Session) enqueue(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) attempt() *attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) attemptLogger(a *attempt) *zerolog.Logger {
	logger := logging.WithAttempt(s.id, a.id, s.opts.Provider)
	return &logger
}

// --- recognition events ---

type attemptCallback struct {
	s *Session
	a *attempt
}

func (c *attemptCallback) OnPartial(text string, words []transcript.WordHypothesis) {
	c.s.recognize(c.a, transcript.RecognitionEvent{Text: text, Words: words})
}

func (c *attemptCallback) OnFinal(text string, words []transcript.WordHypothesis) {
	c.s.recognize(c.a, transcript.RecognitionEvent{Text: text, IsFinal: true, Words: words})
}

// OnError aborts a live attempt. Once Stop has closed the recognizer the
// stream is expected to end, so an error only ends the drain.
func (c *attemptCallback) OnError(err error) {
	if c.s.isDraining(c.a) {
		c.s.attemptLogger(c.a).Debug().Err(err).Msg("Recognizer ended while draining")
		c.a.signalFlushed()
		return
	}
	c.s.opts.Metrics.RecordSTTError(c.s.opts.Provider)
	c.s.attemptLogger(c.a).Error().Err(err).Msg("Recognizer failed")
	c.s.abort(c.a, "stt_error")
}

// recognize queues ev for the event loop. A final that arrives after Stop
// releases the drain wait once it is queued, so finish always runs after it.
func (s *Session) recognize(a *attempt, ev transcript.RecognitionEvent) {
	trailing := ev.IsFinal && s.isDraining(a)
	if trailing {
		defer a.signalFlushed()
	}
	if err := s.opts.Validator.Validate(ev); err != nil {
		s.opts.Metrics.RecordMalformedEvent(schema.Reason(err))
		s.attemptLogger(a).Warn().Err(err).Bool("isFinal", ev.IsFinal).Msg("Dropping malformed recognition event")
		return
	}
	s.enqueue(func() { s.apply(a, ev) })
}

func (s *Session) isDraining(a *attempt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return a.draining
}

// apply runs on the event loop.
func (s *Session) apply(a *attempt, ev transcript.RecognitionEvent) {
	kind := "partial"
	if ev.IsFinal {
		kind = "final"
	}
	if !s.lifecycle.Accepting(a.id) {
		s.opts.Metrics.RecordRecognitionEvent(kind, "stale")
		return
	}

	a.events++
	if limit := s.opts.Limits.MaxEvents; limit > 0 && a.events > limit {
		s.opts.Metrics.RecordLimitExceeded("events")
		s.abort(a, "max_events")
		return
	}

	outcome := s.reconciler.Apply(ev)
	s.opts.Metrics.RecordRecognitionEvent(kind, outcome.String())
	s.attemptLogger(a).Debug().
		Str("kind", kind).
		Str("outcome", outcome.String()).
		Str("text", ev.Text).
		Msg("Recognition event applied")

	if outcome.Changed() {
		s.emitTranscript(a)
	}
}

func (a *attempt) signalFlushed() {
	a.flushOnce.Do(func() { close(a.flushed) })
}

// emitTranscript runs on the event loop.
func (s *Session) emitTranscript(a *attempt) {
	snap := s.reconciler.Snapshot()
	hypothesis := transcript.MergeTranscript(snap.CommittedText, snap.PendingPartialText)

	// Pending words have no confidence until committed.
	conf := make([]*float64, len(textnorm.Tokenize(hypothesis)))
	copy(conf, snap.WordConfidences)

	result := s.align(a.reference, hypothesis, conf)
	update := models.TranscriptUpdate{
		EventType:          models.EventTranscriptUpdate,
		SessionID:          s.id,
		AttemptID:          a.id,
		Timestamp:          time.Now().UnixMilli(),
		CommittedText:      snap.CommittedText,
		PendingPartialText: snap.PendingPartialText,
		WordConfidences:    snap.WordConfidences,
		Alignment:          &result,
	}
	s.push(models.ServerMessage{Type: models.ServerTranscript, Transcript: &update})

	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.PublishTranscript(s.ctx, update); err != nil {
			s.attemptLogger(a).Warn().Err(err).Msg("Failed to publish transcript update")
		}
	}
}

// finish runs on the event loop.
func (s *Session) finish(a *attempt) (*models.AttemptResult, error) {
	if s.lifecycle.AttemptId() != a.id {
		return nil, ErrAttemptClosed
	}
	if err := s.lifecycle.Finish(); err != nil {
		return nil, err
	}

	s.reconciler.CommitPendingPartial()
	snap := s.reconciler.Snapshot()
	alignment := s.align(a.reference, snap.CommittedText, snap.WordConfidences)
	hint, _ := scoring.PickCoachingHint(alignment.Mismatches)

	result := &models.AttemptResult{
		EventType:  models.EventAttemptResult,
		SessionID:  s.id,
		AttemptID:  a.id,
		Timestamp:  time.Now().UnixMilli(),
		Reference:  a.reference,
		Transcript: snap.CommittedText,
		Alignment:  alignment,
		Hint:       hint,
		WeakWords:  alignment.WeakWords(),
		DurationMs: time.Since(a.started).Milliseconds(),
	}

	s.opts.Metrics.RecordAttemptCompleted(alignment.Accuracy)
	s.attemptLogger(a).Info().
		Float64("accuracy", alignment.Accuracy).
		Int("matches", alignment.Counts.Matches).
		Int("substitutions", alignment.Counts.Substitutions).
		Int("insertions", alignment.Counts.Insertions).
		Int("deletions", alignment.Counts.Deletions).
		Int64("durationMs", result.DurationMs).
		Msg("Attempt finished")

	s.push(models.ServerMessage{Type: models.ServerResult, Result: result})
	s.pushState(a.id)

	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.PublishResult(s.ctx, *result); err != nil {
			s.attemptLogger(a).Warn().Err(err).Msg("Failed to publish attempt result")
		}
	}
	return result, nil
}

func (s *Session) align(reference, hypothesis string, conf []*float64) scoring.Result {
	start := time.Now()
	var res scoring.Result
	if s.opts.Cache != nil {
		res = s.opts.Cache.Align(reference, hypothesis, conf)
	} else {
		res = scoring.Align(reference, hypothesis, conf)
	}
	s.opts.Metrics.RecordAlignment(time.Since(start).Seconds())
	return res
}

// --- teardown ---

func (s *Session) abortCurrent(reason string) {
	if a := s.attempt(); a != nil {
		s.abort(a, reason)
	}
}

// abort drops a live attempt without a score. Safe from any goroutine.
func (s *Session) abort(a *attempt, reason string) {
	if s.lifecycle.AttemptId() != a.id || !s.lifecycle.Abort() {
		return
	}
	s.opts.Metrics.RecordAttemptAborted(reason)
	s.attemptLogger(a).Warn().Str("reason", reason).Msg("Attempt aborted")

	go s.closeAdapter(a)
	go s.enqueue(func() {
		s.push(models.ServerMessage{Type: models.ServerError, Error: reason})
		s.pushState(a.id)
	})
}

func (s *Session) closeAdapter(a *attempt) {
	a.closeOnce.Do(func() {
		if err := a.adapter.Close(); err != nil {
			s.attemptLogger(a).Warn().Err(err).Msg("Failed to close recognizer")
		}
	})
}

// --- outgoing messages (event loop only) ---

func (s *Session) pushState(attemptId string) {
	if s.lifecycle.AttemptId() != attemptId {
		return
	}
	s.push(models.ServerMessage{Type: models.ServerState, State: s.lifecycle.State().String()})
}

func (s *Session) push(msg models.ServerMessage) {
	select {
	case s.updates <- msg:
	default:
		s.logger.Warn().Str("type", msg.Type).Msg("Update queue full, dropping message")
	}
}
