package app

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pronunciation-practice-service/internal/catalog"
	"pronunciation-practice-service/internal/config"
	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/logging"
	"pronunciation-practice-service/internal/observability/metrics"
	"pronunciation-practice-service/internal/schema"
	"pronunciation-practice-service/internal/service/practice"
	"pronunciation-practice-service/internal/service/scoring"
	"pronunciation-practice-service/internal/service/transcript"
)

// ErrUnknownSentence is returned when a catalog ID does not resolve.
var ErrUnknownSentence = errors.New("unknown sentence id")

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Catalog     *catalog.Catalog
	Metrics     *metrics.Metrics

	publisher  practice.Publisher
	validator  *schema.Validator
	cache      *scoring.Cache
	newAdapter practice.AdapterFactory
	ready      atomic.Bool
}

// Option customizes an Application.
type Option func(*Application)

// WithPublisher sets the event publisher handed to practice sessions.
func WithPublisher(p practice.Publisher) Option {
	return func(a *Application) { a.publisher = p }
}

// WithMetrics replaces the global metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Application) { a.Metrics = m }
}

// WithAdapterFactory overrides the recognizer chosen by configuration.
func WithAdapterFactory(f practice.AdapterFactory) Option {
	return func(a *Application) { a.newAdapter = f }
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration, opts ...Option) (*Application, error) {
	a := &Application{
		Cfg:       cfg,
		Logger:    logging.WithComponent("application"),
		Metrics:   metrics.DefaultMetrics,
		validator: schema.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	cat, err := catalog.Load(cfg.Catalog.SentencesFile)
	if err != nil {
		return nil, fmt.Errorf("load sentence catalog: %w", err)
	}
	a.Catalog = cat

	cache, err := scoring.NewCache(cfg.Scoring.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create alignment cache: %w", err)
	}
	a.cache = cache

	if a.newAdapter == nil {
		factory, err := practice.NewAdapterFactory(cfg.STT)
		if err != nil {
			return nil, err
		}
		a.newAdapter = factory
	}

	a.Logger.Info().
		Str("sttProvider", cfg.STT.Provider).
		Int("sentences", cat.Len()).
		Msg("Pronunciation practice application created")
	return a, nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Pronunciation practice service starting")
	return nil
}

// Ready reports whether the service is accepting traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.ready.Store(false)
	a.Logger.Info().Msg("Pronunciation practice service shutting down")
}

// Validate checks a client message against its struct tags.
func (a *Application) Validate(v any) error {
	return a.validator.Validate(v)
}

// NewSession opens a practice session wired to the configured recognizer,
// publisher and limits.
func (a *Application) NewSession() (*practice.Session, error) {
	cfg := a.Cfg
	return practice.NewSession(practice.Options{
		Provider:   cfg.STT.Provider,
		NewAdapter: a.newAdapter,
		Publisher:  a.publisher,
		Validator:  a.validator,
		Metrics:    a.Metrics,
		Cache:      a.cache,
		Reconciler: transcript.Options{
			HistorySize:         cfg.Reconciler.HistorySize,
			SimilarityThreshold: cfg.Reconciler.SimilarityThreshold,
			MinRepeatWords:      cfg.Reconciler.MinRepeatWords,
			TailWindow:          cfg.Reconciler.TailWindow,
			TailOverlapRatio:    cfg.Reconciler.TailOverlapRatio,
		},
		Limits: practice.Limits{
			MaxAudioBytes: cfg.AttemptLimits.MaxAudioBytes,
			MaxDuration:   cfg.AttemptLimits.MaxDuration,
			MaxEvents:     cfg.AttemptLimits.MaxEvents,
		},
		DrainTimeout: cfg.AttemptLimits.DrainTimeout,
	})
}

// ResolveReference returns the sentence to practice for a start message.
// Inline text wins over a catalog ID.
func (a *Application) ResolveReference(msg models.ControlMessage) (string, error) {
	if msg.Reference != "" {
		return msg.Reference, nil
	}
	s, ok := a.Catalog.Get(msg.SentenceID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSentence, msg.SentenceID)
	}
	return s.Text, nil
}

// Score aligns a finished hypothesis against its reference without a live
// session.
func (a *Application) Score(req models.ScoreRequest) (models.ScoreResponse, error) {
	if err := a.validator.Validate(req); err != nil {
		return models.ScoreResponse{}, err
	}

	start := time.Now()
	res := a.cache.Align(req.Reference, req.Hypothesis, req.Confidences)
	a.Metrics.RecordAlignment(time.Since(start).Seconds())

	hint, _ := scoring.PickCoachingHint(res.Mismatches)
	return models.ScoreResponse{
		Result:    res,
		Hint:      hint,
		WeakWords: res.WeakWords(),
	}, nil
}
