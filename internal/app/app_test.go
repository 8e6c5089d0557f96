package app

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"pronunciation-practice-service/internal/config"
	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/metrics"
	"pronunciation-practice-service/internal/schema"
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		STT:     config.STTConfig{Provider: "mock"},
		Scoring: config.ScoringConfig{CacheSize: 8},
	}
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	a, err := New(testConfig(), WithMetrics(metrics.NewMetrics(prometheus.NewRegistry())))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.STT.Provider = "nope"
	if _, err := New(cfg, WithMetrics(metrics.NewMetrics(prometheus.NewRegistry()))); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNew_MissingCatalogFile(t *testing.T) {
	cfg := testConfig()
	cfg.Catalog.SentencesFile = "/nonexistent/sentences.yaml"
	if _, err := New(cfg, WithMetrics(metrics.NewMetrics(prometheus.NewRegistry()))); err == nil {
		t.Error("expected error for missing catalog file")
	}
}

func TestApplication_Readiness(t *testing.T) {
	a := newTestApp(t)
	if a.Ready() {
		t.Error("expected not ready before Start")
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !a.Ready() {
		t.Error("expected ready after Start")
	}
	a.Shutdown()
	if a.Ready() {
		t.Error("expected not ready after Shutdown")
	}
}

func TestApplication_Score(t *testing.T) {
	a := newTestApp(t)

	resp, err := a.Score(models.ScoreRequest{
		Reference:  "I think so",
		Hypothesis: "I sink so",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Counts.Matches != 2 || resp.Counts.Substitutions != 1 {
		t.Errorf("unexpected counts %+v", resp.Counts)
	}
	if resp.Hint == "" {
		t.Error("expected a hint for think -> sink")
	}
}

func TestApplication_ScoreRejectsMissingReference(t *testing.T) {
	a := newTestApp(t)

	_, err := a.Score(models.ScoreRequest{Hypothesis: "hello"})
	if !errors.Is(err, schema.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestApplication_ResolveReference(t *testing.T) {
	a := newTestApp(t)

	ref, err := a.ResolveReference(models.ControlMessage{Type: "start", Reference: "Hello there"})
	if err != nil || ref != "Hello there" {
		t.Errorf("expected inline reference, got %q (%v)", ref, err)
	}

	ref, err = a.ResolveReference(models.ControlMessage{Type: "start", SentenceID: "th-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, _ := a.Catalog.Get("th-1"); ref != s.Text {
		t.Errorf("expected %q, got %q", s.Text, ref)
	}

	_, err = a.ResolveReference(models.ControlMessage{Type: "start", SentenceID: "missing"})
	if !errors.Is(err, ErrUnknownSentence) {
		t.Errorf("expected ErrUnknownSentence, got %v", err)
	}
}

func TestApplication_NewSession(t *testing.T) {
	a := newTestApp(t)

	s, err := a.NewSession()
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()
	if s.ID() == "" {
		t.Error("expected session id")
	}
}
