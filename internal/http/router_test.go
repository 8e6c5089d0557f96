package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"pronunciation-practice-service/internal/app"
	"pronunciation-practice-service/internal/config"
	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/metrics"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/stt"
	"pronunciation-practice-service/internal/service/stt/mock"
)

var testUtterance = mock.SimulatedUtterance{
	Partials:    []string{"good", "good morning"},
	Final:       "good morning everyone",
	Confidences: []float64{0.95, 0.9, 0.85},
}

func newTestApp(t *testing.T, started bool) *app.Application {
	t.Helper()
	cfg := &config.Configuration{
		STT:           config.STTConfig{Provider: "mock"},
		Scoring:       config.ScoringConfig{CacheSize: 8},
		AttemptLimits: config.AttemptLimits{DrainTimeout: 50 * time.Millisecond},
	}
	application, err := app.New(cfg,
		app.WithMetrics(metrics.NewMetrics(prometheus.NewRegistry())),
		app.WithAdapterFactory(func(ctx context.Context) (stt.Adapter, error) {
			return mock.NewWithUtterance(testUtterance, 0), nil
		}),
	)
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	if started {
		_ = application.Start()
	}
	return application
}

func TestHealthEndpoints(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		started  bool
		expected int
	}{
		{"liveness", "/v1/liveness", false, http.StatusOK},
		{"readiness before start", "/v1/readiness", false, http.StatusServiceUnavailable},
		{"readiness after start", "/v1/readiness", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(newTestApp(t, tt.started))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestListSentences(t *testing.T) {
	application := newTestApp(t, true)
	router := NewRouter(application)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sentences", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body sentencesResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sentences) != application.Catalog.Len() {
		t.Errorf("expected %d sentences, got %d", application.Catalog.Len(), len(body.Sentences))
	}
}

func TestGetSentence(t *testing.T) {
	router := NewRouter(newTestApp(t, true))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sentences/th-1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sentences/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestScore(t *testing.T) {
	router := NewRouter(newTestApp(t, true))

	body := `{"reference":"We visited the village","hypothesis":"we wisited the village","confidences":[0.9,0.4,0.9,0.9]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/score", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp models.ScoreResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Counts.Matches != 3 || resp.Counts.Substitutions != 1 {
		t.Errorf("unexpected counts %+v", resp.Counts)
	}
	if len(resp.Mismatches) != 1 || resp.Mismatches[0].ReferenceWord != "visited" {
		t.Errorf("expected mismatch on visited, got %+v", resp.Mismatches)
	}
	if resp.Hint == "" {
		t.Error("expected a coaching hint")
	}
}

func TestScore_BadRequests(t *testing.T) {
	router := NewRouter(newTestApp(t, true))

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"reference":`},
		{"missing reference", `{"hypothesis":"hello"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/score", bytes.NewBufferString(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func dialPractice(t *testing.T) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(NewRouter(newTestApp(t, true)))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/practice/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn, ctx
}

func sendControl(t *testing.T, ctx context.Context, conn *websocket.Conn, msg models.ControlMessage) {
	t.Helper()
	data, _ := json.Marshal(msg)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write control: %v", err)
	}
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string) models.ServerMessage {
	t.Helper()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read while waiting for %s: %v", msgType, err)
		}
		var msg models.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestPracticeSocket_FullAttempt(t *testing.T) {
	conn, ctx := dialPractice(t)

	sendControl(t, ctx, conn, models.ControlMessage{Type: models.ControlStart, Reference: "Good morning, everyone!"})
	readUntil(t, ctx, conn, models.ServerState)

	frame := audio.EncodeFloat32(make([]float32, 320))
	for i := 0; i < 2; i++ {
		if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
			t.Fatalf("write audio: %v", err)
		}
	}

	update := readUntil(t, ctx, conn, models.ServerTranscript)
	if update.Transcript == nil || update.Transcript.Alignment == nil {
		t.Fatalf("expected transcript with alignment, got %+v", update)
	}

	sendControl(t, ctx, conn, models.ControlMessage{Type: models.ControlStop})
	msg := readUntil(t, ctx, conn, models.ServerResult)
	if msg.Result == nil {
		t.Fatal("expected result payload")
	}
	if msg.Result.Transcript != "good morning everyone" {
		t.Errorf("expected %q, got %q", "good morning everyone", msg.Result.Transcript)
	}
	if msg.Result.Alignment.Counts.Matches != 3 {
		t.Errorf("expected 3 matches, got %d", msg.Result.Alignment.Counts.Matches)
	}
}

func TestPracticeSocket_StartBySentenceID(t *testing.T) {
	conn, ctx := dialPractice(t)

	sendControl(t, ctx, conn, models.ControlMessage{Type: models.ControlStart, SentenceID: "th-1"})
	msg := readUntil(t, ctx, conn, models.ServerState)
	if msg.State != "LISTENING" {
		t.Errorf("expected LISTENING, got %s", msg.State)
	}
}

func TestPracticeSocket_RejectsBadControl(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{"type":`},
		{"unknown type", `{"type":"dance"}`},
		{"start without sentence", `{"type":"start"}`},
		{"pause without attempt", `{"type":"pause"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, ctx := dialPractice(t)
			if err := conn.Write(ctx, websocket.MessageText, []byte(tt.payload)); err != nil {
				t.Fatalf("write: %v", err)
			}
			msg := readUntil(t, ctx, conn, models.ServerError)
			if msg.Error == "" {
				t.Error("expected error text")
			}
		})
	}
}

func TestPracticeSocket_RejectsOddAudioFrame(t *testing.T) {
	conn, ctx := dialPractice(t)

	if err := conn.Write(ctx, websocket.MessageBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readUntil(t, ctx, conn, models.ServerError)
	if msg.Error == "" {
		t.Error("expected error text")
	}
}
