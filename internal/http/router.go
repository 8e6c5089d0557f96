// Package http serves the practice page API: health probes, the sentence
// catalog, stateless scoring and the live practice websocket.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pronunciation-practice-service/internal/app"
	"pronunciation-practice-service/internal/catalog"
	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/schema"
)

const maxScoreBodyBytes = 64 * 1024

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/sentences", listSentences(application))
		r.Get("/sentences/{id}", getSentence(application))
		r.Post("/score", score(application))
		r.Get("/practice/ws", practiceSocket(application))
	})

	return r
}

type sentencesResponse struct {
	Sentences []catalog.Sentence `json:"sentences"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func listSentences(application *app.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, sentencesResponse{Sentences: application.Catalog.All()})
	}
}

func getSentence(application *app.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := application.Catalog.Get(chi.URLParam(r, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "sentence not found"})
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func score(application *app.Application) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ScoreRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}

		resp, err := application.Score(req)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, schema.ErrMalformed) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
