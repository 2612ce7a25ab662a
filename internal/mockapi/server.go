// Package mockapi serves a stand-in generation endpoint for development
// and end-to-end tests. It speaks the same newline-delimited event
// protocol the pool consumes: token lines, an optional probability
// line, possibility_complete and done.
package mockapi

import (
	"encoding/json"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fanout/pkg/types"
)

// Models with these names inject failures, for exercising error and
// retry paths from tests and the CLI.
const (
	// ModelAlwaysFails emits an error event on every request.
	ModelAlwaysFails = "always-fails"
	// ModelFlaky fails the first attempt per stream key and succeeds
	// afterwards.
	ModelFlaky = "flaky"
)

// Server generates scripted streams. It keeps a per-key attempt counter
// so flaky models can fail once and then recover.
type Server struct {
	cfg Config

	mu       sync.Mutex
	attempts map[string]int
}

// NewServer constructs a Server with defaults applied.
func NewServer(cfg Config) *Server {
	cfg.applyDefaults()
	return &Server{cfg: cfg, attempts: make(map[string]int)}
}

// NewMux builds the mock endpoint router.
func NewMux(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	if s.cfg.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Accept"},
		}))
	}

	r.Post("/v1/generate", s.handleGenerate)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	if len(req.Messages) == 0 {
		writeJSONError(w, http.StatusBadRequest, "messages are required")
		return
	}

	streamsInflight.Inc()
	defer streamsInflight.Dec()

	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)
	write := func(line []byte) bool {
		if _, err := w.Write(append(line, '\n')); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	log := s.cfg.Logger
	log.Info().Str("model", req.Model).Float64("temperature", req.Temperature).Msg("mock stream start")

	failAt := s.failPoint(req)
	tokens := scriptTokens(req)
	for i, tok := range tokens {
		if failAt >= 0 && i == failAt {
			write(eventLine(types.WireEventError, map[string]any{
				"message":   "mock provider failure for model " + req.Model,
				"retryable": req.Model != ModelAlwaysFails,
			}))
			return
		}
		select {
		case <-r.Context().Done():
			log.Debug().Str("model", req.Model).Msg("mock stream aborted by client")
			return
		case <-time.After(s.cfg.TokenDelay):
		}
		if !write(eventLine(types.WireEventToken, map[string]any{"token": tok})) {
			return
		}
	}

	write(eventLine(types.WireEventProbability, map[string]any{
		"probability": scriptProbability(req),
	}))
	write(eventLine(types.WireEventComplete, map[string]any{"finish_reason": "stop"}))
	write(eventLine(types.WireEventDone, nil))
	log.Info().Str("model", req.Model).Int("tokens", len(tokens)).Msg("mock stream end")
}

// failPoint decides whether and where this request should fail:
// -1 means never.
func (s *Server) failPoint(req types.GenerateRequest) int {
	switch req.Model {
	case ModelAlwaysFails:
		return 1
	case ModelFlaky:
		key := req.Provider + "/" + req.Model
		s.mu.Lock()
		s.attempts[key]++
		n := s.attempts[key]
		s.mu.Unlock()
		if n == 1 {
			return 2
		}
	}
	return -1
}

// scriptTokens derives a deterministic token sequence from the request
// so assertions can predict content.
func scriptTokens(req types.GenerateRequest) []string {
	last := req.Messages[len(req.Messages)-1].Content
	words := strings.Fields(last)
	if len(words) > 6 {
		words = words[:6]
	}
	tokens := []string{req.Model, "says:"}
	tokens = append(tokens, words...)
	// Re-join with trailing spaces so concatenated tokens read naturally.
	out := make([]string, len(tokens))
	for i, t := range tokens {
		if i < len(tokens)-1 {
			out[i] = t + " "
		} else {
			out[i] = t
		}
	}
	return out
}

// scriptProbability hashes model and temperature into a stable value in
// (0, 1) so result ordering is deterministic per fan-out.
func scriptProbability(req types.GenerateRequest) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.Provider + "/" + req.Model))
	base := float64(h.Sum32()%1000) / 1000.0
	p := (base + req.Temperature) / 2.0
	if p >= 1 {
		p = 0.99
	}
	return p
}

func eventLine(eventType string, data map[string]any) []byte {
	env := map[string]any{"type": eventType}
	if data != nil {
		env["data"] = data
	}
	b, _ := json.Marshal(env)
	return b
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: code})
}
