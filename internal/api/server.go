// Package api exposes the HTTP surface of the Cinevox server: text entry
// into the search pipeline for clients that do their own audio capture, the
// budget ledger snapshot, Prometheus metrics and health probes.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cinevoxhq/cinevox/internal/assist"
	"github.com/cinevoxhq/cinevox/internal/budget"
	"github.com/cinevoxhq/cinevox/internal/health"
	"github.com/cinevoxhq/cinevox/internal/hints"
	"github.com/cinevoxhq/cinevox/internal/observe"
	"github.com/cinevoxhq/cinevox/internal/pipeline"
	"github.com/cinevoxhq/cinevox/pkg/types"
)

// maxBodyBytes bounds the accepted request body size.
const maxBodyBytes = 1 << 16

// UtteranceRequest is the body of POST /v1/utterance.
type UtteranceRequest struct {
	// Text is the finalized utterance text.
	Text string `json:"text"`
}

// UtteranceResponse is the routed result of one utterance.
type UtteranceResponse struct {
	Outcome        string                `json:"outcome"`
	Intent         string                `json:"intent"`
	Confidence     float64               `json:"confidence"`
	CommandKind    string                `json:"command_kind,omitempty"`
	Movies         []pipeline.Movie      `json:"movies,omitempty"`
	Suggestions    []assist.Suggestion   `json:"suggestions,omitempty"`
	Interpretation string                `json:"interpretation,omitempty"`
	Hints          *hints.ExtractedHints `json:"hints,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Server serves the Cinevox HTTP API. Construct with New, then mount
// Handler on an http.Server.
type Server struct {
	router  *pipeline.Router
	ledger  budget.Ledger
	health  *health.Handler
	metrics *observe.Metrics
	logger  *slog.Logger
}

// Option is a functional option for Server.
type Option func(*Server)

// WithLedger enables GET /v1/budget backed by the given ledger.
func WithLedger(l budget.Ledger) Option {
	return func(s *Server) {
		s.ledger = l
	}
}

// WithHealth mounts the given health handler's probe routes.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics enables the request middleware and per-utterance counters.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a Server around the pipeline router.
func New(router *pipeline.Router, opts ...Option) *Server {
	s := &Server{
		router: router,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/utterance", s.handleUtterance)
	mux.HandleFunc("GET /v1/budget", s.handleBudget)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.health != nil {
		s.health.Register(mux)
	}

	if s.metrics != nil {
		return observe.Middleware(s.metrics)(mux)
	}
	return mux
}

// handleUtterance routes one finalized utterance through the pipeline and
// returns the outcome synchronously.
func (s *Server) handleUtterance(w http.ResponseWriter, r *http.Request) {
	var req UtteranceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty")
		return
	}

	outcome := s.router.Execute(r.Context(), types.NewUtterance(req.Text))

	if s.metrics != nil {
		s.metrics.RecordUtterance(r.Context(), string(outcome.Intent.Intent), string(outcome.Kind))
	}

	resp := UtteranceResponse{
		Outcome:        string(outcome.Kind),
		Intent:         string(outcome.Intent.Intent),
		Confidence:     outcome.Intent.Confidence,
		CommandKind:    string(outcome.Command.Kind),
		Movies:         outcome.Movies,
		Suggestions:    outcome.Suggestions,
		Interpretation: outcome.Interpretation,
	}
	if !outcome.Hints.IsEmpty() {
		h := outcome.Hints
		resp.Hints = &h
	}

	status := http.StatusOK
	if outcome.Kind == pipeline.OutcomeFailed {
		status = errorStatus(outcome.Err)
		if outcome.Err != nil {
			resp.Error = outcome.Err.Error()
		}
		s.logger.Warn("utterance routing failed", "error", outcome.Err, "status", status)
	}

	writeJSON(w, status, resp)
}

// handleBudget returns the ledger's current status snapshot.
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusNotFound, "no budget ledger configured")
		return
	}
	status, err := s.ledger.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "ledger status: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// errorStatus maps pipeline errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		rateLimited *assist.RateLimited
		configErr   *assist.ConfigurationError
	)
	switch {
	case errors.As(err, &rateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &configErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
