// Package server exposes the assistant over HTTP.
//
//	POST /v1/query     answer a text or audio query
//	POST /v1/resolve   resolve a query into a request without answering it
//	POST /v1/actions   answer an already routed request
//	GET  /v1/stations  suggest station names for ?q=
//	GET  /healthz      liveness
//	GET  /readyz       readiness
//	GET  /metrics      Prometheus metrics
//
// Every route runs behind [observe.Middleware].
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/railvox/internal/assistant"
	"github.com/MrWong99/railvox/internal/health"
	"github.com/MrWong99/railvox/internal/nlu"
	"github.com/MrWong99/railvox/internal/observe"
	"github.com/MrWong99/railvox/internal/railway"
	"github.com/MrWong99/railvox/pkg/provider/stt"
)

const (
	defaultMaxBody      = 10 << 20
	defaultSuggestLimit = 5
	maxSuggestLimit     = 50
)

// Assistant is what the server needs from [*assistant.Assistant].
type Assistant interface {
	Handle(ctx context.Context, in assistant.Input) (*assistant.Reply, error)
	Resolve(ctx context.Context, in assistant.Input) (*assistant.Reply, error)
	Answer(ctx context.Context, req nlu.Request) (*assistant.Reply, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithHealth mounts /healthz and /readyz.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithMetrics sets the instruments the middleware records into. Default:
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxBodyBytes limits request bodies. Default: 10 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// Server routes HTTP requests to an [Assistant].
type Server struct {
	assistant      Assistant
	stations       []string
	health         *health.Handler
	metricsHandler http.Handler
	metrics        *observe.Metrics
	maxBody        int64
}

// New returns a [Server] answering with a. stations feeds /v1/stations.
func New(a Assistant, stations []string, opts ...Option) *Server {
	s := &Server{assistant: a, stations: stations, maxBody: defaultMaxBody}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/query", s.handleQuery)
	mux.HandleFunc("POST /v1/resolve", s.handleResolve)
	mux.HandleFunc("POST /v1/actions", s.handleAction)
	mux.HandleFunc("GET /v1/stations", s.handleStations)
	if s.health != nil {
		s.health.Register(mux)
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}
	return observe.Middleware(s.metrics)(mux)
}

type errorResponse struct {
	Error string `json:"error"`
}

type actionResponse struct {
	Request nlu.Request     `json:"request"`
	Result  *railway.Result `json:"result"`
	Text    string          `json:"text"`
}

type stationsResponse struct {
	Stations []string `json:"stations"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	s.serveInput(w, r, s.assistant.Handle)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	s.serveInput(w, r, s.assistant.Resolve)
}

func (s *Server) serveInput(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, assistant.Input) (*assistant.Reply, error),
) {
	var in assistant.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, decodeStatus(err), "invalid request body: "+err.Error())
		return
	}

	reply, err := fn(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, decodeStatus(err), "read request body: "+err.Error())
		return
	}
	req, err := nlu.UnmarshalRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.assistant.Answer(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Request: reply.Request, Result: reply.Result, Text: reply.Text})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultSuggestLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxSuggestLimit {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxSuggestLimit))
			return
		}
		limit = n
	}
	matches := railway.Suggest(s.stations, strings.TrimSpace(q.Get("q")), limit)
	if matches == nil {
		matches = []string{}
	}
	writeJSON(w, http.StatusOK, stationsResponse{Stations: matches})
}

// fail maps a pipeline error to a status code. Client mistakes are 4xx;
// everything else is an upstream failure.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("query failed", "status", status, "err", err)
	} else {
		observe.Logger(r.Context()).Debug("query rejected", "status", status, "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, assistant.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, assistant.ErrNoTranscriber), errors.Is(err, assistant.ErrNoSynthesizer):
		return http.StatusNotImplemented
	case errors.Is(err, stt.ErrNoSpeech):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func decodeStatus(err error) int {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}
