// Package server implements the HTTP server that exposes vetrag retrieval
// and question answering via a REST/SSE API.
// The server is started by the `vetrag serve` CLI command.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/vetrag-go/internal/assistant"
	"github.com/54b3r/vetrag-go/internal/logging"
	"github.com/54b3r/vetrag-go/internal/rag"
)

// maxBodyBytes caps the size of JSON request bodies.
const maxBodyBytes = 64 << 10

// New constructs a Server from the provided searcher, assistant, and config.
// ans may be nil, in which case POST /api/ask answers 503.
func New(searcher rag.Searcher, ans *assistant.Assistant, cfg *Config) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("server: searcher must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 5 * time.Minute
	}
	if cfg.MaxTopK == 0 {
		cfg.MaxTopK = 50
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		searcher: searcher,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
	}
	if ans != nil {
		s.answerer = ans
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: VETRAG_API_KEY is not set, authentication is disabled")
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stop

	protected := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/search", protected("search", s.handleSearch))
	mux.Handle("POST /api/ask", protected("ask", s.handleAsk))
	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	defer s.stopRL()

	go func() {
		s.log.Info("vetrag server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("vetrag server stopped")
		return nil
	}
}

// handleSearch handles POST /api/search. It returns the top-k passages for
// the query as JSON without calling the LLM.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	k := assistant.DefaultTopK
	if req.K != nil {
		k = *req.K
	}
	if k < 0 || k > s.cfg.MaxTopK {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("k must be between 0 and %d", s.cfg.MaxTopK))
		return
	}

	results, err := s.searcher.Search(r.Context(), req.Query, k)
	outcome := outcomeOf(err)
	s.metrics.searchRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.searchDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("search failed", slog.Int("k", k), slog.Any("error", err))
		writeError(w, statusFor(err), err.Error())
		return
	}

	log.Info("search complete", slog.Int("k", k), slog.Int("results", len(results)))
	writeJSON(w, http.StatusOK, searchResponse{Query: req.Query, Results: results})
}

// handleAsk handles POST /api/ask. It streams the cleaned answer using
// Server-Sent Events so clients can render tokens as they arrive. Failures
// before the first token are reported as JSON with a mapped status code;
// later failures arrive as an "error" event.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.answerer == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
		return
	}

	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.K < 0 || req.K > s.cfg.MaxTopK {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("k must be between 0 and %d", s.cfg.MaxTopK))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	s.metrics.askActiveStreams.Inc()
	defer s.metrics.askActiveStreams.Dec()
	start := time.Now()

	sw := &sseWriter{w: w, flusher: flusher}
	ans, err := s.answerer.Stream(ctx, assistant.Request{
		Question: req.Question,
		TopK:     req.K,
		Surface:  "http",
	}, sw)

	outcome := outcomeOf(err)
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("ask failed", slog.String("outcome", outcome), slog.Any("error", err))
		if !sw.started {
			writeError(w, statusFor(err), err.Error())
			return
		}
		sw.event("error", err.Error())
		return
	}

	if req.ShowSources {
		raw, err := json.Marshal(ans.Sources)
		if err != nil {
			log.Error("sources encode error", slog.Any("error", err))
		} else {
			sw.event("sources", string(raw))
		}
	}
	log.Info("ask complete",
		slog.Int("sources", len(ans.Sources)),
		slog.Int("dropped", ans.Dropped),
		slog.Duration("duration", time.Since(start)),
	)
	// Signal stream completion.
	sw.event("done", "[DONE]")
}

// decodeJSON decodes a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a retrieval or completion error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, rag.ErrEncoding), errors.Is(err, rag.ErrIndexSearch):
		return http.StatusBadRequest
	case errors.Is(err, rag.ErrModelLoad):
		return http.StatusServiceUnavailable
	case errors.Is(err, assistant.ErrCompletion), errors.Is(err, assistant.ErrEmptyAnswer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// outcomeOf returns the metrics label for a request result.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// sseWriter wraps an http.ResponseWriter to emit Server-Sent Event data frames.
// SSE headers are sent on the first write so that a request failing before
// any output can still be answered with a plain JSON error.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher

	// started is true once SSE headers have been sent.
	started bool
}

// start sends the SSE response headers once.
func (s *sseWriter) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	s.w.WriteHeader(http.StatusOK)
}

// Write formats p as one or more SSE data lines and flushes to the client.
// Each newline in p is prefixed with "data: " so multi-line chunks never
// break the SSE frame boundary.
func (s *sseWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.start()
	if _, err = fmt.Fprint(s.w, frame(string(bytes.Clone(p)))); err != nil {
		return 0, err
	}
	s.flusher.Flush()
	return len(p), nil
}

// event writes a named SSE event and flushes it.
func (s *sseWriter) event(name, data string) {
	s.start()
	fmt.Fprintf(s.w, "event: %s\n%s", name, frame(data))
	s.flusher.Flush()
}

// frame renders data as SSE data lines terminated by a blank line.
func frame(data string) string {
	lines := strings.Split(strings.TrimRight(data, "\n"), "\n")
	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	return buf.String()
}
