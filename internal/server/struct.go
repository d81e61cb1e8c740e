package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/vetrag-go/internal/assistant"
	"github.com/54b3r/vetrag-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds a single /api/ask request from retrieval to the last
	// streamed token (default: 5m).
	AskTimeout time.Duration
	// MaxTopK is the largest k a client may request (default: 50).
	MaxTopK int
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer is served on GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the interface handleAsk calls to stream an answer.
// *assistant.Assistant satisfies it; tests inject a fake.
type answerer interface {
	// Stream writes the cleaned answer for req to w and returns the sources
	// it was grounded on.
	Stream(ctx context.Context, req assistant.Request, w io.Writer) (*assistant.Answer, error)
}

// Server is the HTTP server that exposes retrieval and question answering.
type Server struct {
	// searcher serves POST /api/search.
	searcher rag.Searcher
	// answerer serves POST /api/ask. Nil disables the endpoint.
	answerer answerer
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors for this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the free-text search query.
	Query string `json:"query"`
	// K is the number of results wanted. Zero means the server default.
	K *int `json:"k,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Query echoes the query that was searched.
	Query string `json:"query"`
	// Results are the ranked passages, best first.
	Results []rag.Result `json:"results"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's veterinary question.
	Question string `json:"question"`
	// K overrides the number of passages forwarded to the model.
	K int `json:"k,omitempty"`
	// ShowSources requests a trailing "sources" event with the passages.
	ShowSources bool `json:"show_sources,omitempty"`
}

// errorResponse is the JSON body written for failed non-streaming requests.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
