package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/qdrant/go-client/qdrant"
)

// warmer is satisfied by *rag.Retriever.
type warmer interface {
	Warmup(ctx context.Context) error
}

// EmbedderPinger probes the embedding backend by embedding a short probe
// string and checking its dimension against the index.
type EmbedderPinger struct {
	// w runs the probe.
	w warmer
}

// NewEmbedderPinger constructs an EmbedderPinger for the given retriever.
func NewEmbedderPinger(w warmer) *EmbedderPinger {
	return &EmbedderPinger{w: w}
}

// Name returns the dependency label used in readiness responses.
func (p *EmbedderPinger) Name() string { return "embedder" }

// Ping embeds the probe string.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	return p.w.Warmup(ctx)
}

// HTTPPinger probes a dependency with a GET request that costs no tokens,
// such as Ollama's /api/tags or OpenRouter's /models listing.
type HTTPPinger struct {
	// name identifies the dependency in readiness responses.
	name string
	// url is fetched on every probe.
	url string
	// bearer is sent as an Authorization header when non-empty.
	bearer string
	// client performs the request.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger. bearer may be empty.
func NewHTTPPinger(name, url, bearer string) *HTTPPinger {
	return &HTTPPinger{name: name, url: url, bearer: bearer, client: http.DefaultClient}
}

// Name returns the dependency label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping succeeds on any 2xx response.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if p.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+p.bearer)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, p.url)
	}
	return nil
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
