package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant collection used as
// the similarity index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the collection holding one point per document. Point ids
	// must be the numeric document row offsets.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements Index over an existing Qdrant collection. The
// collection is never written to; dimension, metric, and size are read once
// at open time.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// collection is the collection searched by Search.
	collection string

	dim    int
	count  int
	metric Metric
}

// DialQdrant creates a Qdrant gRPC client from cfg, filling in the default
// host and port. The collection is not checked.
func DialQdrant(cfg *QdrantConfig) (*qdrant.Client, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return client, nil
}

// OpenQdrantIndex connects to Qdrant and reads the collection's vector
// parameters and point count. Any failure is reported as ErrIndexLoad.
func OpenQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name is required: %w", ErrIndexLoad)
	}

	client, err := DialQdrant(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexLoad, err)
	}

	idx, err := describeCollection(ctx, client, cfg.Collection)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

// describeCollection fetches the vector size, distance, and exact point count.
func describeCollection(ctx context.Context, client *qdrant.Client, collection string) (*QdrantIndex, error) {
	info, err := client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant: collection %q info: %w: %w", collection, ErrIndexLoad, err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil || params.GetSize() == 0 {
		return nil, fmt.Errorf("qdrant: collection %q has no single unnamed vector: %w", collection, ErrIndexLoad)
	}

	var metric Metric
	switch params.GetDistance() {
	case qdrant.Distance_Cosine, qdrant.Distance_Dot:
		metric = MetricInnerProduct
	case qdrant.Distance_Euclid:
		metric = MetricL2
	default:
		return nil, fmt.Errorf("qdrant: collection %q uses unsupported distance %s: %w", collection, params.GetDistance(), ErrIndexLoad)
	}

	count, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: count %q: %w: %w", collection, ErrIndexLoad, err)
	}

	return &QdrantIndex{
		client:     client,
		collection: collection,
		dim:        int(params.GetSize()),
		count:      int(count),
		metric:     metric,
	}, nil
}

// Client exposes the gRPC client so readiness probes can share the connection.
func (q *QdrantIndex) Client() *qdrant.Client { return q.client }

// Dimension returns the collection's vector size.
func (q *QdrantIndex) Dimension() int { return q.dim }

// Len returns the point count observed at open time.
func (q *QdrantIndex) Len() int { return q.count }

// Metric returns the metric matching the collection's distance.
func (q *QdrantIndex) Metric() Metric { return q.metric }

// Search queries the collection for the k nearest points. Point ids are
// returned as document row offsets; UUID ids are rejected.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != q.dim {
		return nil, fmt.Errorf("qdrant: query dimension %d does not match collection dimension %d: %w", len(query), q.dim, ErrIndexSearch)
	}
	if k <= 0 {
		return []Neighbor{}, nil
	}

	limit := uint64(k)
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w: %w", ErrIndexSearch, err)
	}

	out := make([]Neighbor, 0, len(points))
	for _, p := range points {
		if p.GetId().GetUuid() != "" {
			return nil, fmt.Errorf("qdrant: point %s has a UUID id, want a numeric document offset: %w", p.GetId().GetUuid(), ErrOutOfRange)
		}
		out = append(out, Neighbor{ID: int64(p.GetId().GetNum()), Score: p.GetScore()})
	}
	return out, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
