// Package ingestion populates a Qdrant collection from the vetrag corpus so
// it can serve as the similarity index. Vectors either come from an existing
// FAISS file, which keeps scores identical to the file-backed index, or are
// recomputed from the document texts with the configured embedder. Point ids
// are the document row offsets the retriever resolves hits against.
// This pipeline is invoked by the `vetrag ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"

	"github.com/54b3r/vetrag-go/internal/rag"
)

// VectorSource is a read-only set of precomputed vectors.
// *rag.FlatIndex satisfies it.
type VectorSource interface {
	// Dimension returns the length of every vector.
	Dimension() int
	// Len returns the number of vectors.
	Len() int
	// Metric returns the metric the vectors were indexed with.
	Metric() rag.Metric
	// Row returns the document id and vector at row i.
	Row(i int) (int64, []float32)
}

// Sink persists embedded documents.
type Sink interface {
	// Prepare readies the destination for vectors of the given dimension
	// scored with metric.
	Prepare(ctx context.Context, dim int, metric rag.Metric) error
	// Upsert writes one batch. ids, vectors, and docs are parallel.
	Upsert(ctx context.Context, ids []int64, vectors [][]float32, docs []rag.Document) error
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// BatchSize is the number of points written per upsert and the number
	// of texts embedded per request. Defaults to 64 if zero.
	BatchSize int
}

// Pipeline orchestrates the load → (embed) → upsert flow.
type Pipeline struct {
	// embedder converts document texts into vectors. Only Embed needs it.
	embedder rag.Embedder

	// sink persists the embedded documents.
	sink Sink

	// cfg holds the resolved pipeline configuration.
	cfg *Config
}

// NewPipeline constructs a Pipeline. embedder may be nil when only
// ImportVectors is used.
func NewPipeline(embedder rag.Embedder, sink Sink, cfg *Config) (*Pipeline, error) {
	if sink == nil {
		return nil, fmt.Errorf("ingestion: sink must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	return &Pipeline{embedder: embedder, sink: sink, cfg: cfg}, nil
}

// ImportVectors copies every vector of src, paired with its document, into
// the sink. src must hold exactly one vector per document. It returns the
// number of points written.
func (p *Pipeline) ImportVectors(ctx context.Context, src VectorSource, docs []rag.Document, progress func(msg string)) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}
	if src.Len() != len(docs) {
		return 0, fmt.Errorf("ingestion: index holds %d vectors but store holds %d documents: %w", src.Len(), len(docs), rag.ErrIndexLoad)
	}
	if err := p.sink.Prepare(ctx, src.Dimension(), src.Metric()); err != nil {
		return 0, fmt.Errorf("ingestion: prepare: %w", err)
	}

	written := 0
	for start := 0; start < src.Len(); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, src.Len())
		ids := make([]int64, 0, end-start)
		vecs := make([][]float32, 0, end-start)
		batch := make([]rag.Document, 0, end-start)
		for i := start; i < end; i++ {
			id, vec := src.Row(i)
			if id < 0 || id >= int64(len(docs)) {
				return written, fmt.Errorf("ingestion: row %d maps to document %d not in [0, %d): %w", i, id, len(docs), rag.ErrOutOfRange)
			}
			ids = append(ids, id)
			vecs = append(vecs, vec)
			batch = append(batch, docs[id])
		}
		if err := p.sink.Upsert(ctx, ids, vecs, batch); err != nil {
			return written, fmt.Errorf("ingestion: upsert rows %d-%d: %w", start, end-1, err)
		}
		written += len(ids)
		progress(fmt.Sprintf("imported %d/%d vectors", written, src.Len()))
	}
	return written, nil
}

// Embed embeds every document text and writes the result to the sink with
// the inner-product metric. It returns the number of points written.
func (p *Pipeline) Embed(ctx context.Context, docs []rag.Document, progress func(msg string)) (int, error) {
	if p.embedder == nil {
		return 0, fmt.Errorf("ingestion: embedder must not be nil: %w", rag.ErrModelLoad)
	}
	if progress == nil {
		progress = func(string) {}
	}

	written := 0
	for start := 0; start < len(docs); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		ids := make([]int64, len(batch))
		for i, d := range batch {
			texts[i] = d.Text
			ids[i] = int64(d.ID)
		}

		vecs, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("ingestion: embed documents %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(batch) {
			return written, fmt.Errorf("ingestion: embedder returned %d vectors for %d texts: %w", len(vecs), len(batch), rag.ErrEncoding)
		}

		if start == 0 {
			if err := p.sink.Prepare(ctx, len(vecs[0]), rag.MetricInnerProduct); err != nil {
				return 0, fmt.Errorf("ingestion: prepare: %w", err)
			}
		}
		if err := p.sink.Upsert(ctx, ids, vecs, batch); err != nil {
			return written, fmt.Errorf("ingestion: upsert documents %d-%d: %w", start, end-1, err)
		}
		written += len(batch)
		progress(fmt.Sprintf("embedded %d/%d documents", written, len(docs)))
	}
	return written, nil
}
