package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// warmupProbe is the text embedded by Warmup to check the model end to end.
const warmupProbe = "vetrag warmup"

// Retriever composes an Embedder, an Index, and the document store into the
// top-k search used by every surface of vetrag. It is immutable after
// construction and safe for concurrent use.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// index performs the nearest-neighbour search.
	index Index

	// docs is the document store, aligned row for row with index.
	docs []Document

	// log receives debug-level search traces.
	log *slog.Logger
}

// NewRetriever validates that docs pairs with idx and returns a Retriever.
// A count mismatch between the store and the index is reported here, before
// any search, as ErrIndexLoad. A nil logger falls back to slog.Default.
func NewRetriever(embedder Embedder, idx Index, docs []Document, log *slog.Logger) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil: %w", ErrModelLoad)
	}
	if idx == nil {
		return nil, fmt.Errorf("rag: index must not be nil: %w", ErrIndexLoad)
	}
	if idx.Len() != len(docs) {
		return nil, fmt.Errorf("rag: index holds %d vectors but store holds %d documents: %w", idx.Len(), len(docs), ErrIndexLoad)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{embedder: embedder, index: idx, docs: docs, log: log}, nil
}

// Index returns the underlying similarity index.
func (r *Retriever) Index() Index { return r.index }

// Documents returns the number of documents in the store.
func (r *Retriever) Documents() int { return len(r.docs) }

// Document returns the document with the given row offset.
func (r *Retriever) Document(id int) (Document, error) {
	if id < 0 || id >= len(r.docs) {
		return Document{}, fmt.Errorf("rag: document %d not in [0, %d): %w", id, len(r.docs), ErrOutOfRange)
	}
	return r.docs[id], nil
}

// Embed turns query into a unit-length vector.
func (r *Retriever) Embed(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("rag: query is empty: %w", ErrEncoding)
	}

	vecs, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		if errors.Is(err, ErrModelLoad) || errors.Is(err, ErrEncoding) {
			return nil, fmt.Errorf("rag: embedding query: %w", err)
		}
		return nil, fmt.Errorf("rag: embedding query: %w: %w", ErrEncoding, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("rag: embedder returned %d vectors for 1 query: %w", len(vecs), ErrEncoding)
	}
	return Normalize(vecs[0])
}

// Warmup embeds a probe string so the model is loaded before the first
// request and its output dimension is checked against the index.
func (r *Retriever) Warmup(ctx context.Context) error {
	vecs, err := r.embedder.Embed(ctx, []string{warmupProbe})
	if err != nil {
		if errors.Is(err, ErrModelLoad) {
			return fmt.Errorf("rag: warmup: %w", err)
		}
		return fmt.Errorf("rag: warmup: %w: %w", ErrModelLoad, err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("rag: warmup returned %d vectors: %w", len(vecs), ErrModelLoad)
	}
	if got, want := len(vecs[0]), r.index.Dimension(); got != want {
		return fmt.Errorf("rag: embedding dimension %d does not match index dimension %d: %w", got, want, ErrIndexSearch)
	}
	r.log.Debug("rag: warmup complete", slog.Int("dimension", len(vecs[0])))
	return nil
}

// Search embeds query and returns the top-k documents.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k < 0 {
		return nil, fmt.Errorf("rag: k must not be negative, got %d: %w", k, ErrIndexSearch)
	}
	if k == 0 {
		return []Result{}, nil
	}
	vec, err := r.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.SearchVector(ctx, vec, k)
}

// SearchVector returns the min(k, N) documents closest to vec. Results are
// ordered best first with ties broken by ascending document row.
func (r *Retriever) SearchVector(ctx context.Context, vec []float32, k int) ([]Result, error) {
	if k < 0 {
		return nil, fmt.Errorf("rag: k must not be negative, got %d: %w", k, ErrIndexSearch)
	}
	if len(vec) != r.index.Dimension() {
		return nil, fmt.Errorf("rag: query dimension %d does not match index dimension %d: %w", len(vec), r.index.Dimension(), ErrIndexSearch)
	}
	k = min(k, len(r.docs))
	if k == 0 {
		return []Result{}, nil
	}

	hits, err := r.index.Search(ctx, vec, k)
	if err != nil {
		if errors.Is(err, ErrIndexSearch) {
			return nil, err
		}
		return nil, fmt.Errorf("rag: index search: %w: %w", ErrIndexSearch, err)
	}

	results := make([]Result, 0, len(hits))
	for i, h := range hits {
		if h.ID < 0 || h.ID >= int64(len(r.docs)) {
			return nil, fmt.Errorf("rag: index returned id %d outside [0, %d): %w", h.ID, len(r.docs), ErrOutOfRange)
		}
		doc := r.docs[h.ID]
		results = append(results, Result{
			Rank:       i + 1,
			Score:      h.Score,
			Content:    doc.Text,
			Source:     doc.Source,
			DocumentID: doc.ID,
		})
	}

	r.log.Debug("rag: search complete",
		slog.Int("k", k),
		slog.Int("results", len(results)),
		slog.String("metric", r.index.Metric().String()),
	)
	return results, nil
}

// JoinContents concatenates result contents in rank order, separated by a
// blank line, for use as LLM context.
func JoinContents(results []Result) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = res.Content
	}
	return strings.Join(parts, "\n\n")
}
