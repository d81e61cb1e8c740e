// Package rag defines the retrieval core of vetrag: the embedding and
// similarity-index interfaces, the document store, and the Retriever that
// composes them into a single top-k search over the veterinary corpus.
// Concrete backends (Ollama, OpenAI, FAISS files, Qdrant) satisfy these
// interfaces so the orchestration layer never depends on a specific one.
package rag

import (
	"context"
	"fmt"
)

// Document is one passage of the corpus. Its ID is the 0-based position in
// the ordered document file and therefore also the row of its embedding in
// the similarity index.
type Document struct {
	// ID is the row offset of this document in the store.
	ID int

	// Text is the passage content forwarded to the LLM as context.
	Text string

	// Source is the origin of the passage when the document file records one.
	Source string

	// Metadata holds any additional string fields carried by object-shaped
	// document entries.
	Metadata map[string]string
}

// Result is one ranked entry returned by a search.
type Result struct {
	// Rank is the 1-based position of this entry in the returned order.
	Rank int `json:"rank"`

	// Score is the raw value reported by the index: an inner product for
	// MetricInnerProduct, a squared L2 distance for MetricL2.
	Score float32 `json:"score"`

	// Content is the text of the matched document.
	Content string `json:"content"`

	// Source is copied from the matched document, if any.
	Source string `json:"source,omitempty"`

	// DocumentID is the row offset of the matched document.
	DocumentID int `json:"document_id"`
}

// Neighbor is a single hit returned by an Index before it is resolved
// against the document store.
type Neighbor struct {
	// ID is the row (or mapped id) of the stored vector.
	ID int64
	// Score is the similarity or distance reported by the index.
	Score float32
}

// Metric identifies how an Index scores candidates.
type Metric int

const (
	// MetricInnerProduct ranks by dot product, highest first. With unit
	// vectors this equals cosine similarity.
	MetricInnerProduct Metric = iota
	// MetricL2 ranks by squared Euclidean distance, lowest first.
	MetricL2
)

// String returns the metric name used in logs and the info command.
func (m Metric) String() string {
	switch m {
	case MetricInnerProduct:
		return "inner_product"
	case MetricL2:
		return "l2"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// HigherIsBetter reports whether larger scores rank first under m.
func (m Metric) HigherIsBetter() bool {
	return m == MetricInnerProduct
}

// Index is a read-only nearest-neighbour structure over document embeddings.
// Implementations must be safe to call from multiple goroutines.
type Index interface {
	// Dimension returns the length of every stored vector.
	Dimension() int

	// Len returns the number of stored vectors.
	Len() int

	// Metric returns the scoring metric the index was built with.
	Metric() Metric

	// Search returns up to k neighbours of query in ranking order.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the function boundary the orchestration layer calls into.
// *Retriever satisfies it; tests inject fakes.
type Searcher interface {
	// Search embeds query and returns the top-k ranked results.
	Search(ctx context.Context, query string, k int) ([]Result, error)
}
