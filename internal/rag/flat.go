package rag

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// FlatIndex is an exact, brute-force Index over vectors held in memory. It
// is the in-process form of a FAISS IndexFlat and is immutable once built.
type FlatIndex struct {
	// dim is the length of every vector.
	dim int
	// data holds all vectors row-major: row i is data[i*dim:(i+1)*dim].
	data []float32
	// ids optionally maps rows to external ids (FAISS IndexIDMap).
	// When nil the row number is the id.
	ids []int64
	// metric selects the scoring function.
	metric Metric
}

// NewFlatIndex builds a FlatIndex from row-major vector data. len(data) must
// be a multiple of dim. ids may be nil; otherwise it must hold one id per row.
func NewFlatIndex(dim int, data []float32, metric Metric, ids []int64) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("rag: flat index dimension must be positive, got %d: %w", dim, ErrIndexLoad)
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("rag: flat index data length %d is not a multiple of dimension %d: %w", len(data), dim, ErrIndexLoad)
	}
	if metric != MetricInnerProduct && metric != MetricL2 {
		return nil, fmt.Errorf("rag: unsupported metric %s: %w", metric, ErrIndexLoad)
	}
	n := len(data) / dim
	if ids != nil && len(ids) != n {
		return nil, fmt.Errorf("rag: flat index has %d rows but %d ids: %w", n, len(ids), ErrIndexLoad)
	}
	return &FlatIndex{dim: dim, data: data, ids: ids, metric: metric}, nil
}

// NewFlatIndexFromRows is a convenience constructor over one slice per row.
func NewFlatIndexFromRows(rows [][]float32, metric Metric) (*FlatIndex, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("rag: flat index needs at least one row: %w", ErrIndexLoad)
	}
	dim := len(rows[0])
	data := make([]float32, 0, dim*len(rows))
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("rag: row %d has dimension %d, want %d: %w", i, len(r), dim, ErrIndexLoad)
		}
		data = append(data, r...)
	}
	return NewFlatIndex(dim, data, metric, nil)
}

// Dimension returns the vector length.
func (f *FlatIndex) Dimension() int { return f.dim }

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int { return len(f.data) / f.dim }

// Metric returns the scoring metric.
func (f *FlatIndex) Metric() Metric { return f.metric }

// Row returns the external id and vector stored at row i. The returned slice
// aliases the index data and must not be modified.
func (f *FlatIndex) Row(i int) (int64, []float32) {
	id := int64(i)
	if f.ids != nil {
		id = f.ids[i]
	}
	return id, f.data[i*f.dim : (i+1)*f.dim]
}

// Search scores every stored vector against query and returns the best k.
// Ties keep ascending row order. k larger than Len is capped.
func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("rag: query dimension %d does not match index dimension %d: %w", len(query), f.dim, ErrIndexSearch)
	}
	n := f.Len()
	if k <= 0 || n == 0 {
		return []Neighbor{}, nil
	}
	k = min(k, n)

	type scored struct {
		row   int
		score float64
	}
	cands := make([]scored, n)
	for i := range n {
		row := f.data[i*f.dim : (i+1)*f.dim]
		if f.metric == MetricL2 {
			cands[i] = scored{row: i, score: squaredL2(query, row)}
		} else {
			cands[i] = scored{row: i, score: dot(query, row)}
		}
	}

	higher := f.metric.HigherIsBetter()
	slices.SortStableFunc(cands, func(a, b scored) int {
		if higher {
			return cmp.Compare(b.score, a.score)
		}
		return cmp.Compare(a.score, b.score)
	})

	out := make([]Neighbor, k)
	for i := range k {
		id := int64(cands[i].row)
		if f.ids != nil {
			id = f.ids[cands[i].row]
		}
		out[i] = Neighbor{ID: id, Score: float32(cands[i].score)}
	}
	return out, nil
}
