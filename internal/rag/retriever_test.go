package rag

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
)

// keywordEmbedder maps text to a small bag-of-keywords vector. The trailing
// bias component keeps every vector non-zero.
type keywordEmbedder struct {
	err error
}

var keywords = []string{"cat", "dog", "vaccin", "rabies", "exercise"}

func (k keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(keywords)+1)
		for j, kw := range keywords {
			if strings.Contains(lower, kw) {
				v[j] = 1
			}
		}
		v[len(keywords)] = 0.1
		out[i] = v
	}
	return out, nil
}

var vetCorpus = []string{
	"Cats require annual vaccination.",
	"Dogs need regular exercise.",
	"Rabies is a viral disease.",
}

// newVetRetriever builds a Retriever over vetCorpus with embeddings from
// keywordEmbedder, the same way an offline index would be built.
func newVetRetriever(t *testing.T) *Retriever {
	t.Helper()
	emb := keywordEmbedder{}
	vecs, err := emb.Embed(context.Background(), vetCorpus)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	rows := make([][]float32, len(vecs))
	docs := make([]Document, len(vecs))
	for i, v := range vecs {
		if rows[i], err = Normalize(v); err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		docs[i] = Document{ID: i, Text: vetCorpus[i]}
	}
	idx, err := NewFlatIndexFromRows(rows, MetricInnerProduct)
	if err != nil {
		t.Fatalf("NewFlatIndexFromRows: %v", err)
	}
	r, err := NewRetriever(emb, idx, docs, nil)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	return r
}

func Test_Retriever_CatVaccination(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)

	got, err := r.Search(context.Background(), "How to vaccinate a cat?", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 result, got %d", len(got))
	}
	if got[0].Content != "Cats require annual vaccination." {
		t.Errorf("Content = %q, want the cat vaccination passage", got[0].Content)
	}
	if got[0].Rank != 1 || got[0].DocumentID != 0 {
		t.Errorf("Rank = %d, DocumentID = %d; want 1, 0", got[0].Rank, got[0].DocumentID)
	}
}

func Test_Retriever_EmbedIsUnitLength(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)
	for _, q := range []string{"cat", "Dogs and rabies", "unrelated words"} {
		v, err := r.Embed(context.Background(), q)
		if err != nil {
			t.Fatalf("Embed(%q): %v", q, err)
		}
		if math.Abs(Norm(v)-1) >= 1e-5 {
			t.Errorf("Embed(%q) norm = %v, want 1", q, Norm(v))
		}
	}
}

func Test_Retriever_EmptyQuery(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)
	if _, err := r.Search(context.Background(), "   ", 1); !errors.Is(err, ErrEncoding) {
		t.Errorf("err = %v, want ErrEncoding", err)
	}
}

func Test_Retriever_KBounds(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)
	ctx := context.Background()

	cases := []struct {
		k    int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 3},
		{10, 3},
	}
	for _, tc := range cases {
		got, err := r.Search(ctx, "cat rabies", tc.k)
		if err != nil {
			t.Fatalf("k=%d: %v", tc.k, err)
		}
		if got == nil || len(got) != tc.want {
			t.Errorf("k=%d: got %d results, want %d", tc.k, len(got), tc.want)
		}
	}

	if _, err := r.Search(ctx, "cat", -1); !errors.Is(err, ErrIndexSearch) {
		t.Errorf("k=-1: err = %v, want ErrIndexSearch", err)
	}
}

func Test_Retriever_ScoresDescendAndRanksAreDense(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)
	got, err := r.Search(context.Background(), "vaccinate the dog against rabies", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i := range got {
		if got[i].Rank != i+1 {
			t.Errorf("result %d: Rank = %d", i, got[i].Rank)
		}
		if i > 0 && got[i].Score > got[i-1].Score {
			t.Errorf("score %v at rank %d exceeds %v at rank %d", got[i].Score, i+1, got[i-1].Score, i)
		}
	}
}

func Test_Retriever_Deterministic(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)
	ctx := context.Background()

	first, err := r.Search(ctx, "dog exercise", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := r.Search(ctx, "dog exercise", 3)
			if err != nil {
				t.Errorf("Search: %v", err)
				return
			}
			for i := range first {
				if again[i] != first[i] {
					t.Errorf("result %d differs: %+v vs %+v", i, again[i], first[i])
				}
			}
		}()
	}
	wg.Wait()
}

func Test_NewRetriever_CountMismatch(t *testing.T) {
	t.Parallel()
	idx, err := NewFlatIndexFromRows([][]float32{{1, 0}, {0, 1}}, MetricInnerProduct)
	if err != nil {
		t.Fatalf("NewFlatIndexFromRows: %v", err)
	}
	_, err = NewRetriever(keywordEmbedder{}, idx, []Document{{ID: 0, Text: "only one"}}, nil)
	if !errors.Is(err, ErrIndexLoad) {
		t.Errorf("err = %v, want ErrIndexLoad", err)
	}
}

func Test_Retriever_SearchVectorDimensionMismatch(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)
	if _, err := r.SearchVector(context.Background(), []float32{1, 0}, 1); !errors.Is(err, ErrIndexSearch) {
		t.Errorf("err = %v, want ErrIndexSearch", err)
	}
}

// badIndex returns a neighbour that has no document.
type badIndex struct{ *FlatIndex }

func (b badIndex) Search(context.Context, []float32, int) ([]Neighbor, error) {
	return []Neighbor{{ID: 99, Score: 1}}, nil
}

func Test_Retriever_OutOfRange(t *testing.T) {
	t.Parallel()
	flat, err := NewFlatIndexFromRows([][]float32{{1}}, MetricInnerProduct)
	if err != nil {
		t.Fatalf("NewFlatIndexFromRows: %v", err)
	}
	r, err := NewRetriever(keywordEmbedder{}, badIndex{flat}, []Document{{Text: "x"}}, nil)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	if _, err := r.SearchVector(context.Background(), []float32{1}, 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
}

func Test_Retriever_Warmup(t *testing.T) {
	t.Parallel()
	r := newVetRetriever(t)
	if err := r.Warmup(context.Background()); err != nil {
		t.Errorf("Warmup: %v", err)
	}

	flat, err := NewFlatIndexFromRows([][]float32{{1, 0}}, MetricInnerProduct)
	if err != nil {
		t.Fatalf("NewFlatIndexFromRows: %v", err)
	}
	mismatched, err := NewRetriever(keywordEmbedder{}, flat, []Document{{Text: "x"}}, nil)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	if err := mismatched.Warmup(context.Background()); !errors.Is(err, ErrIndexSearch) {
		t.Errorf("dimension mismatch: err = %v, want ErrIndexSearch", err)
	}

	down, err := NewRetriever(keywordEmbedder{err: errors.New("connection refused")}, flat, []Document{{Text: "x"}}, nil)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	if err := down.Warmup(context.Background()); !errors.Is(err, ErrModelLoad) {
		t.Errorf("unreachable model: err = %v, want ErrModelLoad", err)
	}
}

func Test_JoinContents(t *testing.T) {
	t.Parallel()
	got := JoinContents([]Result{{Content: "a"}, {Content: "b"}})
	if got != "a\n\nb" {
		t.Errorf("JoinContents = %q", got)
	}
	if JoinContents(nil) != "" {
		t.Errorf("JoinContents(nil) should be empty")
	}
}
