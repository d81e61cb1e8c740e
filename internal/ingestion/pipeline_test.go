package ingestion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/54b3r/vetrag-go/internal/rag"
)

type upsertCall struct {
	ids  []int64
	docs []rag.Document
}

type fakeSink struct {
	dim     int
	metric  rag.Metric
	calls   []upsertCall
	failAt  int
	prepErr error
}

func (f *fakeSink) Prepare(_ context.Context, dim int, metric rag.Metric) error {
	f.dim, f.metric = dim, metric
	return f.prepErr
}

func (f *fakeSink) Upsert(_ context.Context, ids []int64, vectors [][]float32, docs []rag.Document) error {
	if f.failAt > 0 && len(f.calls)+1 == f.failAt {
		return errors.New("qdrant unavailable")
	}
	if len(ids) != len(vectors) || len(ids) != len(docs) {
		return fmt.Errorf("unaligned batch: %d ids, %d vectors, %d docs", len(ids), len(vectors), len(docs))
	}
	f.calls = append(f.calls, upsertCall{ids: ids, docs: docs})
	return nil
}

type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = 1
	}
	return out, nil
}

func vetDocs(n int) []rag.Document {
	docs := make([]rag.Document, n)
	for i := range docs {
		docs[i] = rag.Document{ID: i, Text: fmt.Sprintf("بخش %d درباره واکسیناسیون دام", i)}
	}
	return docs
}

func TestNewPipeline(t *testing.T) {
	t.Parallel()

	if _, err := NewPipeline(nil, nil, nil); err == nil {
		t.Error("expected error for nil sink")
	}
	p, err := NewPipeline(nil, &fakeSink{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.cfg.BatchSize != 64 {
		t.Errorf("default batch size: got %d", p.cfg.BatchSize)
	}
}

func TestImportVectors(t *testing.T) {
	t.Parallel()

	rows := [][]float32{{1, 0}, {0, 1}, {0.6, 0.8}, {0.8, 0.6}, {1, 1}}
	src, err := rag.NewFlatIndexFromRows(rows, rag.MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	sink := &fakeSink{}
	p, _ := NewPipeline(nil, sink, &Config{BatchSize: 2})

	var msgs []string
	n, err := p.ImportVectors(t.Context(), src, vetDocs(5), func(m string) { msgs = append(msgs, m) })
	if err != nil {
		t.Fatalf("ImportVectors: %v", err)
	}
	if n != 5 {
		t.Errorf("written: expected 5, got %d", n)
	}
	if sink.dim != 2 || sink.metric != rag.MetricL2 {
		t.Errorf("prepare: got dim=%d metric=%s", sink.dim, sink.metric)
	}
	if len(sink.calls) != 3 {
		t.Fatalf("batches: expected 3, got %d", len(sink.calls))
	}
	last := sink.calls[2]
	if len(last.ids) != 1 || last.ids[0] != 4 || last.docs[0].ID != 4 {
		t.Errorf("last batch: got %+v", last)
	}
	if len(msgs) != 3 || msgs[2] != "imported 5/5 vectors" {
		t.Errorf("progress: got %v", msgs)
	}
}

func TestImportVectors_IDMap(t *testing.T) {
	t.Parallel()

	src, err := rag.NewFlatIndex(1, []float32{1, 2, 3}, rag.MetricInnerProduct, []int64{2, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	sink := &fakeSink{}
	p, _ := NewPipeline(nil, sink, nil)
	if _, err := p.ImportVectors(t.Context(), src, vetDocs(3), nil); err != nil {
		t.Fatalf("ImportVectors: %v", err)
	}
	got := sink.calls[0]
	for i, id := range got.ids {
		if got.docs[i].ID != int(id) {
			t.Errorf("point %d: id %d paired with document %d", i, id, got.docs[i].ID)
		}
	}
}

func TestImportVectors_Errors(t *testing.T) {
	t.Parallel()

	mismatch, _ := rag.NewFlatIndexFromRows([][]float32{{1}, {2}}, rag.MetricL2)
	badID, _ := rag.NewFlatIndex(1, []float32{1, 2}, rag.MetricL2, []int64{0, 9})

	cases := []struct {
		name   string
		src    VectorSource
		docs   int
		sink   *fakeSink
		wantIs error
	}{
		{"count mismatch", mismatch, 3, &fakeSink{}, rag.ErrIndexLoad},
		{"id out of range", badID, 2, &fakeSink{}, rag.ErrOutOfRange},
		{"prepare fails", badID, 2, &fakeSink{prepErr: errors.New("denied")}, nil},
		{"upsert fails", mismatch, 2, &fakeSink{failAt: 1}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, _ := NewPipeline(nil, tc.sink, nil)
			_, err := p.ImportVectors(t.Context(), tc.src, vetDocs(tc.docs), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
				t.Errorf("expected %v, got %v", tc.wantIs, err)
			}
		})
	}
}

func TestEmbed(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	p, _ := NewPipeline(fakeEmbedder{dim: 4}, sink, &Config{BatchSize: 3})
	n, err := p.Embed(t.Context(), vetDocs(7), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if n != 7 {
		t.Errorf("written: expected 7, got %d", n)
	}
	if sink.dim != 4 || sink.metric != rag.MetricInnerProduct {
		t.Errorf("prepare: got dim=%d metric=%s", sink.dim, sink.metric)
	}
	if len(sink.calls) != 3 {
		t.Errorf("batches: expected 3, got %d", len(sink.calls))
	}
}

func TestEmbed_NoEmbedder(t *testing.T) {
	t.Parallel()

	p, _ := NewPipeline(nil, &fakeSink{}, nil)
	if _, err := p.Embed(t.Context(), vetDocs(1), nil); !errors.Is(err, rag.ErrModelLoad) {
		t.Errorf("expected ErrModelLoad, got %v", err)
	}
}

func TestPayloadFor(t *testing.T) {
	t.Parallel()

	got := payloadFor(rag.Document{
		ID:       1,
		Text:     "متن",
		Source:   "book.pdf",
		Metadata: map[string]string{"text": "shadow", "chapter": "3"},
	})
	if got["text"] != "متن" || got["source"] != "book.pdf" || got["chapter"] != "3" {
		t.Errorf("payload: got %v", got)
	}
	if _, ok := payloadFor(rag.Document{Text: "x"})["source"]; ok {
		t.Error("empty source must be omitted")
	}
}
