package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/vetrag-go/internal/assistant"
	"github.com/54b3r/vetrag-go/internal/rag"
)

type fakeSearcher struct {
	results []rag.Result
	err     error
	gotK    int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]rag.Result, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results[:min(k, len(f.results))], nil
}

type fakeAsker struct {
	answer *assistant.Answer
	err    error
	gotReq assistant.Request
}

func (f *fakeAsker) Ask(_ context.Context, req assistant.Request) (*assistant.Answer, error) {
	f.gotReq = req
	return f.answer, f.err
}

var vetResults = []rag.Result{
	{Rank: 1, Score: 0.93, Content: "واکسن هاری برای گربه‌ها سالانه تکرار می‌شود.", Source: "vaccines.pdf", DocumentID: 4},
	{Rank: 2, Score: 0.51, Content: "سگ‌ها به ورزش روزانه نیاز دارند.", DocumentID: 9},
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func call(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T, want mcp.TextContent", res.Content[0])
	}
	return tc.Text
}

func Test_Search(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		args      map[string]any
		wantK     int
		wantCount int
	}{
		{"default k", map[string]any{"query": "واکسن گربه"}, assistant.DefaultTopK, 1},
		{"json number k", map[string]any{"query": "واکسن گربه", "k": float64(2)}, 2, 2},
		{"k beyond corpus", map[string]any{"query": "واکسن گربه", "k": float64(7)}, 7, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fs := &fakeSearcher{results: vetResults}
			h := NewHandlers(fs, nil, discard())
			res, err := h.Search(t.Context(), call(ToolSearch, tc.args))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if res.IsError {
				t.Fatalf("unexpected tool error: %s", text(t, res))
			}
			if fs.gotK != tc.wantK {
				t.Errorf("k: expected %d, got %d", tc.wantK, fs.gotK)
			}
			var out searchResult
			if err := json.Unmarshal([]byte(text(t, res)), &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(out.Results) != tc.wantCount {
				t.Errorf("results: expected %d, got %d", tc.wantCount, len(out.Results))
			}
		})
	}
}

func Test_Search_ToolErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		searcher *fakeSearcher
		args     map[string]any
		wantText string
	}{
		{"missing query", &fakeSearcher{}, map[string]any{}, "query argument is required"},
		{"blank query", &fakeSearcher{}, map[string]any{"query": "  "}, "query argument is required"},
		{"negative k", &fakeSearcher{}, map[string]any{"query": "cat", "k": float64(-1)}, "k must be between"},
		{"backend down", &fakeSearcher{err: fmt.Errorf("embed: %w", rag.ErrModelLoad)}, map[string]any{"query": "cat"}, "search failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res, err := NewHandlers(tc.searcher, nil, discard()).Search(t.Context(), call(ToolSearch, tc.args))
			if err != nil {
				t.Fatalf("protocol error: %v", err)
			}
			if !res.IsError {
				t.Fatal("expected tool error result")
			}
			if got := text(t, res); !strings.Contains(got, tc.wantText) {
				t.Errorf("expected %q in %q", tc.wantText, got)
			}
		})
	}
}

func Test_Ask(t *testing.T) {
	t.Parallel()

	fa := &fakeAsker{answer: &assistant.Answer{Text: "گربه‌ها سالانه واکسینه می‌شوند.", Sources: vetResults[:1]}}
	h := NewHandlers(&fakeSearcher{}, fa, discard())

	res, err := h.Ask(t.Context(), call(ToolAsk, map[string]any{"question": "واکسن گربه؟", "k": float64(1)}))
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if got := text(t, res); got != "گربه‌ها سالانه واکسینه می‌شوند." {
		t.Errorf("unexpected answer %q", got)
	}
	if fa.gotReq.Surface != "mcp" || fa.gotReq.TopK != 1 {
		t.Errorf("request: got %+v", fa.gotReq)
	}

	res, err = h.Ask(t.Context(), call(ToolAsk, map[string]any{"question": "واکسن گربه؟", "show_sources": true}))
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	got := text(t, res)
	for _, want := range []string{"Sources:", "[1] (score 0.9300, vaccines.pdf)", vetResults[0].Content} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}

func Test_Ask_ToolErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		asker Asker
		args  map[string]any
	}{
		{"not configured", nil, map[string]any{"question": "q"}},
		{"missing question", &fakeAsker{}, map[string]any{}},
		{"k too large", &fakeAsker{}, map[string]any{"question": "q", "k": float64(500)}},
		{"completion failed", &fakeAsker{err: fmt.Errorf("x: %w", assistant.ErrCompletion)}, map[string]any{"question": "q"}},
		{"empty answer", &fakeAsker{err: errors.New("model returned an empty answer")}, map[string]any{"question": "q"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res, err := NewHandlers(&fakeSearcher{}, tc.asker, discard()).Ask(t.Context(), call(ToolAsk, tc.args))
			if err != nil {
				t.Fatalf("protocol error: %v", err)
			}
			if !res.IsError {
				t.Errorf("expected tool error result, got %q", text(t, res))
			}
		})
	}
}

func Test_NewServer_ListsTools(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		asker Asker
		want  []string
		never []string
	}{
		{"search only", nil, []string{ToolSearch}, []string{ToolAsk}},
		{"search and ask", &fakeAsker{}, []string{ToolSearch, ToolAsk}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := NewServer(&fakeSearcher{}, tc.asker, discard())
			resp := s.HandleMessage(t.Context(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
			raw, err := json.Marshal(resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			for _, name := range tc.want {
				if !strings.Contains(string(raw), `"`+name+`"`) {
					t.Errorf("tools/list missing %s: %s", name, raw)
				}
			}
			for _, name := range tc.never {
				if strings.Contains(string(raw), `"`+name+`"`) {
					t.Errorf("tools/list unexpectedly lists %s", name)
				}
			}
		})
	}
}

func Test_FormatSources(t *testing.T) {
	t.Parallel()

	got := FormatSources(vetResults)
	want := "Sources:\n[1] (score 0.9300, vaccines.pdf)\n" + vetResults[0].Content +
		"\n[2] (score 0.5100)\n" + vetResults[1].Content
	if got != want {
		t.Errorf("FormatSources:\n got %q\nwant %q", got, want)
	}
}
