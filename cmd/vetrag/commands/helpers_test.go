package commands

import (
	"bytes"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/vetrag-go/internal/provider"
	"github.com/54b3r/vetrag-go/internal/rag"
	"github.com/54b3r/vetrag-go/internal/store"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestGetEnvInt(t *testing.T) {
	cases := []struct {
		name string
		val  string
		want int
	}{
		{"unset", "", 7},
		{"valid", "3", 3},
		{"garbage", "three", 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("VETRAG_TEST_INT", tc.val)
			if got := getEnvInt("VETRAG_TEST_INT", 7); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	cases := map[string]bool{"": false, "true": true, "1": true, "false": false, "yes": false}
	for val, want := range cases {
		t.Setenv("VETRAG_TEST_BOOL", val)
		if got := getEnvBool("VETRAG_TEST_BOOL"); got != want {
			t.Errorf("%q: expected %v, got %v", val, want, got)
		}
	}
}

func TestTopK(t *testing.T) {
	t.Setenv("TOP_K", "")
	if got := topK(); got != 1 {
		t.Errorf("default: expected 1, got %d", got)
	}
	t.Setenv("TOP_K", "4")
	if got := topK(); got != 4 {
		t.Errorf("TOP_K=4: expected 4, got %d", got)
	}
}

func TestOpenHistory(t *testing.T) {
	t.Setenv("VETRAG_HISTORY_DB", historyDisabled)
	hs, closeFn := openHistory(discard())
	if hs != nil {
		t.Error("expected nil store when disabled")
	}
	closeFn()

	path := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("VETRAG_HISTORY_DB", path)
	hs, closeFn = openHistory(discard())
	if hs == nil {
		t.Fatal("expected store to open")
	}
	defer closeFn()
	if err := hs.Append(t.Context(), &store.Turn{Surface: "cli", Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestOpenHistory_Unwritable(t *testing.T) {
	t.Setenv("VETRAG_HISTORY_DB", filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	hs, closeFn := openHistory(discard())
	defer closeFn()
	if hs != nil {
		t.Error("expected history to be disabled when the store cannot open")
	}
}

func TestPrintResults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printResults(&buf, []rag.Result{
		{Rank: 1, Score: 0.875, Content: "واکسن هاری", Source: "vaccines.pdf", DocumentID: 3},
		{Rank: 2, Score: 0.5, Content: "تغذیه سگ", DocumentID: 8},
	})
	want := "[1] score=0.8750 doc=3 source=vaccines.pdf\nواکسن هاری\n\n[2] score=0.5000 doc=8\nتغذیه سگ\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	buf.Reset()
	printResults(&buf, nil)
	if got := buf.String(); got != "no results\n" {
		t.Errorf("empty: got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("چطور گربه را واکسن بزنم", 5); got != "چطور…" {
		t.Errorf("got %q", got)
	}
}

func TestChatPinger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		cfg      *provider.Config
		wantName string
	}{
		{"ollama", &provider.Config{Backend: provider.BackendOllama, Ollama: provider.ProviderOllama{Host: "http://localhost:11434/"}}, "ollama"},
		{"openrouter", &provider.Config{Backend: provider.BackendOpenRouter}, "openrouter"},
		{"gemini", &provider.Config{Backend: provider.BackendGemini}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := chatPinger(tc.cfg)
			if tc.wantName == "" {
				if p != nil {
					t.Errorf("expected no pinger, got %s", p.Name())
				}
				return
			}
			if p == nil || p.Name() != tc.wantName {
				t.Fatalf("expected pinger %q, got %v", tc.wantName, p)
			}
		})
	}
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	got := strings.Join(names, ",")
	for _, want := range []string{"ask", "history", "info", "ingest", "mcp", "search", "serve", "version"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing subcommand %q in %s", want, got)
		}
	}
}
