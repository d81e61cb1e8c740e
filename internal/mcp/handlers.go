package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/54b3r/vetrag-go/internal/assistant"
	"github.com/54b3r/vetrag-go/internal/rag"
)

// Asker is satisfied by *assistant.Assistant.
type Asker interface {
	Ask(ctx context.Context, req assistant.Request) (*assistant.Answer, error)
}

// Handlers implements the vetrag MCP tools.
type Handlers struct {
	searcher rag.Searcher
	asker    Asker
	defaultK int
	log      *slog.Logger
}

// NewHandlers constructs Handlers. asker may be nil; a nil log falls back to
// slog.Default.
func NewHandlers(searcher rag.Searcher, asker Asker, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{searcher: searcher, asker: asker, defaultK: assistant.DefaultTopK, log: log}
}

// searchResult is the JSON payload returned by the search tool.
type searchResult struct {
	Query   string       `json:"query"`
	Results []rag.Result `json:"results"`
}

// Search handles the search_veterinary_documents tool.
func (h *Handlers) Search(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query argument is required and must be a non-empty string"), nil
	}
	k := request.GetInt("k", h.defaultK)
	if k < 0 || k > maxTopK {
		return mcp.NewToolResultError(fmt.Sprintf("k must be between 0 and %d", maxTopK)), nil
	}

	results, err := h.searcher.Search(ctx, query, k)
	if err != nil {
		h.log.Error("mcp: search failed", slog.Int("k", k), slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	raw, err := json.MarshalIndent(searchResult{Query: query, Results: results}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: encode results: %w", err)
	}
	h.log.Info("mcp: search complete", slog.Int("k", k), slog.Int("results", len(results)))
	return mcp.NewToolResultText(string(raw)), nil
}

// Ask handles the ask_veterinary_question tool.
func (h *Handlers) Ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.asker == nil {
		return mcp.NewToolResultError("question answering is not configured"), nil
	}
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("question argument is required and must be a non-empty string"), nil
	}
	k := request.GetInt("k", 0)
	if k < 0 || k > maxTopK {
		return mcp.NewToolResultError(fmt.Sprintf("k must be between 0 and %d", maxTopK)), nil
	}

	ans, err := h.asker.Ask(ctx, assistant.Request{Question: question, TopK: k, Surface: "mcp"})
	if err != nil {
		h.log.Error("mcp: ask failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	if !request.GetBool("show_sources", false) {
		return mcp.NewToolResultText(ans.Text), nil
	}
	return mcp.NewToolResultText(ans.Text + "\n\n" + FormatSources(ans.Sources)), nil
}

// FormatSources renders retrieved passages as a numbered plain-text list.
func FormatSources(results []rag.Result) string {
	var b strings.Builder
	b.WriteString("Sources:")
	for _, r := range results {
		fmt.Fprintf(&b, "\n[%d] (score %.4f", r.Rank, r.Score)
		if r.Source != "" {
			fmt.Fprintf(&b, ", %s", r.Source)
		}
		fmt.Fprintf(&b, ")\n%s", r.Content)
	}
	return b.String()
}
