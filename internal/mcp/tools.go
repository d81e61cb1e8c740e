// Package mcp exposes vetrag retrieval and question answering as Model
// Context Protocol tools so LLM agents can ground their veterinary answers in
// the indexed corpus. The server speaks MCP over stdio.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/54b3r/vetrag-go/internal/rag"
	"github.com/54b3r/vetrag-go/internal/version"
)

const (
	// ToolSearch is the name of the retrieval-only tool.
	ToolSearch = "search_veterinary_documents"
	// ToolAsk is the name of the retrieval plus generation tool.
	ToolAsk = "ask_veterinary_question"

	// maxTopK caps the k argument of both tools.
	maxTopK = 50
)

// NewServer builds an MCP server with the vetrag tools registered. asker may
// be nil, in which case only the search tool is offered.
func NewServer(searcher rag.Searcher, asker Asker, log *slog.Logger) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("vetrag", version.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)
	RegisterTools(s, NewHandlers(searcher, asker, log))
	return s
}

// RegisterTools adds the vetrag tools backed by h to server.
func RegisterTools(server *mcpserver.MCPServer, h *Handlers) {
	server.AddTool(mcp.Tool{
		Name: ToolSearch,
		Description: "Search the veterinary knowledge base and return the passages closest to the query, " +
			"best first. Use this to ground answers about animal health, vaccination, and care.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free-text search query, in Persian or English",
				},
				"k": map[string]any{
					"type":        "number",
					"description": fmt.Sprintf("Number of passages to return (default: %d, max: %d)", h.defaultK, maxTopK),
					"default":     h.defaultK,
				},
			},
			Required: []string{"query"},
		},
	}, h.Search)

	if h.asker == nil {
		return
	}
	server.AddTool(mcp.Tool{
		Name: ToolAsk,
		Description: "Answer a veterinary question in Persian using the passages retrieved from the " +
			"knowledge base. Optionally lists the passages the answer is based on.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The veterinary question to answer",
				},
				"k": map[string]any{
					"type":        "number",
					"description": "Number of passages forwarded to the model",
				},
				"show_sources": map[string]any{
					"type":        "boolean",
					"description": "Append the retrieved passages after the answer",
					"default":     false,
				},
			},
			Required: []string{"question"},
		},
	}, h.Ask)
}

// ServeStdio runs server over the given streams until ctx is cancelled or
// the client disconnects.
func ServeStdio(ctx context.Context, server *mcpserver.MCPServer, in io.Reader, out io.Writer) error {
	if err := mcpserver.NewStdioServer(server).Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp: stdio server: %w", err)
	}
	return nil
}
