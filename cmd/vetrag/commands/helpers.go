package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/vetrag-go/internal/assistant"
	"github.com/54b3r/vetrag-go/internal/budget"
	"github.com/54b3r/vetrag-go/internal/embedder"
	"github.com/54b3r/vetrag-go/internal/faiss"
	"github.com/54b3r/vetrag-go/internal/provider"
	"github.com/54b3r/vetrag-go/internal/rag"
	"github.com/54b3r/vetrag-go/internal/store"
)

const (
	// defaultIndexPath and defaultDocumentsPath match the file names the
	// corpus build emits next to each other.
	defaultIndexPath     = "bge_m3_faiss.index"
	defaultDocumentsPath = "bge_m3_documents.json"

	indexBackendFAISS  = "faiss"
	indexBackendQdrant = "qdrant"

	historyDisabled = "disabled"
)

// retrieval bundles the retriever with the backend handles other commands
// need for readiness probes and reporting.
type retrieval struct {
	// retriever is the top-k search over the configured corpus.
	retriever *rag.Retriever
	// backend is the index backend name: faiss or qdrant.
	backend string
	// qdrant is set when backend is qdrant.
	qdrant *rag.QdrantIndex
	// close releases the index connection, if any.
	close func()
}

// buildRetrieval loads the document store, opens the configured index, and
// constructs the embedder. When warmup is true the embedding model is probed
// once and its dimension checked against the index.
func buildRetrieval(ctx context.Context, log *slog.Logger, warmup bool) (*retrieval, error) {
	if err := embedder.ValidateConfig(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}

	docsPath := getEnvOrDefault("DOCUMENTS_PATH", defaultDocumentsPath)
	docs, err := rag.LoadDocuments(docsPath)
	if err != nil {
		return nil, err
	}

	out := &retrieval{backend: strings.ToLower(getEnvOrDefault("INDEX_BACKEND", indexBackendFAISS)), close: func() {}}

	var idx rag.Index
	switch out.backend {
	case indexBackendFAISS:
		path := getEnvOrDefault("INDEX_PATH", defaultIndexPath)
		flat, err := faiss.Load(path)
		if err != nil {
			return nil, err
		}
		idx = flat
		log.Info("index: loaded FAISS file",
			slog.String("path", path),
			slog.Int("vectors", flat.Len()),
			slog.Int("dimension", flat.Dimension()),
			slog.String("metric", flat.Metric().String()),
		)
	case indexBackendQdrant:
		q, err := rag.OpenQdrantIndex(ctx, qdrantConfigFromEnv())
		if err != nil {
			return nil, err
		}
		idx, out.qdrant = q, q
		out.close = func() { _ = q.Close() }
		log.Info("index: opened Qdrant collection",
			slog.Int("vectors", q.Len()),
			slog.Int("dimension", q.Dimension()),
			slog.String("metric", q.Metric().String()),
		)
	default:
		return nil, fmt.Errorf("unknown INDEX_BACKEND %q (want %s or %s): %w",
			out.backend, indexBackendFAISS, indexBackendQdrant, rag.ErrIndexLoad)
	}

	if want := embedder.DefaultDimensions(embedder.Backend()); want != idx.Dimension() {
		log.Warn("index dimension differs from the embedding backend default; set EMBEDDING_DIMENSIONS or check EMBEDDING_MODEL",
			slog.Int("index_dimension", idx.Dimension()),
			slog.Int("expected_dimension", want),
			slog.String("embedding_model", embedder.Model()),
		)
	}

	r, err := rag.NewRetriever(emb, idx, docs, log)
	if err != nil {
		out.close()
		return nil, err
	}
	out.retriever = r

	if warmup && !getEnvBool("VETRAG_SKIP_WARMUP") {
		if err := r.Warmup(ctx); err != nil {
			out.close()
			return nil, err
		}
		log.Info("embedder: warmup complete",
			slog.String("backend", embedder.Backend()),
			slog.String("model", embedder.Model()),
		)
	}
	return out, nil
}

// qdrantConfigFromEnv reads the QDRANT_* connection settings.
func qdrantConfigFromEnv() *rag.QdrantConfig {
	return &rag.QdrantConfig{
		Host:       os.Getenv("QDRANT_HOST"),
		Port:       getEnvInt("QDRANT_PORT", 0),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "vetrag"),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     getEnvBool("QDRANT_TLS"),
	}
}

// buildAssistant constructs the chat model and composes it with searcher.
// history may be nil.
func buildAssistant(ctx context.Context, searcher rag.Searcher, history store.HistoryStore) (*assistant.Assistant, *provider.Config, error) {
	cfg := provider.ConfigFromEnv()
	chat, err := provider.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	a, err := assistant.New(&assistant.Config{
		ChatModel:        chat,
		Searcher:         searcher,
		ModelName:        cfg.ModelName(),
		TopK:             topK(),
		History:          history,
		MaxContextTokens: getEnvInt("MODEL_MAX_CONTEXT_TOKENS", budget.DefaultMaxContextTokens),
	})
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}

// openHistory opens the answered-question store. VETRAG_HISTORY_DB overrides
// the default path (~/.vetrag/history.db); "disabled" turns history off.
// Failures are logged and history is disabled rather than failing the
// command. The returned close function is never nil.
func openHistory(log *slog.Logger) (store.HistoryStore, func()) {
	noop := func() {}
	path := os.Getenv("VETRAG_HISTORY_DB")
	if path == historyDisabled {
		log.Info("history: disabled via VETRAG_HISTORY_DB=disabled")
		return nil, noop
	}
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
		path = p
	}
	hs, err := store.Open(path)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, noop
	}
	log.Debug("history: store opened", slog.String("path", path))
	return hs, func() { _ = hs.Close() }
}

// topK returns the configured default passage count.
func topK() int {
	return getEnvInt("TOP_K", assistant.DefaultTopK)
}

// getEnvOrDefault returns the value of key, or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of key, or fallback when unset or
// unparsable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvBool reports whether key is set to a true value.
func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
