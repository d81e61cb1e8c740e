// Package tracing sends chat model traces to Langfuse when it is configured.
//
// Environment variables:
//
//	LANGFUSE_PUBLIC_KEY, LANGFUSE_SECRET_KEY  enable tracing when both are set
//	LANGFUSE_HOST                             defaults to http://localhost:3000
package tracing

import (
	"log/slog"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"

	"github.com/54b3r/vetrag-go/internal/version"
)

// defaultHost is the Langfuse endpoint used when LANGFUSE_HOST is unset.
const defaultHost = "http://localhost:3000"

// Settings holds the resolved Langfuse connection parameters.
type Settings struct {
	Host      string
	PublicKey string
	SecretKey string
}

// FromEnv reads Langfuse settings. ok is false when either key is missing.
func FromEnv() (s Settings, ok bool) {
	s = Settings{
		Host:      os.Getenv("LANGFUSE_HOST"),
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
	if s.PublicKey == "" || s.SecretKey == "" {
		return s, false
	}
	if s.Host == "" {
		s.Host = defaultHost
	}
	return s, true
}

// Setup builds the Langfuse callback handler from the environment. It
// returns the handler, a flush function that must run before exit, and
// whether tracing is enabled. When disabled the handler and flush are nil.
func Setup() (callbacks.Handler, func(), bool) {
	s, ok := FromEnv()
	if !ok {
		return nil, nil, false
	}
	handler, flusher := langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      s.Host,
		PublicKey: s.PublicKey,
		SecretKey: s.SecretKey,
		Name:      "vetrag",
		Release:   version.Version,
	})
	return handler, flusher, true
}

// Enable registers the Langfuse handler globally so every chat model call
// is traced. The returned function flushes pending traces and is safe to
// call when tracing is disabled.
func Enable(log *slog.Logger) func() {
	handler, flush, ok := Setup()
	if !ok {
		log.Debug("tracing: langfuse not configured")
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("tracing: langfuse enabled", slog.String("host", os.Getenv("LANGFUSE_HOST")))
	return flush
}
