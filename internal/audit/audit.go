// Package audit writes one structured log entry per CLI invocation, naming
// the command, the config file, and the operational environment, so an
// operator can tell which index, embedding model, and chat backend produced
// an answer. Secrets are recorded as presence only.
package audit

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// auditEntry defines an env var to include in the audit log.
type auditEntry struct {
	// key is the environment variable name.
	key string
	// secret indicates the value should be redacted to presence/absence.
	secret bool
}

// auditKeys is the ordered list of env vars included in every audit entry.
var auditKeys = []auditEntry{
	{"INDEX_BACKEND", false},
	{"INDEX_PATH", false},
	{"DOCUMENTS_PATH", false},
	{"TOP_K", false},
	{"EMBEDDING_PROVIDER", false},
	{"EMBEDDING_MODEL", false},
	{"EMBEDDING_ENDPOINT", false},
	{"EMBEDDING_API_KEY", true},
	{"QDRANT_HOST", false},
	{"QDRANT_PORT", false},
	{"QDRANT_COLLECTION", false},
	{"QDRANT_API_KEY", true},
	{"MODEL_PROVIDER", false},
	{"OPENROUTER_MODEL", false},
	{"OPENROUTER_API_KEY", true},
	{"OLLAMA_HOST", false},
	{"OLLAMA_MODEL", false},
	{"OPENAI_MODEL", false},
	{"OPENAI_API_KEY", true},
	{"AZURE_OPENAI_ENDPOINT", false},
	{"AZURE_OPENAI_DEPLOYMENT", false},
	{"AZURE_OPENAI_API_KEY", true},
	{"ARK_MODEL", false},
	{"ARK_API_KEY", true},
	{"GEMINI_MODEL", false},
	{"GOOGLE_API_KEY", true},
	{"VETRAG_API_KEY", true},
	{"VETRAG_HISTORY_DB", false},
	{"LOG_LEVEL", false},
	{"LANGFUSE_PUBLIC_KEY", true},
	{"LANGFUSE_SECRET_KEY", true},
}

// secretEnvKeys is the set of audited keys whose values are never logged.
var secretEnvKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, e := range auditKeys {
		if e.secret {
			m[e.key] = true
		}
	}
	return m
}()

// LogCommandStart emits a structured audit entry when a CLI command begins.
func LogCommandStart(ctx context.Context, log *slog.Logger, command string, configPath string) {
	attrs := make([]slog.Attr, 0, len(auditKeys)+2)
	attrs = append(attrs,
		slog.String("command", command),
		slog.String("config_file", sanitiseConfigPath(configPath)),
	)
	for _, e := range auditKeys {
		attrs = append(attrs, slog.String(e.key, SanitiseKey(e.key, os.Getenv(e.key))))
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit: command start", attrs...)
}

// SanitiseKey returns "set" or "unset" for secret keys and the value, or
// "unset", for everything else. The result is safe to log.
func SanitiseKey(key, value string) string {
	if secretEnvKeys[key] || looksSecret(key) {
		return presence(value)
	}
	if value == "" {
		return "unset"
	}
	return value
}

// looksSecret catches credentials that are not in the audit table.
func looksSecret(key string) bool {
	return strings.HasSuffix(key, "_API_KEY") ||
		strings.HasSuffix(key, "_SECRET_KEY") ||
		strings.HasSuffix(key, "_TOKEN")
}

// presence returns "set" if the value is non-empty, "unset" otherwise.
func presence(v string) string {
	if v != "" {
		return "set"
	}
	return "unset"
}

// sanitiseConfigPath returns the config path with the home directory
// abbreviated to "~", or "none" if empty.
func sanitiseConfigPath(p string) string {
	if p == "" {
		return "none"
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" && strings.HasPrefix(p, home+string(os.PathSeparator)) {
		return "~" + p[len(home):]
	}
	return p
}
