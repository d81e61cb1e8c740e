package embedder

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/54b3r/vetrag-go/internal/rag"
)

func Test_NewFromEnv_Backends(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"default ollama", map[string]string{}, false},
		{"openai with key", map[string]string{"EMBEDDING_PROVIDER": "openai", "OPENAI_API_KEY": "sk"}, false},
		{"openai without key", map[string]string{"EMBEDDING_PROVIDER": "openai"}, true},
		{"azure without endpoint", map[string]string{"EMBEDDING_PROVIDER": "azure", "EMBEDDING_API_KEY": "k"}, true},
		{"azure complete", map[string]string{"EMBEDDING_PROVIDER": "azure", "EMBEDDING_API_KEY": "k", "AZURE_OPENAI_ENDPOINT": "https://x.openai.azure.com"}, false},
		{"unknown", map[string]string{"EMBEDDING_PROVIDER": "bedrock"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"EMBEDDING_PROVIDER", "EMBEDDING_API_KEY", "EMBEDDING_ENDPOINT", "OPENAI_API_KEY", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT"} {
				t.Setenv(k, "")
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			emb, err := NewFromEnv()
			if tc.wantErr {
				if !errors.Is(err, rag.ErrModelLoad) {
					t.Errorf("err = %v, want ErrModelLoad", err)
				}
				return
			}
			if err != nil || emb == nil {
				t.Errorf("NewFromEnv() = %v, %v", emb, err)
			}
		})
	}
}

func Test_ModelDefaults(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	if got := Model(); got != "bge-m3" {
		t.Errorf("Model() = %q, want bge-m3", got)
	}
	if got := DefaultDimensions(Backend()); got != 1024 {
		t.Errorf("DefaultDimensions = %d, want 1024", got)
	}
	t.Setenv("EMBEDDING_DIMENSIONS", "256")
	if got := DefaultDimensions("openai"); got != 256 {
		t.Errorf("DefaultDimensions with override = %d, want 256", got)
	}
}

func Test_ValidateConfig(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	if err := ValidateConfig(slog.Default()); err == nil {
		t.Error("want error for missing OpenAI key")
	}

	t.Setenv("OPENAI_API_KEY", "sk")
	t.Setenv("EMBEDDING_MODEL", "gpt-4o")
	if err := ValidateConfig(slog.Default()); err != nil {
		t.Errorf("chat-like model should only warn, got %v", err)
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"bge-m3":                 false,
		"text-embedding-3-small": false,
		"nomic-embed-text":       false,
		"llama3.1:8b":            true,
		"deepseek-r1":            true,
	}
	for model, want := range cases {
		if got := looksLikeChatModel(model); got != want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", model, got, want)
		}
	}
}
