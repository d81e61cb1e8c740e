package audit

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitiseKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		key, value, want string
	}{
		{"OPENROUTER_API_KEY", "sk-or-abc123", "set"},
		{"OPENROUTER_API_KEY", "", "unset"},
		{"VETRAG_API_KEY", "token", "set"},
		{"LANGFUSE_SECRET_KEY", "sk-lf", "set"},
		{"SOME_OTHER_API_KEY", "value", "set"},
		{"HF_TOKEN", "hf_abc", "set"},
		{"MODEL_PROVIDER", "openrouter", "openrouter"},
		{"MODEL_PROVIDER", "", "unset"},
		{"INDEX_PATH", "/data/vet.index", "/data/vet.index"},
	}
	for _, tc := range cases {
		if got := SanitiseKey(tc.key, tc.value); got != tc.want {
			t.Errorf("SanitiseKey(%s, %q) = %q, want %q", tc.key, tc.value, got, tc.want)
		}
	}
}

func TestSecretKeysCoverCredentials(t *testing.T) {
	t.Parallel()
	for _, e := range auditKeys {
		if looksSecret(e.key) && !e.secret {
			t.Errorf("%s looks like a credential but is not marked secret", e.key)
		}
	}
}

func TestLogCommandStart(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-or-very-secret")
	t.Setenv("INDEX_PATH", "/data/vet.index")
	t.Setenv("MODEL_PROVIDER", "openrouter")

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	LogCommandStart(t.Context(), log, "ask", "")

	out := buf.String()
	for _, want := range []string{
		`"command":"ask"`,
		`"config_file":"none"`,
		`"OPENROUTER_API_KEY":"set"`,
		`"INDEX_PATH":"/data/vet.index"`,
		`"MODEL_PROVIDER":"openrouter"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("audit entry missing %s:\n%s", want, out)
		}
	}
	if strings.Contains(out, "sk-or-very-secret") {
		t.Error("secret value leaked into audit log")
	}
}

func TestSanitiseConfigPath(t *testing.T) {
	t.Parallel()
	if got := sanitiseConfigPath(""); got != "none" {
		t.Errorf("expected 'none', got %q", got)
	}
	if got := sanitiseConfigPath("/tmp/config.yaml"); got != "/tmp/config.yaml" {
		t.Errorf("expected '/tmp/config.yaml', got %q", got)
	}
	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".vetrag", "config.yaml")
		want := "~" + string(os.PathSeparator) + filepath.Join(".vetrag", "config.yaml")
		if got := sanitiseConfigPath(p); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
