package tracing

import (
	"log/slog"
	"testing"
)

func TestFromEnv(t *testing.T) {
	cases := []struct {
		name     string
		public   string
		secret   string
		host     string
		wantOK   bool
		wantHost string
	}{
		{"unset", "", "", "", false, ""},
		{"public only", "pk-lf", "", "", false, ""},
		{"secret only", "", "sk-lf", "", false, ""},
		{"default host", "pk-lf", "sk-lf", "", true, defaultHost},
		{"custom host", "pk-lf", "sk-lf", "https://cloud.langfuse.com", true, "https://cloud.langfuse.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("LANGFUSE_PUBLIC_KEY", tc.public)
			t.Setenv("LANGFUSE_SECRET_KEY", tc.secret)
			t.Setenv("LANGFUSE_HOST", tc.host)

			s, ok := FromEnv()
			if ok != tc.wantOK {
				t.Fatalf("ok: expected %v, got %v", tc.wantOK, ok)
			}
			if ok && s.Host != tc.wantHost {
				t.Errorf("host: expected %q, got %q", tc.wantHost, s.Host)
			}
		})
	}
}

func TestEnable_Disabled(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	flush := Enable(slog.Default())
	if flush == nil {
		t.Fatal("expected a no-op flush function")
	}
	flush()
}
