package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/vetrag-go/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		inbound  string
		wantSame bool
	}{
		{"generates id", "", false},
		{"keeps caller id", "vet-clinic-42", true},
		{"rejects oversized id", strings.Repeat("x", maxRequestIDLen+1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			base := slog.New(slog.NewTextHandler(&buf, nil))

			h := requestLogger(base, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logging.FromContext(r.Context()).Info("handled")
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("short and stout"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
			if tc.inbound != "" {
				req.Header.Set(requestIDHeader, tc.inbound)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			id := rec.Header().Get(requestIDHeader)
			if id == "" {
				t.Fatal("response is missing X-Request-ID")
			}
			if (id == tc.inbound) != tc.wantSame {
				t.Errorf("request id %q, inbound %q", id, tc.inbound)
			}
			out := buf.String()
			if strings.Count(out, "request_id="+id) != 2 {
				t.Errorf("handler log line does not carry the request id: %s", out)
			}
			for _, want := range []string{"status=418", "bytes=15", "path=/api/health"} {
				if !strings.Contains(out, want) {
					t.Errorf("log line missing %q: %s", want, out)
				}
			}
		})
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, status: http.StatusOK}
	_, _ = rw.Write([]byte("data: سلام\n\n"))
	rw.Flush()
	if !rec.Flushed {
		t.Error("Flush was not forwarded")
	}
}
