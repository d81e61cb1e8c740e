package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		apiKey     string
		header     string
		wantStatus int
		wantChal   string
	}{
		{"disabled without key", "", "", http.StatusOK, ""},
		{"disabled ignores header", "", "Bearer anything", http.StatusOK, ""},
		{"missing header", "secret", "", http.StatusUnauthorized, `Bearer realm="vetrag"`},
		{"wrong token", "secret", "Bearer wrong-token", http.StatusUnauthorized, `Bearer realm="vetrag" error="invalid_token"`},
		{"token prefix", "secret", "Bearer secre", http.StatusUnauthorized, `Bearer realm="vetrag" error="invalid_token"`},
		{"basic scheme", "secret", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, `Bearer realm="vetrag"`},
		{"correct token", "secret", "Bearer secret", http.StatusOK, ""},
		{"lowercase scheme", "secret", "bearer secret", http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := authMiddleware(tc.apiKey, okHandler)
			req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
			if got := w.Header().Get("WWW-Authenticate"); got != tc.wantChal {
				t.Errorf("WWW-Authenticate: expected %q, got %q", tc.wantChal, got)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				var body errorResponse
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body.Error == "" {
					t.Errorf("expected JSON error body, got %q (%v)", w.Body.String(), err)
				}
			}
		})
	}
}

// TestBearerToken verifies the bearerToken extraction helper.
func TestBearerToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		header string
		want   string
	}{
		{"Bearer mytoken", "mytoken"},
		{"bearer mytoken", "mytoken"},
		{"BEARER mytoken", "mytoken"},
		{"Bearer  spaced ", "spaced"},
		{"Basic dXNlcjpwYXNz", ""},
		{"", ""},
		{"Bearer", ""},
		{"token only", ""},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		if got := bearerToken(req); got != tc.want {
			t.Errorf("header=%q: expected %q, got %q", tc.header, tc.want, got)
		}
	}
}
