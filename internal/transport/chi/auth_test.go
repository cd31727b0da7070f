package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// userEcho writes the authenticated user as the body.
func userEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(UserFromContext(r.Context())))
	})
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	for name, keys := range map[string]map[string]string{
		"nil":        nil,
		"empty keys": {"": "alice"},
	} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			BearerAuthMiddleware(keys)(userEcho()).ServeHTTP(rr, httptest.NewRequest("POST", "/v1/query", http.NoBody))

			if rr.Code != http.StatusOK {
				t.Errorf("got %d, want %d", rr.Code, http.StatusOK)
			}
			if rr.Body.String() != "" {
				t.Errorf("user = %q, want none", rr.Body.String())
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	keys := map[string]string{"k-alice": "alice", "k-bob": "bob", "k-anon": ""}
	handler := BearerAuthMiddleware(keys)(userEcho())

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"missing header", "/v1/query", "", http.StatusUnauthorized, ""},
		{"basic scheme", "/v1/query", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"unknown key", "/v1/query", "Bearer wrong", http.StatusUnauthorized, ""},
		{"alice", "/v1/query", "Bearer k-alice", http.StatusOK, "alice"},
		{"bob", "/v1/records/F-1", "Bearer k-bob", http.StatusOK, "bob"},
		{"key without user", "/v1/classify", "Bearer k-anon", http.StatusOK, "k-anon"},
		{"health exempt", "/health", "", http.StatusOK, ""},
		{"metrics exempt", "/metrics", "", http.StatusOK, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, http.NoBody)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("got %d, want %d", rr.Code, tc.wantStatus)
			}
			if tc.wantStatus != http.StatusOK {
				var errResp ErrorResponse
				if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
					t.Fatalf("decode error response: %v", err)
				}
				if errResp.Code != ErrorCodeUnauthorized {
					t.Errorf("code = %s, want %s", errResp.Code, ErrorCodeUnauthorized)
				}
				return
			}
			if rr.Body.String() != tc.wantUser {
				t.Errorf("user = %q, want %q", rr.Body.String(), tc.wantUser)
			}
		})
	}
}
