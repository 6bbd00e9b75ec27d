package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticGate bool

func (g staticGate) LoggedIn() bool { return bool(g) }

func TestRequireLogin_LoggedOut(t *testing.T) {
	called := false
	handler := RequireLogin(staticGate(false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/api/v1/session", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"error":"unauthorized"}` {
		t.Errorf("unexpected body %s", recorder.Body.String())
	}
	if called {
		t.Error("next handler must not run")
	}
}

func TestRequireLogin_LoggedIn(t *testing.T) {
	handler := RequireLogin(staticGate(true))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest("GET", "/api/v1/session", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusTeapot {
		t.Errorf("expected next handler status, got %d", recorder.Code)
	}
}

func TestCORS(t *testing.T) {
	allowed := ParseAllowedOrigins(" https://till.example.com , ,https://other.example.com")
	if len(allowed) != 2 {
		t.Fatalf("expected 2 origins, got %v", allowed)
	}

	handler := CORS(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://till.example.com", true},
		{"http://localhost:5173", true},
		{"http://localhost", true},
		{"http://localhost.evil.com", false},
		{"https://evil.example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/health", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)

			got := recorder.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed && got != tt.origin {
				t.Errorf("expected origin echoed, got %q", got)
			}
			if !tt.allowed && got != "" {
				t.Errorf("expected no allow header, got %q", got)
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/itemA", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK || called {
		t.Errorf("expected preflight answered by middleware, got %d (called=%v)", recorder.Code, called)
	}
}
