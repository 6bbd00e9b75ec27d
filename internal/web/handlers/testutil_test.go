package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/session"
	"github.com/kozaktomas/cashier/internal/tokenstore"
)

// recorded collects request bodies received by the mock backend.
type recorded struct {
	mu     sync.Mutex
	bodies map[string][]string
}

func (r *recorded) add(path, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bodies == nil {
		r.bodies = make(map[string][]string)
	}
	r.bodies[path] = append(r.bodies[path], body)
}

func (r *recorded) get(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.bodies[path]...)
}

// setupMockCashierServer creates a mock cashier backend for handler tests.
// Handlers passed in override the defaults.
func setupMockCashierServer(t *testing.T, rec *recorded, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	defaults := map[string]http.HandlerFunc{
		"/cashier/login": func(w http.ResponseWriter, r *http.Request) {
			var creds backend.Credentials
			json.NewDecoder(r.Body).Decode(&creds)
			w.Header().Set("Content-Type", "application/json")
			if creds.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"bad credentials"}`))
				return
			}
			w.Write([]byte(`{"token":"op-token"}`))
		},
		"/cashier/inventory": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items":[{"iid":"itemA","name":"Latte","price":1500}]}`))
		},
		"/cashier/get_user_by_user_name/": func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/userx") {
				w.Write([]byte(`{"uid":"userX","first_name":"X","user_name":"userx"}`))
				return
			}
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"User not found"}`))
		},
		"/cashier/get_items_details": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items":[{"iid":"itemA","name":"Latte","price":1500}]}`))
		},
		"/cashier/record_transaction": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		},
		"/recognise/": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"assummed_new":true,"uid":"n1"}`))
		},
	}
	for pattern, handler := range handlers {
		defaults[pattern] = handler
	}

	mux := http.NewServeMux()
	for pattern, handler := range defaults {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if rec != nil {
				var body []byte
				if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
					body, _ = io.ReadAll(r.Body)
					r.Body = io.NopCloser(bytes.NewReader(body))
				}
				rec.add(r.URL.Path, string(body))
			}
			handler(w, r)
		})
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// newTestSession creates a controller talking to server.
func newTestSession(t *testing.T, server *httptest.Server, opts ...session.Option) *session.Controller {
	t.Helper()
	client, err := backend.New(server.URL)
	if err != nil {
		t.Fatalf("failed to create backend client: %v", err)
	}
	ctrl := session.New(client, tokenstore.NewMemoryStore(), opts...)
	t.Cleanup(ctrl.Close)
	return ctrl
}

// loggedInSession returns a controller that is logged in with itemA x2 in
// the cart, at the given step.
func loggedInSession(t *testing.T, server *httptest.Server, step session.Step) *session.Controller {
	t.Helper()
	ctrl := newTestSession(t, server)
	ctx := context.Background()
	if err := ctrl.Login(ctx, backend.Credentials{Shop: "corner", Account: "anna", Password: "secret"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if step == session.StepCatalogue {
		return ctrl
	}
	ctrl.SetQuantity("itemA", 2)
	if err := ctrl.ProceedToIdentify(); err != nil {
		t.Fatalf("proceed failed: %v", err)
	}
	if step == session.StepIdentify {
		return ctrl
	}
	if _, err := ctrl.Search(ctx, "userx"); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if _, err := ctrl.ContinueToCheckout(); err != nil {
		t.Fatalf("continue failed: %v", err)
	}
	return ctrl
}

// parseJSONResponse parses the JSON response body into the target
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
