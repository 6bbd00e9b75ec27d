package web

import (
	"bufio"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/capture"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/metrics"
	"github.com/kozaktomas/cashier/internal/session"
	"github.com/kozaktomas/cashier/internal/tokenstore"
)

func mockCashier(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	transactions := []string{}

	mux := http.NewServeMux()
	mux.HandleFunc("/cashier/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"op-token"}`))
	})
	mux.HandleFunc("/cashier/get_user_by_user_name/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uid":"userX","user_name":"userx"}`))
	})
	mux.HandleFunc("/cashier/record_transaction", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		transactions = append(transactions, string(body))
		mu.Unlock()
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/recognise/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"uid":"userX","user_name":"userx"}}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &transactions
}

func newTestServer(t *testing.T, backendURL string, opts ...session.Option) *Server {
	t.Helper()
	client, err := backend.New(backendURL)
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	m := metrics.New()
	ctrl := session.New(client, tokenstore.NewMemoryStore(), append(opts, session.WithMetrics(m))...)
	t.Cleanup(ctrl.Close)
	return NewServer(ctrl, Options{Port: 0, Metrics: m, Logger: logging.Discard()})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestRoutes_OpenEndpoints(t *testing.T) {
	backendServer, _ := mockCashier(t)
	s := newTestServer(t, backendServer.URL)

	if rec := do(t, s, "GET", "/api/v1/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health: expected 200, got %d", rec.Code)
	}
	if rec := do(t, s, "GET", "/api/v1/auth/status", ""); rec.Code != http.StatusOK {
		t.Errorf("status: expected 200, got %d", rec.Code)
	}
	do(t, s, "POST", "/api/v1/auth/login", `{"shop":"corner","account":"anna","password":"secret"}`)
	rec := do(t, s, "GET", "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `cashier_logins_total{result="success"} 1`) {
		t.Errorf("metrics: expected cashier counters, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRoutes_RequireLogin(t *testing.T) {
	backendServer, _ := mockCashier(t)
	s := newTestServer(t, backendServer.URL)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/v1/session"},
		{"GET", "/api/v1/inventory"},
		{"PUT", "/api/v1/cart/itemA"},
		{"POST", "/api/v1/identify/search"},
		{"POST", "/api/v1/checkout/submit"},
		{"GET", "/api/v1/identify/capture/events"},
	} {
		rec := do(t, s, route.method, route.path, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, rec.Code)
		}
		if strings.TrimSpace(rec.Body.String()) != `{"error":"unauthorized"}` {
			t.Errorf("%s %s: unexpected body %s", route.method, route.path, rec.Body.String())
		}
	}
}

func TestRoutes_FullFlow(t *testing.T) {
	backendServer, transactions := mockCashier(t)
	s := newTestServer(t, backendServer.URL)

	steps := []struct {
		method, path, body string
		status             int
	}{
		{"POST", "/api/v1/auth/login", `{"shop":"corner","account":"anna","password":"secret"}`, http.StatusOK},
		{"PUT", "/api/v1/cart/itemA", `{"quantity":2}`, http.StatusOK},
		{"POST", "/api/v1/flow/identify", "", http.StatusOK},
		{"POST", "/api/v1/identify/search", `{"username":"userx"}`, http.StatusOK},
		{"POST", "/api/v1/flow/checkout", "", http.StatusOK},
		{"POST", "/api/v1/checkout/submit", "", http.StatusOK},
		{"POST", "/api/v1/flow/next-customer", "", http.StatusOK},
	}
	for _, step := range steps {
		rec := do(t, s, step.method, step.path, step.body)
		if rec.Code != step.status {
			t.Fatalf("%s %s: expected %d, got %d: %s", step.method, step.path, step.status, rec.Code, rec.Body.String())
		}
	}

	expected := `{"user_id":"userX","item_id_quantity":[["itemA",2]]}`
	if len(*transactions) != 1 || (*transactions)[0] != expected {
		t.Errorf("expected %s, got %v", expected, *transactions)
	}

	var state session.State
	rec := do(t, s, "GET", "/api/v1/session", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if state.Step != session.StepCatalogue || state.SelectedCount != 0 {
		t.Errorf("expected empty catalogue, got %+v", state)
	}
}

func TestRoutes_Preflight(t *testing.T) {
	backendServer, _ := mockCashier(t)
	s := newTestServer(t, backendServer.URL)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/checkout/submit", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("unexpected preflight response %d %v", rec.Code, rec.Header())
	}
}

type frameStream struct{}

func (frameStream) Frame() (image.Image, error) { return image.NewRGBA(image.Rect(0, 0, 32, 32)), nil }
func (frameStream) Close() error                { return nil }

type frameCamera struct{}

func (frameCamera) Open(ctx context.Context) (capture.Stream, error) { return frameStream{}, nil }

type smiling struct{}

func (smiling) Detect(ctx context.Context, frame image.Image) (*capture.Detection, error) {
	return &capture.Detection{Box: image.Rect(4, 4, 28, 28), Score: 0.99}, nil
}

func TestRoutes_CaptureEvents(t *testing.T) {
	backendServer, _ := mockCashier(t)
	s := newTestServer(t, backendServer.URL,
		session.WithCapture(frameCamera{}, smiling{}, capture.Config{Interval: 50 * time.Millisecond}))
	api := httptest.NewServer(s.Router())
	defer api.Close()

	for _, step := range []struct{ method, path, body string }{
		{"POST", "/api/v1/auth/login", `{"shop":"corner","account":"anna","password":"secret"}`},
		{"PUT", "/api/v1/cart/itemA", `{"quantity":1}`},
		{"POST", "/api/v1/flow/identify", ""},
	} {
		if rec := do(t, s, step.method, step.path, step.body); rec.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", step.path, rec.Code, rec.Body.String())
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", api.URL+"/api/v1/identify/capture/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	// The status event is sent once the listener is registered.
	for scanner.Scan() && scanner.Text() != "event: status" {
	}

	if rec := do(t, s, "POST", "/api/v1/identify/capture", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("start capture: %d %s", rec.Code, rec.Body.String())
	}

	for scanner.Scan() {
		if scanner.Text() == "event: captured" {
			return
		}
	}
	t.Fatalf("stream ended before a capture: %v", scanner.Err())
}
