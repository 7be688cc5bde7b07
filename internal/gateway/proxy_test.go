package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/bazaar/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProxy_ForwardGET(t *testing.T) {
	var gotQuery string
	var gotPayment string
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotPayment = r.Header.Get("X-Payment")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"temp": 21}`))
	}))
	defer upstream.Close()

	api := &domain.RegisteredAPI{
		Endpoint:  "/weather",
		TargetURL: upstream.URL,
		Method:    http.MethodGet,
	}

	req := httptest.NewRequest(http.MethodGet, "/weather?city=Lisbon", nil)
	req.Header.Set("X-Payment", "payment-proof")
	req.Header.Set("Authorization", "Bearer token123")
	rec := httptest.NewRecorder()

	NewProxy(time.Second, discardLogger()).Forward(rec, req, api)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"temp"`) {
		t.Errorf("upstream body should pass through, got %s", rec.Body.String())
	}
	if gotQuery != "city=Lisbon" {
		t.Errorf("expected query city=Lisbon, got %s", gotQuery)
	}
	// X-Payment наружу не уходит, остальные заголовки — уходят
	if gotPayment != "" {
		t.Errorf("X-Payment should be stripped, got %q", gotPayment)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("Authorization should be forwarded, got %q", gotAuth)
	}
}

func TestProxy_ForwardPOSTBody(t *testing.T) {
	var gotBody map[string]any
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer upstream.Close()

	api := &domain.RegisteredAPI{
		Endpoint:  "/submit",
		TargetURL: upstream.URL,
		Method:    http.MethodPost,
	}

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"text": "hello"}`))
	rec := httptest.NewRecorder()

	NewProxy(time.Second, discardLogger()).Forward(rec, req, api)

	// Статус апстрима проходит как есть
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if gotBody["text"] != "hello" {
		t.Errorf("expected body forwarded, got %v", gotBody)
	}
}

func TestProxy_UpstreamStatusPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte(`{"error": "teapot"}`))
	}))
	defer upstream.Close()

	api := &domain.RegisteredAPI{Endpoint: "/tea", TargetURL: upstream.URL, Method: http.MethodGet}

	rec := httptest.NewRecorder()
	NewProxy(time.Second, discardLogger()).Forward(rec, httptest.NewRequest(http.MethodGet, "/tea", nil), api)

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected 418 passthrough, got %d", rec.Code)
	}
}

func TestProxy_Timeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	api := &domain.RegisteredAPI{Endpoint: "/slow", TargetURL: upstream.URL, Method: http.MethodGet}

	rec := httptest.NewRecorder()
	NewProxy(20*time.Millisecond, discardLogger()).Forward(rec, httptest.NewRequest(http.MethodGet, "/slow", nil), api)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestProxy_NetworkError(t *testing.T) {
	// Закрытый сервер — недостижимый target
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	api := &domain.RegisteredAPI{Endpoint: "/dead", TargetURL: upstream.URL, Method: http.MethodGet}

	rec := httptest.NewRecorder()
	NewProxy(time.Second, discardLogger()).Forward(rec, httptest.NewRequest(http.MethodGet, "/dead", nil), api)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}
