package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"harambee/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(log.New(log.Config{Output: &buf}), func(*http.Request) string { return "10.0.0.1" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pledges/x", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("response header %q != %q", rec.Header().Get(RequestIDHeader), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "status_code=404") || !strings.Contains(out, "level=WARN") || !strings.Contains(out, "client_ip=10.0.0.1") {
		t.Fatalf("unexpected log output %q", out)
	}
	if m.TotalRequests() != 1 {
		t.Fatalf("TotalRequests() = %d", m.TotalRequests())
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "abc123" {
		t.Fatalf("request id = %q, want abc123", seen)
	}
}
