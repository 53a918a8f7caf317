package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithComponentDoesNotRepeatKey(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Output: &buf, Component: ComponentHTTP})

	logger.WithComponent(ComponentCommit).Info("hello")

	out := buf.String()
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("expected one component attribute, got %q", out)
	}
	if !strings.Contains(out, "component=commit") {
		t.Fatalf("expected commit component, got %q", out)
	}
}

func TestMiddlewareAndFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Output: &buf})

	var seen *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			seen.Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == nil || !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("request id missing from %q", buf.String())
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, Component: ComponentCommit}))

	sl.LogPaymentRecorded(context.Background(), "Jane", "Youth", 50000, "mpesa", "SAB1CD2EF3")
	sl.LogError(context.Background(), "persist failed", errors.New("disk full"), OpPersist, nil)

	out := buf.String()
	for _, want := range []string{"payer=Jane", "amount_cents=50000", "reference=SAB1CD2EF3", `error="disk full"`, "operation=persist"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}
