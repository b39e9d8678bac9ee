package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"go.uber.org/zap"
)

func TestNewAdminAppRoutes(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics()
	app := NewAdminApp(zap.NewNop(), AdminDeps{Metrics: metrics})

	for _, path := range []string{"/livez", "/readyz"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatalf("app.Test(%s) error = %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test(/metrics) error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `mail_dispatch_http_requests_total{method="GET",path="/livez",status="200"} 1`) {
		t.Fatalf("expected probe requests to be counted:\n%s", string(body))
	}
}

func TestErrorHandlerRendersJSON(t *testing.T) {
	t.Parallel()

	app := NewAdminApp(zap.NewNop(), AdminDeps{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if payload["error"] == "" {
		t.Fatalf("error body = %v", payload)
	}
}

func TestServeStopsWithContext(t *testing.T) {
	t.Parallel()

	app := NewAdminApp(zap.NewNop(), AdminDeps{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, app, "127.0.0.1:0", zap.NewNop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}
