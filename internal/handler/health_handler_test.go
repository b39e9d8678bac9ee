package handler

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"github.com/redis/go-redis/v9"
)

func TestHealthRoutes_LivezAndReadyz(t *testing.T) {
	t.Parallel()

	t.Run("livez returns 200", func(t *testing.T) {
		t.Parallel()

		app := fiber.New()
		RegisterHealthRoutes(app, nil, nil)

		resp, body := performRequest(t, app, http.MethodGet, "/livez")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
	})

	t.Run("readyz reports unconfigured dependencies as disabled", func(t *testing.T) {
		t.Parallel()

		app := fiber.New()
		RegisterHealthRoutes(app, nil, nil)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
		checks := decodeChecks(t, body)
		if checks["postgres"] != checkDisabled || checks["redis"] != checkDisabled {
			t.Fatalf("checks = %v, want both disabled", checks)
		}
	})

	t.Run("readyz returns 200 when dependencies healthy", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{})
		t.Cleanup(func() { _ = sqlDB.Close() })

		rdb := newStubRedisClient(nil)
		t.Cleanup(func() { _ = rdb.Close() })

		app := fiber.New()
		RegisterHealthRoutes(app, sqlDB, rdb)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz")
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
		}
		checks := decodeChecks(t, body)
		if checks["postgres"] != checkOK || checks["redis"] != checkOK {
			t.Fatalf("checks = %v, want both ok", checks)
		}
	})

	t.Run("readyz returns 503 when a dependency is down", func(t *testing.T) {
		t.Parallel()

		sqlDB := sql.OpenDB(stubConnector{pingErr: errors.New("postgres down")})
		t.Cleanup(func() { _ = sqlDB.Close() })

		app := fiber.New()
		RegisterHealthRoutes(app, sqlDB, nil)

		resp, body := performRequest(t, app, http.MethodGet, "/readyz")
		if resp.StatusCode != fiber.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503, body=%s", resp.StatusCode, string(body))
		}
		checks := decodeChecks(t, body)
		if checks["postgres"] != checkDown || checks["redis"] != checkDisabled {
			t.Fatalf("checks = %v", checks)
		}
	})
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	metrics := observability.NewMetrics()
	metrics.IncMessageSent("smtp")

	app := fiber.New()
	RegisterMetricsRoute(app, metrics)

	resp, body := performRequest(t, app, http.MethodGet, "/metrics")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), `mail_dispatch_messages_sent_total{transport="smtp"} 1`) {
		t.Fatalf("metrics output missing sent counter:\n%s", string(body))
	}
}

func decodeChecks(t *testing.T, body []byte) map[string]string {
	t.Helper()

	var payload struct {
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	return payload.Checks
}

func performRequest(t *testing.T, app *fiber.App, method string, path string) (*http.Response, []byte) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

type stubConnector struct {
	pingErr error
}

func (c stubConnector) Connect(context.Context) (driver.Conn, error) {
	return stubConn(c), nil
}

func (c stubConnector) Driver() driver.Driver {
	return stubDriver(c)
}

type stubDriver struct {
	pingErr error
}

func (d stubDriver) Open(string) (driver.Conn, error) {
	return stubConn(d), nil
}

type stubConn struct {
	pingErr error
}

func (c stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c stubConn) Close() error                        { return nil }
func (c stubConn) Begin() (driver.Tx, error)           { return nil, errors.New("not implemented") }
func (c stubConn) Ping(context.Context) error          { return c.pingErr }

type stubRedisHook struct {
	pingErr error
}

func (h stubRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h stubRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "ping") && h.pingErr != nil {
			cmd.SetErr(h.pingErr)
			return h.pingErr
		}
		cmd.SetErr(nil)
		return nil
	}
}

func (h stubRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			cmd.SetErr(nil)
		}
		return nil
	}
}

func newStubRedisClient(pingErr error) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:6379",
		DialTimeout:  time.Millisecond,
		ReadTimeout:  time.Millisecond,
		WriteTimeout: time.Millisecond,
	})
	rdb.AddHook(stubRedisHook{pingErr: pingErr})
	return rdb
}
