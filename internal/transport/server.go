package transport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/mail-dispatch/internal/handler"
	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// AdminDeps are the optional dependencies the admin app reports on.
type AdminDeps struct {
	SQLDB   *sql.DB
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// NewAdminApp builds the probe and metrics app served next to a dispatch run.
func NewAdminApp(logger *zap.Logger, deps AdminDeps) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	if deps.Metrics != nil {
		app.Use(deps.Metrics.HTTPMiddleware())
	}

	handler.RegisterHealthRoutes(app, deps.SQLDB, deps.Redis)
	handler.RegisterMetricsRoute(app, deps.Metrics)

	return app
}

// Serve listens on addr until ctx is done, then shuts the app down.
func Serve(ctx context.Context, app *fiber.App, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listener(listener)
	}()
	logger.Info("admin server started", zap.String("addr", listener.Addr().String()))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("admin server shutdown failed: %w", err)
	}
	logger.Info("admin server stopped")
	return nil
}
