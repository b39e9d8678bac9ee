package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/kursadbilgin/mail-dispatch/internal/audit"
	"github.com/kursadbilgin/mail-dispatch/internal/config"
	"github.com/kursadbilgin/mail-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/mail-dispatch/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/mail-dispatch/internal/infra/redis"
	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"github.com/kursadbilgin/mail-dispatch/internal/prompt"
	"github.com/kursadbilgin/mail-dispatch/internal/provider"
	"github.com/kursadbilgin/mail-dispatch/internal/ratelimit"
	"github.com/kursadbilgin/mail-dispatch/internal/repository"
	"github.com/kursadbilgin/mail-dispatch/internal/selection"
	"github.com/kursadbilgin/mail-dispatch/internal/service"
	"github.com/kursadbilgin/mail-dispatch/internal/source"
	"github.com/kursadbilgin/mail-dispatch/internal/transport"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Dispatch to every recipient not yet in the success log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDispatch(cmd.Context(), opts)
		},
	}
}

func runDispatch(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := cfg.ValidateTransport(); err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)
	logger = observability.WithContextLogger(logger, ctx)

	fileLog, err := audit.NewFileLog(cfg.SentLogFile, cfg.ErrorLogFile)
	if err != nil {
		return err
	}
	var auditLog audit.Log = fileLog

	var sqlDB *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return err
		}
		if err := migrations.Migrate(db); err != nil {
			return fmt.Errorf("database migrations failed: %w", err)
		}
		sqlDB, err = db.DB()
		if err != nil {
			return fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		defer sqlDB.Close()

		auditLog = audit.NewMirroredLog(fileLog, repository.NewGormAuditRepo(db), logger)
		logger.Info("audit mirror enabled")
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	limiter, err := buildRateLimiter(cfg, rdb)
	if err != nil {
		return err
	}

	sender, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	resolver, err := selection.NewResolver(prompt.NewSurveyPrompter(opts.Stdio))
	if err != nil {
		return err
	}

	dispatcher, err := service.NewDispatcher(
		source.NewCSVRecipients(cfg.RecipientsFile, cfg.AddressColumn, logger),
		source.NewContentStore(cfg.SubjectsFile, cfg.TemplatesDir, cfg.TemplateExt, cfg.AttachmentsDir),
		auditLog,
		resolver,
		sender,
		service.DispatcherOptions{
			Transport:      cfg.Transport,
			Mailbox:        cfg.SenderAddress,
			MaxRetries:     cfg.MaxRetries,
			RetryBackoff:   cfg.RetryBackoff,
			PacingInterval: cfg.PacingInterval,
		},
		logger,
	)
	if err != nil {
		return err
	}
	if limiter != nil {
		dispatcher.SetRateLimiter(limiter)
	}

	metrics := observability.NewMetrics()
	dispatcher.SetMetrics(metrics)

	if cfg.MetricsAddr == "" {
		_, err := dispatcher.Run(ctx)
		return err
	}

	app := transport.NewAdminApp(logger, transport.AdminDeps{
		SQLDB:   sqlDB,
		Redis:   rdb,
		Metrics: metrics,
	})

	g, groupCtx := errgroup.WithContext(ctx)
	adminCtx, stopAdmin := context.WithCancel(groupCtx)
	defer stopAdmin()

	g.Go(func() error {
		return transport.Serve(adminCtx, app, cfg.MetricsAddr, logger)
	})
	g.Go(func() error {
		defer stopAdmin()
		_, err := dispatcher.Run(groupCtx)
		return err
	})

	return g.Wait()
}

func buildProvider(cfg *config.Config) (provider.Provider, error) {
	switch cfg.Transport {
	case config.TransportWebhook:
		return provider.NewWebhookProvider(cfg.WebhookURL, cfg.SMTPPassword, cfg.SenderAddress)
	default:
		return provider.NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SenderAddress, cfg.SenderName)
	}
}

func buildRateLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.RateLimiter, error) {
	if cfg.RateLimitPerSec <= 0 {
		return nil, nil
	}
	if rdb != nil {
		return infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	}
	return ratelimit.NewLocalRateLimiter(cfg.RateLimitPerSec)
}
