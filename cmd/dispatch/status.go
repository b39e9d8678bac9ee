package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/audit"
	"github.com/kursadbilgin/mail-dispatch/internal/config"
	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"github.com/kursadbilgin/mail-dispatch/internal/infra/postgresql"
	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"github.com/kursadbilgin/mail-dispatch/internal/repository"
	"github.com/kursadbilgin/mail-dispatch/internal/service"
	"github.com/kursadbilgin/mail-dispatch/internal/source"
	"github.com/spf13/cobra"
)

func newStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how many recipients are dispatched and pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), opts)
		},
	}
}

func runStatus(ctx context.Context, opts *Options) error {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	fileLog, err := audit.NewFileLog(cfg.SentLogFile, cfg.ErrorLogFile)
	if err != nil {
		return err
	}

	report, err := service.Status(ctx,
		source.NewCSVRecipients(cfg.RecipientsFile, cfg.AddressColumn, logger),
		fileLog,
		fileLog,
	)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(opts.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Recipients:\t%d\n", report.Recipients)
	fmt.Fprintf(w, "Already dispatched:\t%d\n", report.AlreadyDispatched)
	if report.Duplicates > 0 {
		fmt.Fprintf(w, "Duplicate rows:\t%d\n", report.Duplicates)
	}
	fmt.Fprintf(w, "Pending:\t%d\n", report.Pending)
	fmt.Fprintf(w, "Failure entries:\t%d\n", report.FailureEntries)
	return w.Flush()
}

func newHistoryCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "history <address>",
		Short: "List mirrored audit entries for one recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, args[0])
		},
	}
}

func runHistory(ctx context.Context, opts *Options, address string) error {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return fmt.Errorf("%w: history needs DATABASE_DSN", domain.ErrValidation)
	}

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	records, err := repository.NewGormAuditRepo(db).ListByRecipient(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to list audit entries: %w", err)
	}

	return printHistory(opts.Out, records)
}

func printHistory(out io.Writer, records []repository.AuditRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No audit entries")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECORDED\tRUN\tOUTCOME\tATTEMPT\tDETAIL")
	for _, record := range records {
		entry := record.Entry
		attempt := "-"
		detail := entry.DeliveryID
		if entry.Outcome == domain.AuditOutcomeFailure {
			attempt = fmt.Sprintf("%d", entry.AttemptNumber)
			detail = entry.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.Timestamp.UTC().Format(time.RFC3339),
			record.RunID,
			entry.Outcome,
			attempt,
			detail,
		)
	}
	return w.Flush()
}
