package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/mail-dispatch/internal/audit"
	"github.com/kursadbilgin/mail-dispatch/internal/source"
)

// StatsReader is implemented by audit logs that can summarize themselves.
type StatsReader interface {
	Stats(ctx context.Context) (audit.Stats, error)
}

// StatusReport is what the next run would start from.
type StatusReport struct {
	Recipients        int
	AlreadyDispatched int
	Duplicates        int
	Pending           int
	FailureEntries    int
}

// Status reads the recipient source and the audit trail without sending or
// prompting.
func Status(ctx context.Context, recipients source.RecipientSource, auditLog audit.Log, stats StatsReader) (*StatusReport, error) {
	loaded, err := recipients.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipients: %w", err)
	}

	dispatched, err := auditLog.LoadAlreadyDispatched(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dispatched recipients: %w", err)
	}

	summary := &RunSummary{Total: len(loaded)}
	queue := buildQueue(loaded, dispatched, summary)

	report := &StatusReport{
		Recipients:        summary.Total,
		AlreadyDispatched: summary.AlreadyDispatched,
		Duplicates:        summary.Duplicates,
		Pending:           len(queue),
	}

	if stats != nil {
		logStats, err := stats.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read audit stats: %w", err)
		}
		report.FailureEntries = logStats.FailureEntries
	}

	return report, nil
}
