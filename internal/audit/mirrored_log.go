package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"github.com/kursadbilgin/mail-dispatch/internal/repository"
	"go.uber.org/zap"
)

var _ Log = (*MirroredLog)(nil)

// MirroredLog copies every recorded outcome into a queryable repository. The
// primary log stays the source of truth: mirror errors are logged, and dedup
// only ever reads the primary.
type MirroredLog struct {
	primary EntryLog
	mirror  repository.AuditRepository
	logger  *zap.Logger
	now     func() time.Time
}

func NewMirroredLog(primary EntryLog, mirror repository.AuditRepository, logger *zap.Logger) *MirroredLog {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MirroredLog{
		primary: primary,
		mirror:  mirror,
		logger:  logger,
		now:     time.Now,
	}
}

func (l *MirroredLog) RecordSuccess(ctx context.Context, recipient string, deliveryID string) error {
	return l.record(ctx, domain.NewSuccessEntry(l.now(), recipient, deliveryID))
}

func (l *MirroredLog) RecordFailure(ctx context.Context, recipient string, attempt int, errDescription string) error {
	return l.record(ctx, domain.NewFailureEntry(l.now(), recipient, attempt, errDescription))
}

func (l *MirroredLog) record(ctx context.Context, entry domain.AuditEntry) error {
	if err := l.primary.Append(ctx, entry); err != nil {
		return err
	}
	l.mirrorEntry(ctx, entry)
	return nil
}

func (l *MirroredLog) LoadAlreadyDispatched(ctx context.Context) (map[string]struct{}, error) {
	return l.primary.LoadAlreadyDispatched(ctx)
}

func (l *MirroredLog) mirrorEntry(ctx context.Context, entry domain.AuditEntry) {
	if l.mirror == nil {
		return
	}

	runID, _ := observability.RunIDFromContext(ctx)
	record := &repository.AuditRecord{
		ID:    uuid.NewString(),
		RunID: runID,
		Entry: entry,
	}

	if err := l.mirror.Create(ctx, record); err != nil {
		observability.WithContextLogger(l.logger, ctx).Warn("failed to mirror audit entry",
			zap.String("recipient", entry.Recipient),
			zap.String("outcome", entry.Outcome.String()),
			zap.Error(err),
		)
	}
}
