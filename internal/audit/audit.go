// Package audit keeps the dispatch audit trail. The success log doubles as the
// resumability index: an address present there is never targeted again.
package audit

import (
	"context"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
)

// Log records dispatch outcomes and answers which recipients are already done.
type Log interface {
	RecordSuccess(ctx context.Context, recipient string, deliveryID string) error
	RecordFailure(ctx context.Context, recipient string, attempt int, errDescription string) error
	LoadAlreadyDispatched(ctx context.Context) (map[string]struct{}, error)
}

// EntryLog is a Log that can persist an already built entry, so a caller
// sees the exact timestamp that was written.
type EntryLog interface {
	Log
	Append(ctx context.Context, entry domain.AuditEntry) error
}

// Stats summarizes the persisted logs.
type Stats struct {
	Dispatched     int
	FailureEntries int
}
