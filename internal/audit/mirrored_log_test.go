package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"github.com/kursadbilgin/mail-dispatch/internal/observability"
	"github.com/kursadbilgin/mail-dispatch/internal/repository"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeAuditRepo struct {
	createFn func(ctx context.Context, record *repository.AuditRecord) error
}

func (f *fakeAuditRepo) Create(ctx context.Context, record *repository.AuditRecord) error {
	if f.createFn != nil {
		return f.createFn(ctx, record)
	}
	return nil
}

func (f *fakeAuditRepo) ListByRecipient(ctx context.Context, recipient string) ([]repository.AuditRecord, error) {
	return nil, nil
}

func TestMirroredLogMirrorsEntries(t *testing.T) {
	t.Parallel()

	primary, _, _ := newTestFileLog(t)

	var records []*repository.AuditRecord
	mirror := &fakeAuditRepo{
		createFn: func(ctx context.Context, record *repository.AuditRecord) error {
			records = append(records, record)
			return nil
		},
	}

	log := NewMirroredLog(primary, mirror, zap.NewNop())
	ctx := observability.WithRunID(context.Background(), "run-1")

	if err := log.RecordFailure(ctx, "a@example.com", 1, "boom"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if err := log.RecordSuccess(ctx, "a@example.com", "id-1"); err != nil {
		t.Fatalf("RecordSuccess() error = %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("mirrored records = %d, want 2", len(records))
	}
	if records[0].Entry.Outcome != domain.AuditOutcomeFailure || records[0].Entry.AttemptNumber != 1 {
		t.Fatalf("first record = %+v, want failure attempt 1", records[0].Entry)
	}
	if records[1].Entry.Outcome != domain.AuditOutcomeSuccess || records[1].Entry.DeliveryID != "id-1" {
		t.Fatalf("second record = %+v, want success id-1", records[1].Entry)
	}
	for _, record := range records {
		if record.ID == "" {
			t.Fatal("record id should be generated")
		}
		if record.RunID != "run-1" {
			t.Fatalf("record run id = %q, want run-1", record.RunID)
		}
	}

	dispatched, err := log.LoadAlreadyDispatched(ctx)
	if err != nil {
		t.Fatalf("LoadAlreadyDispatched() error = %v", err)
	}
	if _, ok := dispatched["a@example.com"]; !ok {
		t.Fatalf("dispatched = %v, want a@example.com", dispatched)
	}
}

func TestMirroredLogMirrorErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	primary, _, _ := newTestFileLog(t)
	mirror := &fakeAuditRepo{
		createFn: func(ctx context.Context, record *repository.AuditRecord) error {
			return errors.New("postgres down")
		},
	}

	core, recorded := observer.New(zapcore.WarnLevel)
	log := NewMirroredLog(primary, mirror, zap.New(core))

	if err := log.RecordSuccess(context.Background(), "a@example.com", "id-1"); err != nil {
		t.Fatalf("RecordSuccess() error = %v, want nil", err)
	}

	entries := recorded.FilterMessage("failed to mirror audit entry").All()
	if len(entries) != 1 {
		t.Fatalf("warn entries = %d, want 1", len(entries))
	}
}

func TestMirroredLogPrimaryErrorSkipsMirror(t *testing.T) {
	t.Parallel()

	primary, _, _ := newTestFileLog(t)
	called := false
	mirror := &fakeAuditRepo{
		createFn: func(ctx context.Context, record *repository.AuditRecord) error {
			called = true
			return nil
		},
	}

	log := NewMirroredLog(primary, mirror, zap.NewNop())
	if err := log.RecordSuccess(context.Background(), "", "id-1"); err == nil {
		t.Fatal("expected primary error for empty recipient")
	}
	if called {
		t.Fatal("mirror should not be called when primary append fails")
	}
}

func TestMirroredLogMirrorsWrittenTimestamp(t *testing.T) {
	t.Parallel()

	primary, _, failurePath := newTestFileLog(t)
	var mirrored []domain.AuditEntry
	mirror := &fakeAuditRepo{
		createFn: func(ctx context.Context, record *repository.AuditRecord) error {
			mirrored = append(mirrored, record.Entry)
			return nil
		},
	}

	log := NewMirroredLog(primary, mirror, zap.NewNop())
	at := time.Date(2026, 3, 1, 10, 0, 0, 123456789, time.UTC)
	ticks := 0
	log.now = func() time.Time {
		ticks++
		return at.Add(time.Duration(ticks-1) * time.Millisecond)
	}

	if err := log.RecordFailure(context.Background(), "a@example.com", 1, "boom"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}

	if len(mirrored) != 1 {
		t.Fatalf("mirrored entries = %d, want 1", len(mirrored))
	}
	if !mirrored[0].Timestamp.Equal(at) {
		t.Fatalf("mirrored timestamp = %s, want %s", mirrored[0].Timestamp, at)
	}
	if got := readFile(t, failurePath); !strings.HasPrefix(got, at.Format(time.RFC3339Nano)+" ") {
		t.Fatalf("failure log = %q, want timestamp %s", got, at.Format(time.RFC3339Nano))
	}
	if ticks != 1 {
		t.Fatalf("clock reads = %d, want 1", ticks)
	}
}
