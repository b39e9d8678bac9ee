package repository

import (
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
)

// AuditEntryModel is the persistence model for the dispatch_audit_entries table.
type AuditEntryModel struct {
	ID            string              `gorm:"type:uuid;primaryKey"`
	RunID         string              `gorm:"type:varchar(36)"`
	Recipient     string              `gorm:"type:varchar(320);not null"`
	Outcome       domain.AuditOutcome `gorm:"type:varchar(10);not null"`
	DeliveryID    *string             `gorm:"type:varchar(255)"`
	AttemptNumber *int                `gorm:"type:int"`
	Error         *string             `gorm:"type:text"`
	RecordedAt    time.Time           `gorm:"not null"`
	CreatedAt     time.Time
}

func (AuditEntryModel) TableName() string {
	return "dispatch_audit_entries"
}

func auditModelFromRecord(r *AuditRecord) *AuditEntryModel {
	if r == nil {
		return nil
	}

	model := &AuditEntryModel{
		ID:         r.ID,
		RunID:      r.RunID,
		Recipient:  r.Entry.Recipient,
		Outcome:    r.Entry.Outcome,
		RecordedAt: r.Entry.Timestamp.UTC(),
		CreatedAt:  r.CreatedAt,
	}

	switch r.Entry.Outcome {
	case domain.AuditOutcomeSuccess:
		if r.Entry.DeliveryID != "" {
			value := r.Entry.DeliveryID
			model.DeliveryID = &value
		}
	case domain.AuditOutcomeFailure:
		attempt := r.Entry.AttemptNumber
		model.AttemptNumber = &attempt
		if r.Entry.Error != "" {
			value := r.Entry.Error
			model.Error = &value
		}
	}

	return model
}

func auditModelToRecord(m *AuditEntryModel) *AuditRecord {
	if m == nil {
		return nil
	}

	entry := domain.AuditEntry{
		Timestamp: m.RecordedAt,
		Recipient: m.Recipient,
		Outcome:   m.Outcome,
	}
	if m.DeliveryID != nil {
		entry.DeliveryID = *m.DeliveryID
	}
	if m.AttemptNumber != nil {
		entry.AttemptNumber = *m.AttemptNumber
	}
	if m.Error != nil {
		entry.Error = *m.Error
	}

	return &AuditRecord{
		ID:        m.ID,
		RunID:     m.RunID,
		Entry:     entry,
		CreatedAt: m.CreatedAt,
	}
}
