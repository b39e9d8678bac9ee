package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/mail-dispatch/internal/domain"
	"gorm.io/gorm"
)

// AuditRecord is an audit entry as stored in the mirror table.
type AuditRecord struct {
	ID        string
	RunID     string
	Entry     domain.AuditEntry
	CreatedAt time.Time
}

type AuditRepository interface {
	Create(ctx context.Context, record *AuditRecord) error
	ListByRecipient(ctx context.Context, recipient string) ([]AuditRecord, error)
}

type GormAuditRepo struct {
	db *gorm.DB
}

func NewGormAuditRepo(db *gorm.DB) *GormAuditRepo {
	return &GormAuditRepo{db: db}
}

func (r *GormAuditRepo) Create(ctx context.Context, record *AuditRecord) error {
	if record == nil {
		return fmt.Errorf("%w: audit record is required", domain.ErrValidation)
	}
	if err := record.Entry.Validate(); err != nil {
		return err
	}

	model := auditModelFromRecord(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	*record = *auditModelToRecord(model)
	return nil
}

func (r *GormAuditRepo) ListByRecipient(ctx context.Context, recipient string) ([]AuditRecord, error) {
	var models []AuditEntryModel
	err := r.db.WithContext(ctx).
		Where("recipient = ?", strings.TrimSpace(recipient)).
		Order("recorded_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]AuditRecord, 0, len(models))
	for i := range models {
		records = append(records, *auditModelToRecord(&models[i]))
	}

	return records, nil
}
