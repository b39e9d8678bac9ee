package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/mail-dispatch/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_dispatch_audit_entries",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.AuditEntryModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_audit_recipient_recorded ON dispatch_audit_entries (recipient, recorded_at)`,
					`CREATE INDEX IF NOT EXISTS idx_audit_outcome ON dispatch_audit_entries (outcome)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.AuditEntryModel{})
			},
		},
		addAuditRunIndex(),
	})

	return m.Migrate()
}
