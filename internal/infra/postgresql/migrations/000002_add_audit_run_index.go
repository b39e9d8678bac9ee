package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addAuditRunIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_audit_run_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_run_id ON dispatch_audit_entries (run_id) WHERE run_id <> ''`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_audit_run_id`).Error
		},
	}
}
