package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addBroadcastHistoryTypeIndex() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_broadcast_history_type_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_broadcast_history_type_timestamp ON broadcast_history (type, timestamp DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_broadcast_history_type_timestamp`).Error
		},
	}
}
