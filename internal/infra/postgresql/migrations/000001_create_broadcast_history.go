package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/broadcast-engine/internal/repository"
	"gorm.io/gorm"
)

func createBroadcastHistoryTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_broadcast_history",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.HistoryRecordModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.HistoryRecordModel{})
		},
	}
}
