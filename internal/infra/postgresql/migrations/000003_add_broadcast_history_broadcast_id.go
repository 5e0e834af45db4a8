package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/broadcast-engine/internal/repository"
	"gorm.io/gorm"
)

const broadcastIDIndex = "idx_broadcast_history_broadcast_id"

// Tables created by 000001 on a newer model already carry the column.
func addBroadcastHistoryBroadcastID() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_add_broadcast_history_broadcast_id",
		Migrate: func(tx *gorm.DB) error {
			migrator := tx.Migrator()
			model := &repository.HistoryRecordModel{}
			if !migrator.HasColumn(model, "BroadcastID") {
				if err := migrator.AddColumn(model, "BroadcastID"); err != nil {
					return err
				}
			}
			if !migrator.HasIndex(model, broadcastIDIndex) {
				return migrator.CreateIndex(model, broadcastIDIndex)
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			migrator := tx.Migrator()
			model := &repository.HistoryRecordModel{}
			if migrator.HasIndex(model, broadcastIDIndex) {
				if err := migrator.DropIndex(model, broadcastIDIndex); err != nil {
					return err
				}
			}
			return migrator.DropColumn(model, "BroadcastID")
		},
	}
}
