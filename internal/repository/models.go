package repository

import (
	"time"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
)

// HistoryRecordModel is the persistence model for the broadcast_history table.
// Seq preserves insertion order for FIFO eviction.
type HistoryRecordModel struct {
	Seq         int64     `gorm:"primaryKey;autoIncrement"`
	ID          string    `gorm:"type:uuid;not null;uniqueIndex"`
	BroadcastID string    `gorm:"type:varchar(255);not null;default:'';index:idx_broadcast_history_broadcast_id"`
	Channel     string    `gorm:"type:varchar(64);not null"`
	Message     string    `gorm:"type:text;not null"`
	Author      string    `gorm:"type:varchar(255);not null"`
	Type        string    `gorm:"type:varchar(32);not null"`
	Timestamp   time.Time `gorm:"type:timestamptz;not null"`
}

func (HistoryRecordModel) TableName() string {
	return "broadcast_history"
}

func historyModelFromDomain(r domain.HistoryRecord) *HistoryRecordModel {
	return &HistoryRecordModel{
		ID:          r.ID,
		BroadcastID: r.BroadcastID,
		Channel:     r.Channel,
		Message:     r.Message,
		Author:      r.Author,
		Type:        r.Type,
		Timestamp:   r.Timestamp,
	}
}

func historyModelToDomain(m *HistoryRecordModel) domain.HistoryRecord {
	if m == nil {
		return domain.HistoryRecord{}
	}

	return domain.HistoryRecord{
		ID:          m.ID,
		BroadcastID: m.BroadcastID,
		Channel:     m.Channel,
		Message:     m.Message,
		Author:      m.Author,
		Type:        m.Type,
		Timestamp:   m.Timestamp,
	}
}
