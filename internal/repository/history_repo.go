package repository

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/broadcast-engine/internal/domain"
	"github.com/kursadbilgin/broadcast-engine/internal/history"
	"gorm.io/gorm"
)

// historyLockKey is the advisory lock that serializes history writers.
const historyLockKey int64 = 0x62726f6164

var _ history.Store = (*GormHistoryRepo)(nil)

type GormHistoryRepo struct {
	db       *gorm.DB
	capacity int
}

func NewGormHistoryRepo(db *gorm.DB, capacity int) (*GormHistoryRepo, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	if capacity <= 0 {
		capacity = domain.HistoryCapacity
	}
	return &GormHistoryRepo{db: db, capacity: capacity}, nil
}

func (r *GormHistoryRepo) Append(ctx context.Context, record domain.HistoryRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SELECT pg_advisory_xact_lock(?)`, historyLockKey).Error; err != nil {
			return fmt.Errorf("failed to lock history: %w", err)
		}
		if err := tx.Create(historyModelFromDomain(record)).Error; err != nil {
			return fmt.Errorf("failed to insert history record: %w", err)
		}

		trim := `DELETE FROM broadcast_history WHERE seq NOT IN (
			SELECT seq FROM broadcast_history ORDER BY seq DESC LIMIT ?
		)`
		if err := tx.Exec(trim, r.capacity).Error; err != nil {
			return fmt.Errorf("failed to trim history: %w", err)
		}
		return nil
	})
}

func (r *GormHistoryRepo) Recent(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 || limit > r.capacity {
		limit = r.capacity
	}

	var models []HistoryRecordModel
	err := r.db.WithContext(ctx).
		Order("seq DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.HistoryRecord, 0, len(models))
	for i := range models {
		records = append(records, historyModelToDomain(&models[i]))
	}
	return records, nil
}

func (r *GormHistoryRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
