package repository

import (
	"context"

	"gorm.io/gorm"

	"praise/backend/internal/model"
)

// EventLogRepository 事件日志数据访问接口
type EventLogRepository interface {
	Create(ctx context.Context, event *model.EventLog) error
	ListByPeriod(ctx context.Context, periodID string, offset, limit int) ([]model.EventLog, int64, error)
}

type eventLogRepo struct {
	db *gorm.DB
}

// NewEventLogRepo 创建 EventLogRepository 实例
func NewEventLogRepo(db *gorm.DB) EventLogRepository {
	return &eventLogRepo{db: db}
}

func (r *eventLogRepo) Create(ctx context.Context, event *model.EventLog) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *eventLogRepo) ListByPeriod(ctx context.Context, periodID string, offset, limit int) ([]model.EventLog, int64, error) {
	var events []model.EventLog
	var total int64

	db := r.db.WithContext(ctx).Model(&model.EventLog{}).
		Where("period_id = ?", periodID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&events).Error
	return events, total, err
}
