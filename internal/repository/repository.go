package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User           UserRepository
	Period         PeriodRepository
	PeriodSettings PeriodSettingsRepository
	GlobalSettings GlobalSettingsRepository
	Praise         PraiseRepository
	Quantification QuantificationRepository
	EventLog       EventLogRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:             db,
		User:           NewUserRepo(db),
		Period:         NewPeriodRepo(db),
		PeriodSettings: NewPeriodSettingsRepo(db),
		GlobalSettings: NewGlobalSettingsRepo(db),
		Praise:         NewPraiseRepo(db),
		Quantification: NewQuantificationRepo(db),
		EventLog:       NewEventLogRepo(db),
	}
}

// BeginTx 开启事务，返回事务句柄。
// 无真实数据库连接（单测 mock）时返回 nil 句柄，调用方须判空
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到指定事务的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}
