package repository

import (
	"context"

	"gorm.io/gorm"

	"praise/backend/internal/model"
)

// PeriodSettingsRepository 周期设置快照数据访问接口
type PeriodSettingsRepository interface {
	Create(ctx context.Context, settings *model.PeriodSettings) error
	GetByPeriod(ctx context.Context, periodID string) (*model.PeriodSettings, error)
	Update(ctx context.Context, settings *model.PeriodSettings) error
}

// GlobalSettingsRepository 全局量化设置数据访问接口
type GlobalSettingsRepository interface {
	Get(ctx context.Context) (*model.GlobalSettings, error)
	Update(ctx context.Context, settings *model.GlobalSettings) error
}

// ── PeriodSettings Repository 实现 ──

type periodSettingsRepo struct {
	db *gorm.DB
}

// NewPeriodSettingsRepo 创建 PeriodSettingsRepository 实例
func NewPeriodSettingsRepo(db *gorm.DB) PeriodSettingsRepository {
	return &periodSettingsRepo{db: db}
}

func (r *periodSettingsRepo) Create(ctx context.Context, settings *model.PeriodSettings) error {
	return r.db.WithContext(ctx).Create(settings).Error
}

func (r *periodSettingsRepo) GetByPeriod(ctx context.Context, periodID string) (*model.PeriodSettings, error) {
	var settings model.PeriodSettings
	err := r.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *periodSettingsRepo) Update(ctx context.Context, settings *model.PeriodSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

// ── GlobalSettings Repository 实现 ──

type globalSettingsRepo struct {
	db *gorm.DB
}

// NewGlobalSettingsRepo 创建 GlobalSettingsRepository 实例
func NewGlobalSettingsRepo(db *gorm.DB) GlobalSettingsRepository {
	return &globalSettingsRepo{db: db}
}

func (r *globalSettingsRepo) Get(ctx context.Context) (*model.GlobalSettings, error) {
	var settings model.GlobalSettings
	err := r.db.WithContext(ctx).First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *globalSettingsRepo) Update(ctx context.Context, settings *model.GlobalSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}
