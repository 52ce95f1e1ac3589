package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"praise/backend/internal/model"
	pkgerrors "praise/backend/pkg/errors"
)

// PeriodRepository 周期数据访问接口
type PeriodRepository interface {
	Create(ctx context.Context, period *model.Period) error
	GetByID(ctx context.Context, id string) (*model.Period, error)
	// List 按 end_date 升序返回全部周期
	List(ctx context.Context) ([]model.Period, error)
	// GetLatest 返回 end_date 最大的周期
	GetLatest(ctx context.Context) (*model.Period, error)
	// GetPrevious 返回 end_date 严格早于 endDate 的最近一个周期
	GetPrevious(ctx context.Context, endDate time.Time) (*model.Period, error)
	// GetNext 返回 end_date 严格晚于 endDate 的最近一个周期
	GetNext(ctx context.Context, endDate time.Time) (*model.Period, error)
	// FindByTimestamp 返回时间戳所属的周期（end_date 晚于 t 的最早周期）
	FindByTimestamp(ctx context.Context, t time.Time) (*model.Period, error)
	Update(ctx context.Context, period *model.Period) error
	Delete(ctx context.Context, id string, deletedBy string) error
}

type periodRepo struct {
	db *gorm.DB
}

// NewPeriodRepo 创建 PeriodRepository 实例
func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) Create(ctx context.Context, period *model.Period) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *periodRepo) GetByID(ctx context.Context, id string) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Preload("Settings").
		Where("period_id = ?", id).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) List(ctx context.Context) ([]model.Period, error) {
	var periods []model.Period
	err := r.db.WithContext(ctx).
		Order("end_date ASC").
		Find(&periods).Error
	return periods, err
}

func (r *periodRepo) GetLatest(ctx context.Context) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Order("end_date DESC").
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) GetPrevious(ctx context.Context, endDate time.Time) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Where("end_date < ?", endDate).
		Order("end_date DESC").
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) GetNext(ctx context.Context, endDate time.Time) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Where("end_date > ?", endDate).
		Order("end_date ASC").
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) FindByTimestamp(ctx context.Context, t time.Time) (*model.Period, error) {
	var period model.Period
	err := r.db.WithContext(ctx).
		Where("end_date > ?", t).
		Order("end_date ASC").
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) Update(ctx context.Context, period *model.Period) error {
	oldVersion := period.Version
	result := r.db.WithContext(ctx).
		Model(period).
		Where("period_id = ? AND version = ?", period.PeriodID, oldVersion).
		Updates(map[string]interface{}{
			"name":       period.Name,
			"end_date":   period.EndDate,
			"status":     period.Status,
			"updated_by": period.UpdatedBy,
			"version":    oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	period.Version = oldVersion + 1
	return nil
}

func (r *periodRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.Period{}).
		Where("period_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
