package repository

import (
	"context"

	"gorm.io/gorm"

	pkgerrors "praise/backend/pkg/errors"

	"praise/backend/internal/model"
)

// QuantificationRepository 量化记录数据访问接口
type QuantificationRepository interface {
	BatchCreate(ctx context.Context, quants []model.Quantification) error
	GetByID(ctx context.Context, id string) (*model.Quantification, error)
	GetByPraiseAndQuantifier(ctx context.Context, praiseID, quantifierID string) (*model.Quantification, error)
	// ListByPraise 按 quantifier_id 升序返回某条赞扬的全部量化记录
	ListByPraise(ctx context.Context, praiseID string) ([]model.Quantification, error)
	ListByPraiseIDs(ctx context.Context, praiseIDs []string) ([]model.Quantification, error)
	ListByQuantifier(ctx context.Context, quantifierID string, praiseIDs []string) ([]model.Quantification, error)
	// ListByDuplicateTarget 返回所有将该赞扬标记为重复目标的量化记录（反向索引）
	ListByDuplicateTarget(ctx context.Context, praiseID string) ([]model.Quantification, error)
	Update(ctx context.Context, quant *model.Quantification) error
	DeleteByPraiseIDs(ctx context.Context, praiseIDs []string) error
	DeleteByQuantifier(ctx context.Context, quantifierID string, praiseIDs []string) error
}

type quantificationRepo struct {
	db *gorm.DB
}

// NewQuantificationRepo 创建 QuantificationRepository 实例
func NewQuantificationRepo(db *gorm.DB) QuantificationRepository {
	return &quantificationRepo{db: db}
}

func (r *quantificationRepo) BatchCreate(ctx context.Context, quants []model.Quantification) error {
	if len(quants) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(quants, 200).Error
}

func (r *quantificationRepo) GetByID(ctx context.Context, id string) (*model.Quantification, error) {
	var quant model.Quantification
	err := r.db.WithContext(ctx).
		Where("quantification_id = ?", id).
		First(&quant).Error
	if err != nil {
		return nil, err
	}
	return &quant, nil
}

func (r *quantificationRepo) GetByPraiseAndQuantifier(ctx context.Context, praiseID, quantifierID string) (*model.Quantification, error) {
	var quant model.Quantification
	err := r.db.WithContext(ctx).
		Where("praise_id = ? AND quantifier_id = ?", praiseID, quantifierID).
		First(&quant).Error
	if err != nil {
		return nil, err
	}
	return &quant, nil
}

func (r *quantificationRepo) ListByPraise(ctx context.Context, praiseID string) ([]model.Quantification, error) {
	var quants []model.Quantification
	err := r.db.WithContext(ctx).
		Where("praise_id = ?", praiseID).
		Order("quantifier_id ASC").
		Find(&quants).Error
	return quants, err
}

func (r *quantificationRepo) ListByPraiseIDs(ctx context.Context, praiseIDs []string) ([]model.Quantification, error) {
	if len(praiseIDs) == 0 {
		return nil, nil
	}
	var quants []model.Quantification
	err := r.db.WithContext(ctx).
		Where("praise_id IN ?", praiseIDs).
		Order("praise_id ASC, quantifier_id ASC").
		Find(&quants).Error
	return quants, err
}

func (r *quantificationRepo) ListByQuantifier(ctx context.Context, quantifierID string, praiseIDs []string) ([]model.Quantification, error) {
	var quants []model.Quantification
	db := r.db.WithContext(ctx).
		Where("quantifier_id = ?", quantifierID)
	if len(praiseIDs) > 0 {
		db = db.Where("praise_id IN ?", praiseIDs)
	}
	err := db.Order("praise_id ASC").Find(&quants).Error
	return quants, err
}

func (r *quantificationRepo) ListByDuplicateTarget(ctx context.Context, praiseID string) ([]model.Quantification, error) {
	var quants []model.Quantification
	err := r.db.WithContext(ctx).
		Where("duplicate_praise_id = ?", praiseID).
		Find(&quants).Error
	return quants, err
}

// Update 带乐观锁的更新，版本不匹配时返回 ErrOptimisticLock
func (r *quantificationRepo) Update(ctx context.Context, quant *model.Quantification) error {
	oldVersion := quant.Version
	result := r.db.WithContext(ctx).
		Model(quant).
		Where("quantification_id = ? AND version = ?", quant.QuantificationID, oldVersion).
		Updates(map[string]interface{}{
			"score":               quant.Score,
			"dismissed":           quant.Dismissed,
			"duplicate_praise_id": quant.DuplicatePraiseID,
			"updated_by":          quant.UpdatedBy,
			"version":             oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	quant.Version = oldVersion + 1
	return nil
}

func (r *quantificationRepo) DeleteByPraiseIDs(ctx context.Context, praiseIDs []string) error {
	if len(praiseIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("praise_id IN ?", praiseIDs).
		Delete(&model.Quantification{}).Error
}

func (r *quantificationRepo) DeleteByQuantifier(ctx context.Context, quantifierID string, praiseIDs []string) error {
	if len(praiseIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("quantifier_id = ? AND praise_id IN ?", quantifierID, praiseIDs).
		Delete(&model.Quantification{}).Error
}
