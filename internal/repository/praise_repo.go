package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"praise/backend/internal/model"
)

// PraiseRepository 赞扬数据访问接口
type PraiseRepository interface {
	Create(ctx context.Context, praise *model.PraiseItem) error
	GetByID(ctx context.Context, id string) (*model.PraiseItem, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.PraiseItem, error)
	// ListByCreatedRange 返回创建时间落在 [from, to) 的赞扬，
	// 按 created_at、praise_id 升序以保证指派与结算确定性
	ListByCreatedRange(ctx context.Context, from, to time.Time) ([]model.PraiseItem, error)
	ListByReceiver(ctx context.Context, receiverID string, offset, limit int) ([]model.PraiseItem, int64, error)
	CountByCreatedRange(ctx context.Context, from, to time.Time) (int64, error)
	// UpdateScore 写入派生的结算分值；score_realized 的唯一写入口
	UpdateScore(ctx context.Context, praiseID string, score float64) error
}

type praiseRepo struct {
	db *gorm.DB
}

// NewPraiseRepo 创建 PraiseRepository 实例
func NewPraiseRepo(db *gorm.DB) PraiseRepository {
	return &praiseRepo{db: db}
}

func (r *praiseRepo) Create(ctx context.Context, praise *model.PraiseItem) error {
	return r.db.WithContext(ctx).Create(praise).Error
}

func (r *praiseRepo) GetByID(ctx context.Context, id string) (*model.PraiseItem, error) {
	var praise model.PraiseItem
	err := r.db.WithContext(ctx).
		Preload("Giver").
		Preload("Receiver").
		Where("praise_id = ?", id).
		First(&praise).Error
	if err != nil {
		return nil, err
	}
	return &praise, nil
}

func (r *praiseRepo) GetByIDs(ctx context.Context, ids []string) ([]model.PraiseItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var praises []model.PraiseItem
	err := r.db.WithContext(ctx).
		Preload("Giver").
		Preload("Receiver").
		Where("praise_id IN ?", ids).
		Order("created_at ASC, praise_id ASC").
		Find(&praises).Error
	return praises, err
}

func (r *praiseRepo) ListByCreatedRange(ctx context.Context, from, to time.Time) ([]model.PraiseItem, error) {
	var praises []model.PraiseItem
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, praise_id ASC").
		Find(&praises).Error
	return praises, err
}

func (r *praiseRepo) ListByReceiver(ctx context.Context, receiverID string, offset, limit int) ([]model.PraiseItem, int64, error) {
	var praises []model.PraiseItem
	var total int64

	db := r.db.WithContext(ctx).Model(&model.PraiseItem{}).
		Where("receiver_id = ?", receiverID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Giver").
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&praises).Error
	return praises, total, err
}

func (r *praiseRepo) CountByCreatedRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PraiseItem{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error
	return count, err
}

func (r *praiseRepo) UpdateScore(ctx context.Context, praiseID string, score float64) error {
	return r.db.WithContext(ctx).
		Model(&model.PraiseItem{}).
		Where("praise_id = ?", praiseID).
		Update("score_realized", score).Error
}
