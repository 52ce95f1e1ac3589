package service

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praise/backend/internal/model"
	"praise/backend/internal/repository"
)

// ScoreService 分值结算业务接口。
// score_realized 的唯一写入方：其余组件只读该字段。
type ScoreService interface {
	// Realize 重算种子赞扬的结算分值，并沿反向重复索引传播到受影响
	// 的赞扬。已关闭周期为冻结态，调用是空操作。返回分值发生变化的赞扬
	Realize(ctx context.Context, period *model.Period, seedIDs []string) ([]model.PraiseItem, error)
	// RealizeAll 重算周期内全部赞扬，供关闭周期前的最终结算使用
	RealizeAll(ctx context.Context, period *model.Period) ([]model.PraiseItem, error)
}

type scoreService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewScoreService 创建 ScoreService 实例
func NewScoreService(repo *repository.Repository, logger *zap.Logger) ScoreService {
	return &scoreService{repo: repo, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Realize — 工作队列式结算
// ════════════════════════════════════════════════════════════
//
// 单条赞扬的结算分值 = 各量化记录有效贡献的算术平均：
//   - 驳回         → 0
//   - 标记重复     → 重复目标当前结算分值 × duplicate_score_pct
//   - 已评分       → 分值本身（未作判断的记录贡献 0 分）
// 无量化记录的赞扬结算为 0。
//
// 某条赞扬分值变化后，所有以它为重复目标的赞扬入队重算。
// 不变式禁止重复链与自环，队列必然耗尽。

func (s *scoreService) Realize(ctx context.Context, period *model.Period, seedIDs []string) ([]model.PraiseItem, error) {
	if period.Status == model.PeriodStatusClosed {
		return nil, nil
	}
	if len(seedIDs) == 0 {
		return nil, nil
	}

	settings, err := resolvePeriodSettings(ctx, s.repo, period.PeriodID)
	if err != nil {
		s.logger.Error("解析周期设置失败", zap.String("period_id", period.PeriodID), zap.Error(err))
		return nil, err
	}

	queue := make([]string, 0, len(seedIDs))
	inQueue := make(map[string]bool, len(seedIDs))
	for _, id := range seedIDs {
		if !inQueue[id] {
			inQueue[id] = true
			queue = append(queue, id)
		}
	}

	// 目标分值缓存，随写入同步更新
	scoreCache := make(map[string]float64)
	changed := make(map[string]bool)

	// 无重复链时每条赞扬至多重算两次，上限仅作硬性保险
	limit := (len(seedIDs) + 1) * 16

	for steps := 0; len(queue) > 0; steps++ {
		if steps > limit {
			s.logger.Warn("结算队列超出迭代上限，提前终止",
				zap.String("period_id", period.PeriodID), zap.Int("steps", steps))
			break
		}

		praiseID := queue[0]
		queue = queue[1:]
		inQueue[praiseID] = false

		composite, err := s.composite(ctx, praiseID, settings, scoreCache)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}

		stored, err := s.storedScore(ctx, praiseID, scoreCache)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}

		if math.Abs(composite-stored) < 1e-9 {
			continue
		}

		if err := s.repo.Praise.UpdateScore(ctx, praiseID, composite); err != nil {
			s.logger.Error("写入结算分值失败", zap.String("praise_id", praiseID), zap.Error(err))
			return nil, err
		}
		scoreCache[praiseID] = composite
		changed[praiseID] = true

		// 反向重复索引：所有以该赞扬为重复目标的记录，其所属赞扬入队
		dependents, err := s.repo.Quantification.ListByDuplicateTarget(ctx, praiseID)
		if err != nil {
			s.logger.Error("查询反向重复索引失败", zap.String("praise_id", praiseID), zap.Error(err))
			return nil, err
		}
		for i := range dependents {
			dep := dependents[i].PraiseID
			if !inQueue[dep] {
				inQueue[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	if len(changed) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	affected, err := s.repo.Praise.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询受影响赞扬失败", zap.Error(err))
		return nil, err
	}
	return affected, nil
}

// ────────────────────── RealizeAll ──────────────────────

func (s *scoreService) RealizeAll(ctx context.Context, period *model.Period) ([]model.PraiseItem, error) {
	start, end, err := periodWindow(ctx, s.repo, period)
	if err != nil {
		s.logger.Error("计算周期窗口失败", zap.Error(err))
		return nil, err
	}
	praises, err := s.repo.Praise.ListByCreatedRange(ctx, start, end)
	if err != nil {
		s.logger.Error("查询周期内赞扬失败", zap.Error(err))
		return nil, err
	}
	ids := make([]string, 0, len(praises))
	for i := range praises {
		ids = append(ids, praises[i].PraiseID)
	}
	return s.Realize(ctx, period, ids)
}

// composite 计算单条赞扬的结算分值
func (s *scoreService) composite(ctx context.Context, praiseID string, settings *model.PeriodSettings, scoreCache map[string]float64) (float64, error) {
	quants, err := s.repo.Quantification.ListByPraise(ctx, praiseID)
	if err != nil {
		return 0, err
	}
	if len(quants) == 0 {
		return 0, nil
	}

	var sum float64
	for i := range quants {
		q := &quants[i]
		switch {
		case q.Dismissed:
			// 贡献 0
		case q.DuplicatePraiseID != nil:
			target, err := s.storedScore(ctx, *q.DuplicatePraiseID, scoreCache)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return 0, err
			}
			sum += target * settings.DuplicateScorePct
		case q.Score != nil:
			sum += float64(*q.Score)
		default:
			// 尚未作出判断的指派贡献 0
		}
	}
	return sum / float64(len(quants)), nil
}

// storedScore 读取赞扬当前结算分值（带缓存）
func (s *scoreService) storedScore(ctx context.Context, praiseID string, scoreCache map[string]float64) (float64, error) {
	if v, ok := scoreCache[praiseID]; ok {
		return v, nil
	}
	praise, err := s.repo.Praise.GetByID(ctx, praiseID)
	if err != nil {
		return 0, err
	}
	scoreCache[praiseID] = praise.ScoreRealized
	return praise.ScoreRealized, nil
}
