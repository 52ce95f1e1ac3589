package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praise/backend/internal/dto"
	"praise/backend/internal/model"
	"praise/backend/internal/repository"
)

// ── 指派模块业务错误 ──

var (
	ErrNoQuantifiers        = errors.New("量化员池为空")
	ErrQuantifierNotInPool  = errors.New("目标用户不是量化员")
	ErrQuantifierUnassigned = errors.New("该量化员在本周期没有指派记录")
	ErrSameQuantifier       = errors.New("新旧量化员不能相同")
)

// AssignService 量化员指派业务接口
type AssignService interface {
	// VerifyPool 指派前的咨询性预检：池规模是否足以覆盖需求
	VerifyPool(ctx context.Context, periodID string) (*dto.VerifyPoolResponse, error)
	// ReplaceQuantifier 释放周期内某量化员的全部指派并逐条重新指派：
	// 每条赞扬在剩余池中按负载最低原则挑选接替人（请求可附带首选接替人，
	// 仅在其对该赞扬合格时生效）。已完成的量化判断随记录一并丢弃，
	// 丢弃数量以警告返回
	ReplaceQuantifier(ctx context.Context, periodID string, req *dto.ReplaceQuantifierRequest, callerID string) (*dto.ReplaceQuantifierResponse, error)
}

type assignService struct {
	repo   *repository.Repository
	score  ScoreService
	events EventService
	logger *zap.Logger
}

// NewAssignService 创建 AssignService 实例
func NewAssignService(repo *repository.Repository, score ScoreService, events EventService, logger *zap.Logger) AssignService {
	return &assignService{repo: repo, score: score, events: events, logger: logger}
}

// ════════════════════════════════════════════════════════════
// buildAssignments — 指派核心（纯函数）
// ════════════════════════════════════════════════════════════
//
// 约束：
//   - 硬约束：量化员不得是赞扬的给予者或接收者；同一赞扬同一量化员至多一条
//   - 均衡模式：每条赞扬选取当前负载最低的 N 名合格量化员，负载相同按
//     user_id 升序；无排除时任意两名量化员负载差 ≤ 1
//   - 容量模式：按池固定顺序填充，每人至多 praise_per_quantifier 条；
//     全员到达容量上限时降级为负载最低者并告警
//   - 合格人数不足 N 时指派可得的全部人选并告警，绝不报错
//
// 入参须已排序（赞扬按 created_at,praise_id；池按 user_id），输出即确定。

func buildAssignments(praises []model.PraiseItem, pool []model.User, settings *model.PeriodSettings) ([]model.Quantification, []string) {
	n := settings.QuantifiersPerPraise
	capacity := settings.PraisePerQuantifier

	load := make(map[string]int, len(pool))
	var quants []model.Quantification
	var warnings []string

	for i := range praises {
		praise := &praises[i]

		// 合格候选：排除给予者与接收者
		eligible := make([]*model.User, 0, len(pool))
		for j := range pool {
			q := &pool[j]
			if q.UserID == praise.GiverID || q.UserID == praise.ReceiverID {
				continue
			}
			eligible = append(eligible, q)
		}

		var chosen []*model.User
		if settings.AssignEvenly {
			chosen = pickLeastLoaded(eligible, load, n)
		} else {
			chosen = pickByCapacity(eligible, load, n, capacity, &warnings, praise.PraiseID)
		}

		if len(chosen) < n {
			warnings = append(warnings, fmt.Sprintf(
				"赞扬 %s 仅指派了 %d/%d 名量化员", praise.PraiseID, len(chosen), n))
		}

		for _, q := range chosen {
			load[q.UserID]++
			quants = append(quants, model.Quantification{
				PraiseID:     praise.PraiseID,
				QuantifierID: q.UserID,
			})
		}
	}

	return quants, warnings
}

// pickLeastLoaded 均衡模式：负载最低的 n 名，平局按 user_id 升序
func pickLeastLoaded(eligible []*model.User, load map[string]int, n int) []*model.User {
	sorted := make([]*model.User, len(eligible))
	copy(sorted, eligible)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := load[sorted[i].UserID], load[sorted[j].UserID]
		if li != lj {
			return li < lj
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// pickByCapacity 容量模式：按池固定顺序填充至容量上限。
// 全员满载时降级为负载最低者，避免赞扬落空
func pickByCapacity(eligible []*model.User, load map[string]int, n, capacity int, warnings *[]string, praiseID string) []*model.User {
	chosen := make([]*model.User, 0, n)
	for _, q := range eligible {
		if len(chosen) == n {
			break
		}
		if load[q.UserID] < capacity {
			chosen = append(chosen, q)
		}
	}
	if len(chosen) < n && len(eligible) > len(chosen) {
		taken := make(map[string]bool, len(chosen))
		for _, q := range chosen {
			taken[q.UserID] = true
		}
		rest := make([]*model.User, 0, len(eligible))
		for _, q := range eligible {
			if !taken[q.UserID] {
				rest = append(rest, q)
			}
		}
		overflow := pickLeastLoaded(rest, load, n-len(chosen))
		if len(overflow) > 0 {
			*warnings = append(*warnings, fmt.Sprintf(
				"赞扬 %s 超出量化员容量上限，已降级指派 %d 名", praiseID, len(overflow)))
			chosen = append(chosen, overflow...)
		}
	}
	return chosen
}

// ────────────────────── VerifyPool ──────────────────────

func (s *assignService) VerifyPool(ctx context.Context, periodID string) (*dto.VerifyPoolResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, err
	}

	settings, err := resolvePeriodSettings(ctx, s.repo, periodID)
	if err != nil {
		s.logger.Error("解析周期设置失败", zap.Error(err))
		return nil, err
	}

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

	pool, err := s.repo.User.ListQuantifiers(ctx)
	if err != nil {
		s.logger.Error("查询量化员池失败", zap.Error(err))
		return nil, err
	}

	// 试运行一遍指派，以警告数判断池是否充足
	_, warnings := buildAssignments(praises, pool, settings)

	ids := make([]string, 0, len(pool))
	for i := range pool {
		ids = append(ids, pool[i].UserID)
	}

	return &dto.VerifyPoolResponse{
		Sufficient:    len(pool) > 0 && len(warnings) == 0,
		PoolSize:      len(pool),
		Required:      settings.QuantifiersPerPraise,
		PraiseCount:   len(praises),
		Warnings:      warnings,
		QuantifierIDs: ids,
	}, nil
}

// ────────────────────── ReplaceQuantifier ──────────────────────

func (s *assignService) ReplaceQuantifier(ctx context.Context, periodID string, req *dto.ReplaceQuantifierRequest, callerID string) (*dto.ReplaceQuantifierResponse, error) {
	if req.NewQuantifierID != "" {
		if req.CurrentQuantifierID == req.NewQuantifierID {
			return nil, ErrSameQuantifier
		}
		preferred, err := s.repo.User.GetByID(ctx, req.NewQuantifierID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			s.logger.Error("查询用户失败", zap.Error(err))
			return nil, err
		}
		if !preferred.IsQuantifier {
			return nil, ErrQuantifierNotInPool
		}
	}

	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, err
	}
	if period.Status != model.PeriodStatusQuantify {
		return nil, ErrPeriodNotQuantifying
	}

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
	praiseIDs := make([]string, 0, len(praises))
	for i := range praises {
		praiseIDs = append(praiseIDs, praises[i].PraiseID)
	}

	current, err := s.repo.Quantification.ListByQuantifier(ctx, req.CurrentQuantifierID, praiseIDs)
	if err != nil {
		s.logger.Error("查询量化员指派失败", zap.Error(err))
		return nil, err
	}
	if len(current) == 0 {
		return nil, ErrQuantifierUnassigned
	}

	var warnings []string
	discarded := 0
	freedSet := make(map[string]bool, len(current))
	freed := make([]string, 0, len(current))
	for i := range current {
		if current[i].Finished() {
			discarded++
		}
		freedSet[current[i].PraiseID] = true
		freed = append(freed, current[i].PraiseID)
	}
	if discarded > 0 {
		warnings = append(warnings, fmt.Sprintf("丢弃了 %d 条已完成的量化判断", discarded))
	}

	// 剩余池：排除被替换者本人
	quantifiers, err := s.repo.User.ListQuantifiers(ctx)
	if err != nil {
		s.logger.Error("查询量化员池失败", zap.Error(err))
		return nil, err
	}
	pool := make([]model.User, 0, len(quantifiers))
	for i := range quantifiers {
		if quantifiers[i].UserID != req.CurrentQuantifierID {
			pool = append(pool, quantifiers[i])
		}
	}

	// 周期内现存指派：负载按被释放记录删除后的状态计，
	// 同时用于避免同一赞扬被重复指派给同一人
	existing, err := s.repo.Quantification.ListByPraiseIDs(ctx, praiseIDs)
	if err != nil {
		s.logger.Error("查询周期内指派失败", zap.Error(err))
		return nil, err
	}
	load := make(map[string]int, len(pool))
	assignedTo := make(map[string]map[string]bool, len(praiseIDs))
	for i := range existing {
		q := &existing[i]
		if q.QuantifierID == req.CurrentQuantifierID {
			continue
		}
		load[q.QuantifierID]++
		if assignedTo[q.PraiseID] == nil {
			assignedTo[q.PraiseID] = make(map[string]bool)
		}
		assignedTo[q.PraiseID][q.QuantifierID] = true
	}

	// 逐条重新指派：合格者中取负载最低的一名；首选接替人合格时优先。
	// 按赞扬创建顺序遍历以保证结果确定
	replacements := make([]model.Quantification, 0, len(freed))
	for i := range praises {
		praise := &praises[i]
		if !freedSet[praise.PraiseID] {
			continue
		}

		eligible := make([]*model.User, 0, len(pool))
		for j := range pool {
			u := &pool[j]
			if u.UserID == praise.GiverID || u.UserID == praise.ReceiverID {
				continue
			}
			if assignedTo[praise.PraiseID][u.UserID] {
				continue
			}
			eligible = append(eligible, u)
		}
		if len(eligible) == 0 {
			warnings = append(warnings, fmt.Sprintf("赞扬 %s：剩余池中无合格量化员，指派落空", praise.PraiseID))
			continue
		}

		var chosen *model.User
		if req.NewQuantifierID != "" {
			for _, u := range eligible {
				if u.UserID == req.NewQuantifierID {
					chosen = u
					break
				}
			}
		}
		if chosen == nil {
			chosen = pickLeastLoaded(eligible, load, 1)[0]
		}

		load[chosen.UserID]++
		if assignedTo[praise.PraiseID] == nil {
			assignedTo[praise.PraiseID] = make(map[string]bool)
		}
		assignedTo[praise.PraiseID][chosen.UserID] = true
		replacements = append(replacements, model.Quantification{
			PraiseID:     praise.PraiseID,
			QuantifierID: chosen.UserID,
		})
	}

	// 删除旧指派、写入新指派须原子完成
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("开启事务失败", zap.Error(err))
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	txRepo := s.repo.WithTx(tx)

	if err := txRepo.Quantification.DeleteByQuantifier(ctx, req.CurrentQuantifierID, freed); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("删除旧量化员指派失败", zap.Error(err))
		return nil, err
	}
	if err := txRepo.Quantification.BatchCreate(ctx, replacements); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("写入新量化员指派失败", zap.Error(err))
		return nil, err
	}
	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return nil, err
		}
	}

	// 被丢弃的判断会改变受影响赞扬的结算分值
	if _, err := s.score.Realize(ctx, period, freed); err != nil {
		s.logger.Error("替换量化员后重新结算失败", zap.Error(err))
		return nil, err
	}

	s.events.Log(ctx, model.EventKindQuantifierReplaced,
		fmt.Sprintf("量化员 %s 被替换，%d 条指派已重新分配", req.CurrentQuantifierID, len(replacements)),
		&periodID, nil, &callerID)

	return &dto.ReplaceQuantifierResponse{
		Reassigned: len(replacements),
		Discarded:  discarded,
		Warnings:   warnings,
	}, nil
}
