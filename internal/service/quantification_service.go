package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praise/backend/internal/dto"
	"praise/backend/internal/model"
	"praise/backend/internal/repository"
	pkgerrors "praise/backend/pkg/errors"
)

// ── 量化模块业务错误 ──

var (
	ErrQuantNotAssigned       = errors.New("该赞扬未指派给当前量化员")
	ErrInvalidJudgement       = errors.New("评分、驳回、标记重复必须且只能给出一项")
	ErrScoreNotAllowed        = errors.New("分值不在本周期允许的白名单内")
	ErrSelfDuplicate          = errors.New("不能将赞扬标记为自身的重复")
	ErrDuplicateTargetMissing = errors.New("重复目标不存在或不在同一周期")
	ErrDuplicateOfDuplicate   = errors.New("重复目标本身已被标记为重复")
	ErrTargetOfDuplicates     = errors.New("该赞扬已被标记为其他赞扬的重复原件，不能再标记为重复")
)

// QuantificationService 量化判定业务接口
type QuantificationService interface {
	// Quantify 提交或修改一次量化判断，返回结算分值发生变化的赞扬集合
	Quantify(ctx context.Context, praiseID, quantifierID string, req *dto.QuantifyRequest) (*dto.QuantifyResponse, error)
	// ListTasks 量化员查看本周期指派给自己的任务
	ListTasks(ctx context.Context, periodID, quantifierID string) ([]dto.QuantifierTaskResponse, error)
}

type quantificationService struct {
	repo   *repository.Repository
	score  ScoreService
	events EventService
	logger *zap.Logger
}

// NewQuantificationService 创建 QuantificationService 实例
func NewQuantificationService(repo *repository.Repository, score ScoreService, events EventService, logger *zap.Logger) QuantificationService {
	return &quantificationService{repo: repo, score: score, events: events, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Quantify — 量化判定写入
// ════════════════════════════════════════════════════════════
//
// 前置校验全部通过后才落库：
//   - 赞扬所属周期必须处于量化状态
//   - (praise, quantifier) 必须有指派记录
//   - 判断三选一；评分须在白名单；重复标记不得自指、不得指向重复、
//     不得在自身已是重复原件时发出（禁止重复链）
// 写入遵循互斥不变式：只保留本次给出的一项，其余清零。
// 乐观锁冲突重试一次，二次冲突原样上抛。

func (s *quantificationService) Quantify(ctx context.Context, praiseID, quantifierID string, req *dto.QuantifyRequest) (*dto.QuantifyResponse, error) {
	praise, err := s.repo.Praise.GetByID(ctx, praiseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPraiseNotFound
		}
		s.logger.Error("查询赞扬失败", zap.String("id", praiseID), zap.Error(err))
		return nil, err
	}

	period, err := s.repo.Period.FindByTimestamp(ctx, praise.CreatedAt)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("推导赞扬所属周期失败", zap.Error(err))
		return nil, err
	}
	if period.Status != model.PeriodStatusQuantify {
		return nil, ErrPeriodNotQuantifying
	}

	quant, err := s.repo.Quantification.GetByPraiseAndQuantifier(ctx, praiseID, quantifierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuantNotAssigned
		}
		s.logger.Error("查询量化记录失败", zap.Error(err))
		return nil, err
	}

	if err := s.validateJudgement(ctx, praise, period, req); err != nil {
		return nil, err
	}

	// 首次量化：写入前该赞扬尚无任何已完成的判断，含本人此前的判断
	siblings, err := s.repo.Quantification.ListByPraise(ctx, praiseID)
	if err != nil {
		s.logger.Error("查询量化记录失败", zap.Error(err))
		return nil, err
	}
	firstJudgement := !quant.Finished()
	if firstJudgement {
		for i := range siblings {
			if siblings[i].QuantificationID != quant.QuantificationID && siblings[i].Finished() {
				firstJudgement = false
				break
			}
		}
	}

	applyJudgement(quant, req)
	quant.UpdatedBy = &quantifierID

	if err := s.repo.Quantification.Update(ctx, quant); err != nil {
		if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
			s.logger.Error("写入量化判断失败", zap.Error(err))
			return nil, err
		}
		// 并发冲突：取最新版本重放一次
		fresh, rerr := s.repo.Quantification.GetByID(ctx, quant.QuantificationID)
		if rerr != nil {
			s.logger.Error("冲突重试读取量化记录失败", zap.Error(rerr))
			return nil, rerr
		}
		applyJudgement(fresh, req)
		fresh.UpdatedBy = &quantifierID
		if err := s.repo.Quantification.Update(ctx, fresh); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				return nil, err
			}
			s.logger.Error("冲突重试写入量化判断失败", zap.Error(err))
			return nil, err
		}
		quant = fresh
	}

	// 结算并收集受影响集合
	affected, err := s.score.Realize(ctx, period, []string{praiseID})
	if err != nil {
		s.logger.Error("量化后结算失败", zap.String("praise_id", praiseID), zap.Error(err))
		return nil, err
	}

	s.events.Log(ctx, model.EventKindPraiseQuantified,
		fmt.Sprintf("量化员 %s 对赞扬 %s 作出判断", quantifierID, praiseID),
		&period.PeriodID, &praiseID, &quantifierID)
	if firstJudgement {
		s.events.Log(ctx, model.EventKindFirstQuantification,
			fmt.Sprintf("赞扬 %s 收到首个量化判断", praiseID),
			&period.PeriodID, &praiseID, &quantifierID)
	}
	if s.allFinished(siblings, quant) {
		s.events.Log(ctx, model.EventKindQuantifyComplete,
			fmt.Sprintf("赞扬 %s 的全部量化判断已完成", praiseID),
			&period.PeriodID, &praiseID, &quantifierID)
	}

	resp := &dto.QuantifyResponse{
		Quantification: toQuantificationResponse(quant),
		Affected:       make([]dto.PraiseResponse, 0, len(affected)),
	}
	for i := range affected {
		resp.Affected = append(resp.Affected, *toPraiseResponse(&affected[i]))
	}
	return resp, nil
}

// validateJudgement 校验判断形态与重复标记不变式
func (s *quantificationService) validateJudgement(ctx context.Context, praise *model.PraiseItem, period *model.Period, req *dto.QuantifyRequest) error {
	given := 0
	if req.Score != nil {
		given++
	}
	if req.Dismissed != nil && *req.Dismissed {
		given++
	}
	if req.DuplicatePraiseID != nil {
		given++
	}
	if given != 1 {
		return ErrInvalidJudgement
	}

	if req.Score != nil {
		settings, err := resolvePeriodSettings(ctx, s.repo, period.PeriodID)
		if err != nil {
			s.logger.Error("解析周期设置失败", zap.Error(err))
			return err
		}
		// 白名单是唯一标准，0 在默认白名单内是合法分值
		if !settings.AllowedScores.Contains(*req.Score) {
			return ErrScoreNotAllowed
		}
		return nil
	}

	if req.DuplicatePraiseID == nil {
		return nil
	}

	targetID := *req.DuplicatePraiseID
	if targetID == praise.PraiseID {
		return ErrSelfDuplicate
	}

	target, err := s.repo.Praise.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDuplicateTargetMissing
		}
		s.logger.Error("查询重复目标失败", zap.Error(err))
		return err
	}

	// 重复目标必须与被判赞扬同周期
	start, end, err := periodWindow(ctx, s.repo, period)
	if err != nil {
		return err
	}
	if target.CreatedAt.Before(start) || !target.CreatedAt.Before(end) {
		return ErrDuplicateTargetMissing
	}

	// 禁止重复链：目标不得已是重复，自身不得已是重复原件
	targetQuants, err := s.repo.Quantification.ListByPraise(ctx, targetID)
	if err != nil {
		s.logger.Error("查询重复目标量化记录失败", zap.Error(err))
		return err
	}
	for i := range targetQuants {
		if targetQuants[i].DuplicatePraiseID != nil {
			return ErrDuplicateOfDuplicate
		}
	}

	incoming, err := s.repo.Quantification.ListByDuplicateTarget(ctx, praise.PraiseID)
	if err != nil {
		s.logger.Error("查询反向重复索引失败", zap.Error(err))
		return err
	}
	if len(incoming) > 0 {
		return ErrTargetOfDuplicates
	}

	return nil
}

// applyJudgement 互斥写入：保留本次判断，清空其余两项
func applyJudgement(quant *model.Quantification, req *dto.QuantifyRequest) {
	quant.Score = nil
	quant.Dismissed = false
	quant.DuplicatePraiseID = nil
	switch {
	case req.Score != nil:
		score := *req.Score
		quant.Score = &score
	case req.Dismissed != nil && *req.Dismissed:
		quant.Dismissed = true
	case req.DuplicatePraiseID != nil:
		dup := *req.DuplicatePraiseID
		quant.DuplicatePraiseID = &dup
	}
}

// allFinished 判断写入后该赞扬的全部量化记录是否均已完成
func (s *quantificationService) allFinished(siblings []model.Quantification, updated *model.Quantification) bool {
	if !updated.Finished() {
		return false
	}
	for i := range siblings {
		if siblings[i].QuantificationID == updated.QuantificationID {
			continue
		}
		if !siblings[i].Finished() {
			return false
		}
	}
	return true
}

// ────────────────────── ListTasks ──────────────────────

func (s *quantificationService) ListTasks(ctx context.Context, periodID, quantifierID string) ([]dto.QuantifierTaskResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", periodID), zap.Error(err))
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
	praiseByID := make(map[string]*model.PraiseItem, len(praises))
	praiseIDs := make([]string, 0, len(praises))
	for i := range praises {
		praiseByID[praises[i].PraiseID] = &praises[i]
		praiseIDs = append(praiseIDs, praises[i].PraiseID)
	}

	quants, err := s.repo.Quantification.ListByQuantifier(ctx, quantifierID, praiseIDs)
	if err != nil {
		s.logger.Error("查询量化员任务失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.QuantifierTaskResponse, 0, len(quants))
	for i := range quants {
		q := &quants[i]
		praise := praiseByID[q.PraiseID]
		if praise == nil {
			continue
		}
		result = append(result, dto.QuantifierTaskResponse{
			Quantification: toQuantificationResponse(q),
			Praise:         *toPraiseResponse(praise),
		})
	}
	return result, nil
}

// toQuantificationResponse 量化记录响应转换
func toQuantificationResponse(q *model.Quantification) dto.QuantificationResponse {
	return dto.QuantificationResponse{
		ID:                q.QuantificationID,
		PraiseID:          q.PraiseID,
		QuantifierID:      q.QuantifierID,
		Score:             q.Score,
		Dismissed:         q.Dismissed,
		DuplicatePraiseID: q.DuplicatePraiseID,
		Finished:          q.Finished(),
		UpdatedAt:         q.UpdatedAt.Format(timeLayout),
	}
}
