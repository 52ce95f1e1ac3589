package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praise/backend/internal/dto"
	"praise/backend/internal/model"
	"praise/backend/internal/repository"
)

// ── 周期模块业务错误 ──

var (
	ErrPeriodNotFound         = errors.New("周期不存在")
	ErrPeriodEndDateInvalid   = errors.New("周期结束时间必须晚于最近一个周期")
	ErrPeriodEndDateConflict  = errors.New("周期结束时间与相邻周期冲突")
	ErrPeriodNotOpen          = errors.New("周期非开放状态，不可执行此操作")
	ErrPeriodNotQuantifying   = errors.New("周期非量化状态，不可执行此操作")
	ErrInvalidStateTransition = errors.New("非法的周期状态转移")
	ErrPeriodShrinkOrphans    = errors.New("缩短结束时间会使已有赞扬脱离所有周期")
)

// PeriodService 周期业务接口。
// 状态机 open → quantify → closed 单向推进，状态字段只经
// StartQuantification / Close 两个转移写入。
type PeriodService interface {
	Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error)
	GetByID(ctx context.Context, id string) (*dto.PeriodDetailResponse, error)
	List(ctx context.Context) ([]dto.PeriodResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdatePeriodRequest, callerID string) (*dto.PeriodResponse, error)
	// StartQuantification open→quantify：事务内从头推导全部指派并冻结设置
	StartQuantification(ctx context.Context, id string, callerID string) (*dto.StartQuantificationResponse, error)
	// Close quantify→closed：最终结算后冻结分值
	Close(ctx context.Context, id string, callerID string) (*dto.PeriodResponse, error)
}

type periodService struct {
	repo   *repository.Repository
	score  ScoreService
	events EventService
	logger *zap.Logger
}

// NewPeriodService 创建 PeriodService 实例
func NewPeriodService(repo *repository.Repository, score ScoreService, events EventService, logger *zap.Logger) PeriodService {
	return &periodService{repo: repo, score: score, events: events, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *periodService) Create(ctx context.Context, req *dto.CreatePeriodRequest, callerID string) (*dto.PeriodResponse, error) {
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return nil, ErrPeriodEndDateInvalid
	}

	// 新周期的结束时间必须严格晚于最近一个周期
	latest, err := s.repo.Period.GetLatest(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询最近周期失败", zap.Error(err))
		return nil, err
	}
	if latest != nil && !endDate.After(latest.EndDate) {
		return nil, ErrPeriodEndDateInvalid
	}

	global, err := s.repo.GlobalSettings.Get(ctx)
	if err != nil {
		s.logger.Error("查询全局设置失败", zap.Error(err))
		return nil, err
	}

	period := &model.Period{
		Name:    req.Name,
		EndDate: endDate,
		Status:  model.PeriodStatusOpen,
	}
	period.CreatedBy = &callerID
	period.UpdatedBy = &callerID

	settings := &model.PeriodSettings{
		QuantifiersPerPraise: global.QuantifiersPerPraise,
		AssignEvenly:         global.AssignEvenly,
		PraisePerQuantifier:  global.PraisePerQuantifier,
		DuplicateScorePct:    global.DuplicateScorePct,
		AllowedScores:        global.AllowedScores,
	}
	settings.CreatedBy = &callerID
	settings.UpdatedBy = &callerID

	// 周期与设置快照一并创建
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

	if err := txRepo.Period.Create(ctx, period); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("创建周期失败", zap.Error(err))
		return nil, err
	}
	settings.PeriodID = period.PeriodID
	if err := txRepo.PeriodSettings.Create(ctx, settings); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("创建周期设置快照失败", zap.Error(err))
		return nil, err
	}
	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return nil, err
		}
	}

	s.events.Log(ctx, model.EventKindPeriodCreated,
		fmt.Sprintf("周期 %s 已创建，结束于 %s", period.Name, period.EndDate.Format(timeLayout)),
		&period.PeriodID, nil, &callerID)

	period.Settings = settings
	return s.toPeriodResponse(ctx, period), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *periodService) GetByID(ctx context.Context, id string) (*dto.PeriodDetailResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	detail := &dto.PeriodDetailResponse{PeriodResponse: *s.toPeriodResponse(ctx, period)}

	// 量化进度
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
	quants, err := s.repo.Quantification.ListByPraiseIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询量化记录失败", zap.Error(err))
		return nil, err
	}
	detail.QuantificationTotal = int64(len(quants))
	for i := range quants {
		if quants[i].Finished() {
			detail.QuantificationFinished++
		}
	}
	return detail, nil
}

// ────────────────────── List ──────────────────────

func (s *periodService) List(ctx context.Context) ([]dto.PeriodResponse, error) {
	periods, err := s.repo.Period.List(ctx)
	if err != nil {
		s.logger.Error("列出周期失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.PeriodResponse, 0, len(periods))
	for i := range periods {
		result = append(result, *s.toPeriodResponse(ctx, &periods[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *periodService) Update(ctx context.Context, id string, req *dto.UpdatePeriodRequest, callerID string) (*dto.PeriodResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if period.Status != model.PeriodStatusOpen {
		return nil, ErrPeriodNotOpen
	}

	if req.Name != nil {
		period.Name = *req.Name
	}
	if req.EndDate != nil {
		endDate, err := time.Parse(time.RFC3339, *req.EndDate)
		if err != nil {
			return nil, ErrPeriodEndDateInvalid
		}
		if err := s.checkEndDateMove(ctx, period, endDate); err != nil {
			return nil, err
		}
		period.EndDate = endDate
	}
	period.UpdatedBy = &callerID

	if err := s.repo.Period.Update(ctx, period); err != nil {
		s.logger.Error("更新周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.events.Log(ctx, model.EventKindPeriodUpdated,
		fmt.Sprintf("周期 %s 已更新", period.Name),
		&period.PeriodID, nil, &callerID)

	return s.toPeriodResponse(ctx, period), nil
}

// checkEndDateMove 校验结束时间调整不破坏周期排序，也不让任何赞扬脱离周期。
// 周期归属由 created_at 推导，边界移动只会在相邻周期间转移归属；
// 唯一的孤儿风险是最后一个周期向前缩短。
func (s *periodService) checkEndDateMove(ctx context.Context, period *model.Period, newEnd time.Time) error {
	prev, err := s.repo.Period.GetPrevious(ctx, period.EndDate)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if prev != nil && !newEnd.After(prev.EndDate) {
		return ErrPeriodEndDateConflict
	}

	next, err := s.repo.Period.GetNext(ctx, period.EndDate)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if next != nil {
		if !newEnd.Before(next.EndDate) {
			return ErrPeriodEndDateConflict
		}
		return nil
	}

	// 最后一个周期：缩短后落在 [newEnd, oldEnd) 的赞扬将无周期可归
	if newEnd.Before(period.EndDate) {
		count, err := s.repo.Praise.CountByCreatedRange(ctx, newEnd, period.EndDate)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrPeriodShrinkOrphans
		}
	}
	return nil
}

// ════════════════════════════════════════════════════════════
// StartQuantification — open→quantify
// ════════════════════════════════════════════════════════════
//
// 事务内完成：清除已有指派（重入安全）→ 重新推导全部指派 →
// 批量写入占位量化记录 → 乐观锁翻转状态。任一步失败整体回滚。

func (s *periodService) StartQuantification(ctx context.Context, id string, callerID string) (*dto.StartQuantificationResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if period.Status != model.PeriodStatusOpen {
		return nil, ErrInvalidStateTransition
	}

	settings, err := resolvePeriodSettings(ctx, s.repo, id)
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
	if len(pool) == 0 {
		return nil, ErrNoQuantifiers
	}

	assignments, warnings := buildAssignments(praises, pool, settings)
	for i := range assignments {
		assignments[i].CreatedBy = &callerID
		assignments[i].UpdatedBy = &callerID
	}

	praiseIDs := make([]string, 0, len(praises))
	for i := range praises {
		praiseIDs = append(praiseIDs, praises[i].PraiseID)
	}

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

	if err := txRepo.Quantification.DeleteByPraiseIDs(ctx, praiseIDs); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("清除旧指派失败", zap.Error(err))
		return nil, err
	}
	if err := txRepo.Quantification.BatchCreate(ctx, assignments); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("写入指派失败", zap.Error(err))
		return nil, err
	}

	period.Status = model.PeriodStatusQuantify
	period.UpdatedBy = &callerID
	if err := txRepo.Period.Update(ctx, period); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		s.logger.Error("翻转周期状态失败", zap.Error(err))
		return nil, err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			s.logger.Error("提交事务失败", zap.Error(err))
			return nil, err
		}
	}

	s.events.Log(ctx, model.EventKindQuantifyStarted,
		fmt.Sprintf("周期 %s 进入量化阶段，%d 条赞扬产生 %d 条指派", period.Name, len(praises), len(assignments)),
		&period.PeriodID, nil, &callerID)

	return &dto.StartQuantificationResponse{
		Period:      *s.toPeriodResponse(ctx, period),
		PraiseCount: len(praises),
		Assignments: len(assignments),
		Warnings:    warnings,
	}, nil
}

// ────────────────────── Close ──────────────────────

func (s *periodService) Close(ctx context.Context, id string, callerID string) (*dto.PeriodResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if period.Status != model.PeriodStatusQuantify {
		return nil, ErrInvalidStateTransition
	}

	// 冻结前的最终确定性结算
	if _, err := s.score.RealizeAll(ctx, period); err != nil {
		s.logger.Error("关闭前最终结算失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	period.Status = model.PeriodStatusClosed
	period.UpdatedBy = &callerID
	if err := s.repo.Period.Update(ctx, period); err != nil {
		s.logger.Error("关闭周期失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	s.events.Log(ctx, model.EventKindPeriodClosed,
		fmt.Sprintf("周期 %s 已关闭，分值冻结", period.Name),
		&period.PeriodID, nil, &callerID)

	return s.toPeriodResponse(ctx, period), nil
}

// ────────────────────── 响应转换 ──────────────────────

func (s *periodService) toPeriodResponse(ctx context.Context, period *model.Period) *dto.PeriodResponse {
	resp := &dto.PeriodResponse{
		ID:        period.PeriodID,
		Name:      period.Name,
		EndDate:   period.EndDate.Format(timeLayout),
		Status:    period.Status,
		CreatedAt: period.CreatedAt.Format(timeLayout),
		UpdatedAt: period.UpdatedAt.Format(timeLayout),
	}
	if period.Settings != nil {
		resp.Settings = &dto.PeriodSettingsResponse{
			QuantifiersPerPraise: period.Settings.QuantifiersPerPraise,
			AssignEvenly:         period.Settings.AssignEvenly,
			PraisePerQuantifier:  period.Settings.PraisePerQuantifier,
			DuplicateScorePct:    period.Settings.DuplicateScorePct,
			AllowedScores:        period.Settings.AllowedScores,
			Frozen:               period.Status != model.PeriodStatusOpen,
		}
	}
	if start, end, err := periodWindow(ctx, s.repo, period); err == nil {
		if count, err := s.repo.Praise.CountByCreatedRange(ctx, start, end); err == nil {
			resp.PraiseCount = count
		}
	}
	return resp
}
