package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praise/backend/internal/dto"
	"praise/backend/internal/model"
	"praise/backend/internal/repository"
)

// ── 设置模块业务错误 ──

var (
	ErrSettingsPeriodNotOpen = errors.New("周期设置仅在周期开放状态下可修改")
	ErrAllowedScoresInvalid  = errors.New("允许分值白名单必须为非负且不重复")
)

// SettingsService 量化设置业务接口。
// 两级设置：全局设置为默认值，周期创建时快照到 period_settings；
// Resolve 是指派与结算读取生效设置的唯一入口。
type SettingsService interface {
	GetGlobal(ctx context.Context) (*dto.PeriodSettingsResponse, error)
	UpdateGlobal(ctx context.Context, req *dto.UpdateGlobalSettingsRequest, callerID string) (*dto.PeriodSettingsResponse, error)
	GetForPeriod(ctx context.Context, periodID string) (*dto.PeriodSettingsResponse, error)
	UpdateForPeriod(ctx context.Context, periodID string, req *dto.UpdateGlobalSettingsRequest, callerID string) (*dto.PeriodSettingsResponse, error)
}

type settingsService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewSettingsService 创建 SettingsService 实例
func NewSettingsService(repo *repository.Repository, logger *zap.Logger) SettingsService {
	return &settingsService{repo: repo, logger: logger}
}

// ────────────────────── GetGlobal ──────────────────────

func (s *settingsService) GetGlobal(ctx context.Context) (*dto.PeriodSettingsResponse, error) {
	global, err := s.repo.GlobalSettings.Get(ctx)
	if err != nil {
		s.logger.Error("查询全局设置失败", zap.Error(err))
		return nil, err
	}
	return &dto.PeriodSettingsResponse{
		QuantifiersPerPraise: global.QuantifiersPerPraise,
		AssignEvenly:         global.AssignEvenly,
		PraisePerQuantifier:  global.PraisePerQuantifier,
		DuplicateScorePct:    global.DuplicateScorePct,
		AllowedScores:        global.AllowedScores,
	}, nil
}

// ────────────────────── UpdateGlobal ──────────────────────

func (s *settingsService) UpdateGlobal(ctx context.Context, req *dto.UpdateGlobalSettingsRequest, callerID string) (*dto.PeriodSettingsResponse, error) {
	global, err := s.repo.GlobalSettings.Get(ctx)
	if err != nil {
		s.logger.Error("查询全局设置失败", zap.Error(err))
		return nil, err
	}

	if req.QuantifiersPerPraise != nil {
		global.QuantifiersPerPraise = *req.QuantifiersPerPraise
	}
	if req.AssignEvenly != nil {
		global.AssignEvenly = *req.AssignEvenly
	}
	if req.PraisePerQuantifier != nil {
		global.PraisePerQuantifier = *req.PraisePerQuantifier
	}
	if req.DuplicateScorePct != nil {
		global.DuplicateScorePct = *req.DuplicateScorePct
	}
	if req.AllowedScores != nil {
		scores, err := normalizeAllowedScores(req.AllowedScores)
		if err != nil {
			return nil, err
		}
		global.AllowedScores = scores
	}
	global.UpdatedBy = &callerID

	if err := s.repo.GlobalSettings.Update(ctx, global); err != nil {
		s.logger.Error("更新全局设置失败", zap.Error(err))
		return nil, err
	}

	return &dto.PeriodSettingsResponse{
		QuantifiersPerPraise: global.QuantifiersPerPraise,
		AssignEvenly:         global.AssignEvenly,
		PraisePerQuantifier:  global.PraisePerQuantifier,
		DuplicateScorePct:    global.DuplicateScorePct,
		AllowedScores:        global.AllowedScores,
	}, nil
}

// ────────────────────── GetForPeriod ──────────────────────

func (s *settingsService) GetForPeriod(ctx context.Context, periodID string) (*dto.PeriodSettingsResponse, error) {
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
		s.logger.Error("解析周期设置失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}

	return &dto.PeriodSettingsResponse{
		QuantifiersPerPraise: settings.QuantifiersPerPraise,
		AssignEvenly:         settings.AssignEvenly,
		PraisePerQuantifier:  settings.PraisePerQuantifier,
		DuplicateScorePct:    settings.DuplicateScorePct,
		AllowedScores:        settings.AllowedScores,
		Frozen:               period.Status != model.PeriodStatusOpen,
	}, nil
}

// ────────────────────── UpdateForPeriod ──────────────────────

func (s *settingsService) UpdateForPeriod(ctx context.Context, periodID string, req *dto.UpdateGlobalSettingsRequest, callerID string) (*dto.PeriodSettingsResponse, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPeriodNotFound
		}
		s.logger.Error("查询周期失败", zap.String("id", periodID), zap.Error(err))
		return nil, err
	}

	// 量化开始后设置冻结为快照，不再接受修改
	if period.Status != model.PeriodStatusOpen {
		return nil, ErrSettingsPeriodNotOpen
	}

	settings, err := resolvePeriodSettings(ctx, s.repo, periodID)
	if err != nil {
		s.logger.Error("解析周期设置失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}

	if req.QuantifiersPerPraise != nil {
		settings.QuantifiersPerPraise = *req.QuantifiersPerPraise
	}
	if req.AssignEvenly != nil {
		settings.AssignEvenly = *req.AssignEvenly
	}
	if req.PraisePerQuantifier != nil {
		settings.PraisePerQuantifier = *req.PraisePerQuantifier
	}
	if req.DuplicateScorePct != nil {
		settings.DuplicateScorePct = *req.DuplicateScorePct
	}
	if req.AllowedScores != nil {
		scores, err := normalizeAllowedScores(req.AllowedScores)
		if err != nil {
			return nil, err
		}
		settings.AllowedScores = scores
	}
	settings.UpdatedBy = &callerID

	if err := s.repo.PeriodSettings.Update(ctx, settings); err != nil {
		s.logger.Error("更新周期设置失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, err
	}

	return &dto.PeriodSettingsResponse{
		QuantifiersPerPraise: settings.QuantifiersPerPraise,
		AssignEvenly:         settings.AssignEvenly,
		PraisePerQuantifier:  settings.PraisePerQuantifier,
		DuplicateScorePct:    settings.DuplicateScorePct,
		AllowedScores:        settings.AllowedScores,
	}, nil
}

// ════════════════════════════════════════════════════════════
// 包内共享辅助 — 指派、结算、量化校验均经由这两个函数读取生效设置
// 与周期时间窗口
// ════════════════════════════════════════════════════════════

// resolvePeriodSettings 返回周期的生效设置：优先周期快照，缺失时回落全局设置
func resolvePeriodSettings(ctx context.Context, repo *repository.Repository, periodID string) (*model.PeriodSettings, error) {
	settings, err := repo.PeriodSettings.GetByPeriod(ctx, periodID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	global, err := repo.GlobalSettings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &model.PeriodSettings{
		PeriodID:             periodID,
		QuantifiersPerPraise: global.QuantifiersPerPraise,
		AssignEvenly:         global.AssignEvenly,
		PraisePerQuantifier:  global.PraisePerQuantifier,
		DuplicateScorePct:    global.DuplicateScorePct,
		AllowedScores:        global.AllowedScores,
	}, nil
}

// periodWindow 返回周期时间窗口 [start, end)。
// 隐式开始时间为上一周期的结束时间；首个周期从时间起点开始。
func periodWindow(ctx context.Context, repo *repository.Repository, period *model.Period) (time.Time, time.Time, error) {
	prev, err := repo.Period.GetPrevious(ctx, period.EndDate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, period.EndDate, nil
		}
		return time.Time{}, time.Time{}, err
	}
	return prev.EndDate, period.EndDate, nil
}

// normalizeAllowedScores 去重、升序、校验非负
func normalizeAllowedScores(scores []int) (model.IntArray, error) {
	seen := make(map[int]bool, len(scores))
	result := make(model.IntArray, 0, len(scores))
	for _, v := range scores {
		if v < 0 || seen[v] {
			return nil, ErrAllowedScoresInvalid
		}
		seen[v] = true
		result = append(result, v)
	}
	sort.Ints(result)
	return result, nil
}
