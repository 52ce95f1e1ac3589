package service

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praise/backend/internal/dto"
	"praise/backend/internal/model"
	"praise/backend/internal/repository"
)

// ── 赞扬模块业务错误 ──

var (
	ErrPraiseNotFound   = errors.New("赞扬不存在")
	ErrSelfPraise       = errors.New("不能赞扬自己")
	ErrReceiverNotFound = errors.New("接收者不存在")
)

// PraiseService 赞扬业务接口
type PraiseService interface {
	Create(ctx context.Context, req *dto.CreatePraiseRequest, giverID string) (*dto.PraiseResponse, error)
	GetByID(ctx context.Context, id string) (*dto.PraiseDetailResponse, error)
	// ListByPeriod 周期内赞扬：已关闭周期按结算分值降序，其余按创建顺序
	ListByPeriod(ctx context.Context, periodID string) ([]dto.PraiseResponse, error)
	ListByReceiver(ctx context.Context, receiverID string, req *dto.PaginationRequest) ([]dto.PraiseResponse, int64, error)
	// ReceiverScores 周期内按接收者汇总的得分榜（降序）
	ReceiverScores(ctx context.Context, periodID string) ([]dto.ReceiverScoreResponse, error)
}

type praiseService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPraiseService 创建 PraiseService 实例
func NewPraiseService(repo *repository.Repository, logger *zap.Logger) PraiseService {
	return &praiseService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *praiseService) Create(ctx context.Context, req *dto.CreatePraiseRequest, giverID string) (*dto.PraiseResponse, error) {
	if req.ReceiverID == giverID {
		return nil, ErrSelfPraise
	}

	if _, err := s.repo.User.GetByID(ctx, req.ReceiverID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReceiverNotFound
		}
		s.logger.Error("查询接收者失败", zap.Error(err))
		return nil, err
	}

	praise := &model.PraiseItem{
		GiverID:    giverID,
		ReceiverID: req.ReceiverID,
		Reason:     req.Reason,
		SourceID:   req.SourceID,
	}
	praise.CreatedBy = &giverID
	praise.UpdatedBy = &giverID

	if err := s.repo.Praise.Create(ctx, praise); err != nil {
		s.logger.Error("创建赞扬失败", zap.Error(err))
		return nil, err
	}

	// 回读以携带关联用户
	created, err := s.repo.Praise.GetByID(ctx, praise.PraiseID)
	if err != nil {
		s.logger.Error("回读赞扬失败", zap.Error(err))
		return nil, err
	}
	return toPraiseResponse(created), nil
}

// ────────────────────── GetByID ──────────────────────

func (s *praiseService) GetByID(ctx context.Context, id string) (*dto.PraiseDetailResponse, error) {
	praise, err := s.repo.Praise.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPraiseNotFound
		}
		s.logger.Error("查询赞扬失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	quants, err := s.repo.Quantification.ListByPraise(ctx, id)
	if err != nil {
		s.logger.Error("查询量化记录失败", zap.Error(err))
		return nil, err
	}

	detail := &dto.PraiseDetailResponse{
		PraiseResponse:  *toPraiseResponse(praise),
		Quantifications: make([]dto.QuantificationResponse, 0, len(quants)),
	}
	for i := range quants {
		detail.Quantifications = append(detail.Quantifications, toQuantificationResponse(&quants[i]))
	}
	return detail, nil
}

// ────────────────────── ListByPeriod ──────────────────────

func (s *praiseService) ListByPeriod(ctx context.Context, periodID string) ([]dto.PraiseResponse, error) {
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

	if period.Status == model.PeriodStatusClosed {
		sort.SliceStable(praises, func(i, j int) bool {
			return praises[i].ScoreRealized > praises[j].ScoreRealized
		})
	}

	result := make([]dto.PraiseResponse, 0, len(praises))
	for i := range praises {
		result = append(result, *toPraiseResponse(&praises[i]))
	}
	return result, nil
}

// ────────────────────── ListByReceiver ──────────────────────

func (s *praiseService) ListByReceiver(ctx context.Context, receiverID string, req *dto.PaginationRequest) ([]dto.PraiseResponse, int64, error) {
	praises, total, err := s.repo.Praise.ListByReceiver(ctx, receiverID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询接收者赞扬失败", zap.String("receiver_id", receiverID), zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.PraiseResponse, 0, len(praises))
	for i := range praises {
		result = append(result, *toPraiseResponse(&praises[i]))
	}
	return result, total, nil
}

// ────────────────────── ReceiverScores ──────────────────────

func (s *praiseService) ReceiverScores(ctx context.Context, periodID string) ([]dto.ReceiverScoreResponse, error) {
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

	type agg struct {
		name  string
		count int
		total float64
	}
	byReceiver := make(map[string]*agg)
	ids := make([]string, 0, len(praises))
	for i := range praises {
		ids = append(ids, praises[i].PraiseID)
	}
	// 携带接收者姓名
	detailed, err := s.repo.Praise.GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("查询赞扬详情失败", zap.Error(err))
		return nil, err
	}
	for i := range detailed {
		p := &detailed[i]
		a := byReceiver[p.ReceiverID]
		if a == nil {
			a = &agg{}
			if p.Receiver != nil {
				a.name = p.Receiver.Name
			}
			byReceiver[p.ReceiverID] = a
		}
		a.count++
		a.total += p.ScoreRealized
	}

	result := make([]dto.ReceiverScoreResponse, 0, len(byReceiver))
	for id, a := range byReceiver {
		result = append(result, dto.ReceiverScoreResponse{
			ReceiverID:   id,
			ReceiverName: a.name,
			PraiseCount:  a.count,
			TotalScore:   a.total,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].TotalScore != result[j].TotalScore {
			return result[i].TotalScore > result[j].TotalScore
		}
		return result[i].ReceiverID < result[j].ReceiverID
	})
	return result, nil
}

// toPraiseResponse 赞扬响应转换
func toPraiseResponse(p *model.PraiseItem) *dto.PraiseResponse {
	resp := &dto.PraiseResponse{
		ID:            p.PraiseID,
		Reason:        p.Reason,
		SourceID:      p.SourceID,
		ScoreRealized: p.ScoreRealized,
		CreatedAt:     p.CreatedAt.Format(timeLayout),
	}
	if p.Giver != nil {
		resp.Giver = toUserResponse(p.Giver)
	}
	if p.Receiver != nil {
		resp.Receiver = toUserResponse(p.Receiver)
	}
	return resp
}
