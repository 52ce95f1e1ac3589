package service

import (
	"context"

	"go.uber.org/zap"

	"praise/backend/internal/dto"
	"praise/backend/internal/model"
	"praise/backend/internal/repository"
)

// EventService 审计事件业务接口。
// Log 为 fire-and-forget：写入失败只记日志，绝不让调用方回滚
type EventService interface {
	Log(ctx context.Context, kind, message string, periodID, praiseID, actorID *string)
	ListByPeriod(ctx context.Context, periodID string, req *dto.PaginationRequest) ([]dto.EventLogResponse, int64, error)
}

type eventService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewEventService 创建 EventService 实例
func NewEventService(repo *repository.Repository, logger *zap.Logger) EventService {
	return &eventService{repo: repo, logger: logger}
}

func (s *eventService) Log(ctx context.Context, kind, message string, periodID, praiseID, actorID *string) {
	event := &model.EventLog{
		Kind:     kind,
		Message:  message,
		PeriodID: periodID,
		PraiseID: praiseID,
		ActorID:  actorID,
	}
	if err := s.repo.EventLog.Create(ctx, event); err != nil {
		s.logger.Error("写入审计事件失败",
			zap.String("kind", kind), zap.Error(err))
	}
}

func (s *eventService) ListByPeriod(ctx context.Context, periodID string, req *dto.PaginationRequest) ([]dto.EventLogResponse, int64, error) {
	events, total, err := s.repo.EventLog.ListByPeriod(ctx, periodID, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询审计事件失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.EventLogResponse, 0, len(events))
	for i := range events {
		e := &events[i]
		resp := dto.EventLogResponse{
			ID:        e.EventID,
			Kind:      e.Kind,
			Message:   e.Message,
			CreatedAt: e.CreatedAt.Format(timeLayout),
		}
		if e.PeriodID != nil {
			resp.PeriodID = *e.PeriodID
		}
		if e.ActorID != nil {
			resp.ActorID = *e.ActorID
		}
		result = append(result, resp)
	}
	return result, total, nil
}
