package service

import (
	"go.uber.org/zap"

	"praise/backend/config"
	"praise/backend/internal/repository"
	"praise/backend/pkg/jwt"
	"praise/backend/pkg/redis"
)

// 响应中时间字段的统一格式
const timeLayout = "2006-01-02T15:04:05Z"

// Service 所有 Service 的聚合入口
type Service struct {
	Auth           AuthService
	User           UserService
	Settings       SettingsService
	Period         PeriodService
	Praise         PraiseService
	Assign         AssignService
	Score          ScoreService
	Quantification QuantificationService
	Export         ExportService
	Event          EventService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	events := NewEventService(repo, logger)
	score := NewScoreService(repo, logger)

	return &Service{
		Auth:           NewAuthService(cfg, repo, jwtMgr, rdb, logger),
		User:           NewUserService(repo, logger),
		Settings:       NewSettingsService(repo, logger),
		Period:         NewPeriodService(repo, score, events, logger),
		Praise:         NewPraiseService(repo, logger),
		Assign:         NewAssignService(repo, score, events, logger),
		Score:          score,
		Quantification: NewQuantificationService(repo, score, events, logger),
		Export:         NewExportService(repo, logger),
		Event:          events,
	}
}
