package handler

import "praise/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth           *AuthHandler
	User           *UserHandler
	Period         *PeriodHandler
	Praise         *PraiseHandler
	Quantification *QuantificationHandler
	Settings       *SettingsHandler
	Export         *ExportHandler
	Event          *EventHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:           NewAuthHandler(svc.Auth),
		User:           NewUserHandler(svc.User),
		Period:         NewPeriodHandler(svc.Period, svc.Assign),
		Praise:         NewPraiseHandler(svc.Praise),
		Quantification: NewQuantificationHandler(svc.Quantification),
		Settings:       NewSettingsHandler(svc.Settings),
		Export:         NewExportHandler(svc.Export),
		Event:          NewEventHandler(svc.Event),
	}
}
