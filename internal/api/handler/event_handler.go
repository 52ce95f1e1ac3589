package handler

import (
	"github.com/gin-gonic/gin"

	"praise/backend/internal/dto"
	"praise/backend/internal/service"
	"praise/backend/pkg/response"
)

// EventHandler 事件日志模块 HTTP 处理器
type EventHandler struct {
	eventSvc service.EventService
}

// NewEventHandler 创建 EventHandler
func NewEventHandler(eventSvc service.EventService) *EventHandler {
	return &EventHandler{eventSvc: eventSvc}
}

// ListPeriodEvents 周期事件日志（倒序分页）
// GET /api/v1/periods/:id/events
func (h *EventHandler) ListPeriodEvents(c *gin.Context) {
	periodID := c.Param("id")
	if periodID == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	events, total, err := h.eventSvc.ListByPeriod(c.Request.Context(), periodID, &page)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKPage(c, events, total, page.GetPage(), page.GetPageSize())
}
