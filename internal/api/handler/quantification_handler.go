package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"praise/backend/internal/dto"
	"praise/backend/internal/service"
	pkgerrors "praise/backend/pkg/errors"
	"praise/backend/pkg/response"
)

// QuantificationHandler 量化模块 HTTP 处理器
type QuantificationHandler struct {
	quantSvc service.QuantificationService
}

// NewQuantificationHandler 创建 QuantificationHandler
func NewQuantificationHandler(quantSvc service.QuantificationService) *QuantificationHandler {
	return &QuantificationHandler{quantSvc: quantSvc}
}

// Quantify 提交或修改一次量化判定
// PUT /api/v1/praises/:id/quantify
func (h *QuantificationHandler) Quantify(c *gin.Context) {
	praiseID := c.Param("id")
	if praiseID == "" {
		response.BadRequest(c, 10001, "赞扬ID不能为空")
		return
	}

	var req dto.QuantifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	quantifierID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.quantSvc.Quantify(c.Request.Context(), praiseID, quantifierID, &req)
	if err != nil {
		h.handleQuantError(c, err)
		return
	}

	response.OK(c, result)
}

// ListMyTasks 当前量化员在指定周期的任务列表
// GET /api/v1/periods/:id/tasks
func (h *QuantificationHandler) ListMyTasks(c *gin.Context) {
	periodID := c.Param("id")
	if periodID == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	quantifierID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	tasks, err := h.quantSvc.ListTasks(c.Request.Context(), periodID, quantifierID)
	if err != nil {
		h.handleQuantError(c, err)
		return
	}

	response.OK(c, gin.H{"list": tasks})
}

// handleQuantError 统一处理量化模块业务错误
func (h *QuantificationHandler) handleQuantError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPraiseNotFound):
		response.NotFound(c, 14001, "赞扬不存在")
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 13001, "周期不存在")
	case errors.Is(err, service.ErrPeriodNotQuantifying):
		response.Conflict(c, 13006, "周期非量化状态，不可执行此操作")
	case errors.Is(err, service.ErrQuantNotAssigned):
		response.Forbidden(c, 15001, "该赞扬未指派给当前量化员")
	case errors.Is(err, service.ErrInvalidJudgement):
		response.BadRequest(c, 15002, "评分、驳回、标记重复必须且只能给出一项")
	case errors.Is(err, service.ErrScoreNotAllowed):
		response.BadRequest(c, 15003, "分值不在本周期允许的白名单内")
	case errors.Is(err, service.ErrSelfDuplicate):
		response.BadRequest(c, 15004, "不能将赞扬标记为自身的重复")
	case errors.Is(err, service.ErrDuplicateTargetMissing):
		response.BadRequest(c, 15005, "重复目标不存在或不在同一周期")
	case errors.Is(err, service.ErrDuplicateOfDuplicate):
		response.BadRequest(c, 15006, "重复目标本身已被标记为重复")
	case errors.Is(err, service.ErrTargetOfDuplicates):
		response.BadRequest(c, 15007, "该赞扬已被标记为其他赞扬的重复原件")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10004, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
