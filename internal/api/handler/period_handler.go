package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"praise/backend/internal/dto"
	"praise/backend/internal/service"
	pkgerrors "praise/backend/pkg/errors"
	"praise/backend/pkg/response"
)

// PeriodHandler 周期模块 HTTP 处理器，含量化员指派相关操作
type PeriodHandler struct {
	periodSvc service.PeriodService
	assignSvc service.AssignService
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService, assignSvc service.AssignService) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc, assignSvc: assignSvc}
}

// ListPeriods 获取周期列表
// GET /api/v1/periods
func (h *PeriodHandler) ListPeriods(c *gin.Context) {
	periods, err := h.periodSvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OK(c, gin.H{"list": periods})
}

// GetPeriod 获取周期详情
// GET /api/v1/periods/:id
func (h *PeriodHandler) GetPeriod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	period, err := h.periodSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// CreatePeriod 创建周期
// POST /api/v1/periods
func (h *PeriodHandler) CreatePeriod(c *gin.Context) {
	var req dto.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.Created(c, period)
}

// UpdatePeriod 更新周期（仅开放状态）
// PUT /api/v1/periods/:id
func (h *PeriodHandler) UpdatePeriod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	var req dto.UpdatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// StartQuantification 开启量化阶段：生成全部指派并冻结设置
// POST /api/v1/periods/:id/start-quantification
func (h *PeriodHandler) StartQuantification(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.periodSvc.StartQuantification(c.Request.Context(), id, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, result)
}

// ClosePeriod 关闭周期：最终结算并冻结分值
// POST /api/v1/periods/:id/close
func (h *PeriodHandler) ClosePeriod(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	period, err := h.periodSvc.Close(c.Request.Context(), id, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, period)
}

// VerifyPool 指派前预检：量化员池是否足以覆盖周期需求
// GET /api/v1/periods/:id/verify-pool
func (h *PeriodHandler) VerifyPool(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	result, err := h.assignSvc.VerifyPool(c.Request.Context(), id)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, result)
}

// ReplaceQuantifier 替换周期内某量化员的全部指派
// POST /api/v1/periods/:id/replace-quantifier
func (h *PeriodHandler) ReplaceQuantifier(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	var req dto.ReplaceQuantifierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.assignSvc.ReplaceQuantifier(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handlePeriodError(c, err)
		return
	}

	response.OK(c, result)
}

// handlePeriodError 统一处理周期模块业务错误
func (h *PeriodHandler) handlePeriodError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 13001, "周期不存在")
	case errors.Is(err, service.ErrPeriodEndDateInvalid):
		response.BadRequest(c, 13002, "周期结束时间必须晚于最近一个周期")
	case errors.Is(err, service.ErrPeriodEndDateConflict):
		response.BadRequest(c, 13003, "周期结束时间与相邻周期冲突")
	case errors.Is(err, service.ErrPeriodShrinkOrphans):
		response.BadRequest(c, 13004, "缩短结束时间会使已有赞扬脱离所有周期")
	case errors.Is(err, service.ErrPeriodNotOpen):
		response.Conflict(c, 13005, "周期非开放状态，不可执行此操作")
	case errors.Is(err, service.ErrPeriodNotQuantifying):
		response.Conflict(c, 13006, "周期非量化状态，不可执行此操作")
	case errors.Is(err, service.ErrInvalidStateTransition):
		response.Conflict(c, 13007, "非法的周期状态转移")
	case errors.Is(err, service.ErrNoQuantifiers):
		response.BadRequest(c, 13008, "量化员池为空")
	case errors.Is(err, service.ErrQuantifierNotInPool):
		response.BadRequest(c, 13009, "目标用户不是量化员")
	case errors.Is(err, service.ErrQuantifierUnassigned):
		response.BadRequest(c, 13010, "该量化员在本周期没有指派记录")
	case errors.Is(err, service.ErrSameQuantifier):
		response.BadRequest(c, 13011, "新旧量化员不能相同")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10004, "数据已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
