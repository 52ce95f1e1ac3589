package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"praise/backend/internal/dto"
	"praise/backend/internal/service"
	"praise/backend/pkg/response"
)

// PraiseHandler 赞扬模块 HTTP 处理器
type PraiseHandler struct {
	praiseSvc service.PraiseService
}

// NewPraiseHandler 创建 PraiseHandler
func NewPraiseHandler(praiseSvc service.PraiseService) *PraiseHandler {
	return &PraiseHandler{praiseSvc: praiseSvc}
}

// CreatePraise 创建赞扬，给予者为当前登录用户
// POST /api/v1/praises
func (h *PraiseHandler) CreatePraise(c *gin.Context) {
	var req dto.CreatePraiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	giverID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	praise, err := h.praiseSvc.Create(c.Request.Context(), &req, giverID)
	if err != nil {
		h.handlePraiseError(c, err)
		return
	}

	response.Created(c, praise)
}

// GetPraise 获取赞扬详情（含量化记录）
// GET /api/v1/praises/:id
func (h *PraiseHandler) GetPraise(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "赞扬ID不能为空")
		return
	}

	praise, err := h.praiseSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handlePraiseError(c, err)
		return
	}

	response.OK(c, praise)
}

// ListPeriodPraises 周期内赞扬列表
// 已关闭周期按结算分值降序，其余按创建顺序
// GET /api/v1/periods/:id/praises
func (h *PraiseHandler) ListPeriodPraises(c *gin.Context) {
	periodID := c.Param("id")
	if periodID == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	praises, err := h.praiseSvc.ListByPeriod(c.Request.Context(), periodID)
	if err != nil {
		h.handlePraiseError(c, err)
		return
	}

	response.OK(c, gin.H{"list": praises})
}

// ListMyPraises 当前用户收到的赞扬
// GET /api/v1/praises/received
func (h *PraiseHandler) ListMyPraises(c *gin.Context) {
	var page dto.PaginationRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	praises, total, err := h.praiseSvc.ListByReceiver(c.Request.Context(), userID, &page)
	if err != nil {
		h.handlePraiseError(c, err)
		return
	}

	response.OKPage(c, praises, total, page.GetPage(), page.GetPageSize())
}

// GetReceiverScores 周期内按接收者汇总的得分榜
// GET /api/v1/periods/:id/scores
func (h *PraiseHandler) GetReceiverScores(c *gin.Context) {
	periodID := c.Param("id")
	if periodID == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	scores, err := h.praiseSvc.ReceiverScores(c.Request.Context(), periodID)
	if err != nil {
		h.handlePraiseError(c, err)
		return
	}

	response.OK(c, gin.H{"list": scores})
}

// handlePraiseError 统一处理赞扬模块业务错误
func (h *PraiseHandler) handlePraiseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPraiseNotFound):
		response.NotFound(c, 14001, "赞扬不存在")
	case errors.Is(err, service.ErrSelfPraise):
		response.BadRequest(c, 14002, "不能赞扬自己")
	case errors.Is(err, service.ErrReceiverNotFound):
		response.BadRequest(c, 14003, "接收者不存在")
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 13001, "周期不存在")
	default:
		response.InternalError(c)
	}
}
