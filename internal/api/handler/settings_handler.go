package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"praise/backend/internal/dto"
	"praise/backend/internal/service"
	"praise/backend/pkg/response"
)

// SettingsHandler 量化设置模块 HTTP 处理器
type SettingsHandler struct {
	settingsSvc service.SettingsService
}

// NewSettingsHandler 创建 SettingsHandler
func NewSettingsHandler(settingsSvc service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsSvc: settingsSvc}
}

// GetGlobalSettings 获取全局量化设置
// GET /api/v1/settings
func (h *SettingsHandler) GetGlobalSettings(c *gin.Context) {
	settings, err := h.settingsSvc.GetGlobal(c.Request.Context())
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// UpdateGlobalSettings 更新全局量化设置
// PUT /api/v1/settings
func (h *SettingsHandler) UpdateGlobalSettings(c *gin.Context) {
	var req dto.UpdateGlobalSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.settingsSvc.UpdateGlobal(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// GetPeriodSettings 获取周期量化设置（无快照时回落到全局）
// GET /api/v1/periods/:id/settings
func (h *SettingsHandler) GetPeriodSettings(c *gin.Context) {
	periodID := c.Param("id")
	if periodID == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	settings, err := h.settingsSvc.GetForPeriod(c.Request.Context(), periodID)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// UpdatePeriodSettings 更新周期量化设置（仅开放状态）
// PUT /api/v1/periods/:id/settings
func (h *SettingsHandler) UpdatePeriodSettings(c *gin.Context) {
	periodID := c.Param("id")
	if periodID == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	var req dto.UpdateGlobalSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	settings, err := h.settingsSvc.UpdateForPeriod(c.Request.Context(), periodID, &req, callerID)
	if err != nil {
		h.handleSettingsError(c, err)
		return
	}

	response.OK(c, settings)
}

// handleSettingsError 统一处理设置模块业务错误
func (h *SettingsHandler) handleSettingsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 13001, "周期不存在")
	case errors.Is(err, service.ErrSettingsPeriodNotOpen):
		response.Conflict(c, 16001, "周期设置仅在周期开放状态下可修改")
	case errors.Is(err, service.ErrAllowedScoresInvalid):
		response.BadRequest(c, 16002, "允许分值白名单必须为非负且不重复")
	default:
		response.InternalError(c)
	}
}
