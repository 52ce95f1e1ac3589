package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"praise/backend/internal/service"
	"praise/backend/pkg/response"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeICS  = "text/calendar; charset=utf-8"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportPeriod 导出已关闭周期的结算榜单为 Excel
// GET /api/v1/export/periods/:id
func (h *ExportHandler) ExportPeriod(c *gin.Context) {
	periodID := c.Param("id")
	if periodID == "" {
		response.BadRequest(c, 10001, "周期ID不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportPeriod(c.Request.Context(), periodID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeDownload(c, contentTypeXLSX, filename, buf.Bytes())
}

// ExportCalendar 导出全部周期窗口为 ICS 日历
// GET /api/v1/export/calendar
func (h *ExportHandler) ExportCalendar(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportPeriodCalendar(c.Request.Context())
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeDownload(c, contentTypeICS, filename, buf.Bytes())
}

// writeDownload 设置文件下载响应头并输出内容
func writeDownload(c *gin.Context, contentType, filename string, data []byte) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, contentType, data)
}

// handleExportError 统一处理导出模块业务错误
func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPeriodNotFound):
		response.NotFound(c, 13001, "周期不存在")
	case errors.Is(err, service.ErrExportPeriodNotClosed):
		response.Conflict(c, 17001, "周期未关闭，分值尚未冻结，不可导出")
	case errors.Is(err, service.ErrExportNoPraise):
		response.NotFound(c, 17002, "周期内无赞扬可导出")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
