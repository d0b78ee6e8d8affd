package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/paeinovis/RETRHO-administrative/internal/service"
	"github.com/paeinovis/RETRHO-administrative/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSchedule 导出观测排班表
// GET /api/v1/export/schedule?order=desc
func (h *ExportHandler) ExportSchedule(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportSchedule(c.Request.Context(), descOrder(c))
	h.write(c, buf, filename, err)
}

// ExportTargets 导出目标主表
// GET /api/v1/export/targets
func (h *ExportHandler) ExportTargets(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportTargets(c.Request.Context())
	h.write(c, buf, filename, err)
}

// ExportHistory 导出出勤历史
// GET /api/v1/export/history
func (h *ExportHandler) ExportHistory(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportHistory(c.Request.Context())
	h.write(c, buf, filename, err)
}

func (h *ExportHandler) write(c *gin.Context, buf *bytes.Buffer, filename string, err error) {
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoData):
		response.NotFound(c, 16101, "暂无可导出的数据")
	default:
		response.InternalError(c)
	}
}
