package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
	"github.com/paeinovis/RETRHO-administrative/pkg/response"
)

// AdminHandler 管理端维护操作
type AdminHandler struct {
	consolidationSvc service.ConsolidationService
}

// NewAdminHandler 创建 AdminHandler
func NewAdminHandler(consolidationSvc service.ConsolidationService) *AdminHandler {
	return &AdminHandler{consolidationSvc: consolidationSvc}
}

// Sweep 将已过窗口的目标移入过期表
// POST /api/v1/admin/sweep?today=2026-10-19
func (h *AdminHandler) Sweep(c *gin.Context) {
	today := h.consolidationSvc.Today()
	if raw := c.Query("today"); raw != "" {
		d, err := service.ParseDate(raw)
		if err != nil {
			response.BadRequest(c, 15001, "today 日期格式无效")
			return
		}
		today = d
	}

	moved, err := h.consolidationSvc.SweepExpired(c.Request.Context(), today)
	if err != nil {
		handleConsolidationError(c, err)
		return
	}
	response.OK(c, dto.SweepResponse{Moved: moved, Today: today.Format("2006-01-02")})
}

// ListArchive 提交归档
// GET /api/v1/admin/submissions/archive?page=1&page_size=50
func (h *AdminHandler) ListArchive(c *gin.Context) {
	page, size := pageParams(c)
	list, total, err := h.consolidationSvc.ListArchive(c.Request.Context(), page, size)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, page, size)
}

// Consolidate 重新整合一条 pending 提交
// POST /api/v1/admin/submissions/:id/consolidate
func (h *AdminHandler) Consolidate(c *gin.Context) {
	out, err := h.consolidationSvc.Consolidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleConsolidationError(c, err)
		return
	}
	response.OK(c, toSubmissionResponse(out))
}

// ConsolidatePending 整合全部 pending 提交
// POST /api/v1/admin/consolidate-pending
func (h *AdminHandler) ConsolidatePending(c *gin.Context) {
	outs, err := h.consolidationSvc.ConsolidatePending(c.Request.Context())
	if err != nil {
		handleConsolidationError(c, err)
		return
	}
	list := make([]*dto.SubmissionResponse, 0, len(outs))
	for _, out := range outs {
		list = append(list, toSubmissionResponse(out))
	}
	response.OK(c, list)
}
