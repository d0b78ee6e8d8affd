package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
	pkgerrors "github.com/paeinovis/RETRHO-administrative/pkg/errors"
	"github.com/paeinovis/RETRHO-administrative/pkg/response"
)

// SubmissionHandler 目标提交 HTTP 处理器
type SubmissionHandler struct {
	consolidationSvc service.ConsolidationService
}

// NewSubmissionHandler 创建 SubmissionHandler
func NewSubmissionHandler(consolidationSvc service.ConsolidationService) *SubmissionHandler {
	return &SubmissionHandler{consolidationSvc: consolidationSvc}
}

// Submit 目标提交表单回调：受理并立即整合
// POST /api/v1/submissions
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req dto.SubmissionRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.consolidationSvc.Submit(c.Request.Context(), &req)
	if err != nil {
		handleConsolidationError(c, err)
		return
	}

	resp := toSubmissionResponse(out)
	if out.Status == model.SubmissionStored {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// ListTargets 目标主表
// GET /api/v1/targets?page=1&page_size=50
func (h *SubmissionHandler) ListTargets(c *gin.Context) {
	page, size := pageParams(c)
	list, total, err := h.consolidationSvc.ListTargets(c.Request.Context(), page, size)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, page, size)
}

func toSubmissionResponse(out *service.ConsolidationOutcome) *dto.SubmissionResponse {
	resp := &dto.SubmissionResponse{
		SubmissionID:  out.SubmissionID,
		Status:        out.Status,
		ReferenceCode: string(out.Code),
		Targets:       out.Targets,
	}
	if out.Rejection != nil {
		resp.Kind = string(out.Rejection.Kind)
		resp.Reasons = out.Rejection.Reasons
		resp.Detail = out.Rejection.Detail()
	}
	return resp
}

func handleConsolidationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSubmittedAt):
		response.BadRequest(c, 12001, "提交时间格式无效，应为 RFC3339")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 12002, "提交记录不存在")
	case errors.Is(err, service.ErrSubmissionProcessed):
		response.Conflict(c, 12003, "提交已处理")
	case errors.Is(err, pkgerrors.ErrLockNotAcquired):
		response.ServiceUnavailable(c, 12004, "提交处理繁忙，请稍后重试")
	default:
		response.InternalError(c)
	}
}
