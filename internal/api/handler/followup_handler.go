package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
	pkgerrors "github.com/paeinovis/RETRHO-administrative/pkg/errors"
	"github.com/paeinovis/RETRHO-administrative/pkg/response"
)

// FollowupHandler 观测回访与出勤 HTTP 处理器
type FollowupHandler struct {
	attendanceSvc service.AttendanceService
}

// NewFollowupHandler 创建 FollowupHandler
func NewFollowupHandler(attendanceSvc service.AttendanceService) *FollowupHandler {
	return &FollowupHandler{attendanceSvc: attendanceSvc}
}

// Report 回访表单回调
// POST /api/v1/followups
func (h *FollowupHandler) Report(c *gin.Context) {
	var req dto.FollowupRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.attendanceSvc.ReportAttendance(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// ListObservers 观测员出勤汇总
// GET /api/v1/observers
func (h *FollowupHandler) ListObservers(c *gin.Context) {
	list, err := h.attendanceSvc.ListObservers(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, list)
}

// GetObserver 单个观测员
// GET /api/v1/observers/:name
func (h *FollowupHandler) GetObserver(c *gin.Context) {
	obs, err := h.attendanceSvc.GetObserver(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, obs)
}

func (h *FollowupHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAttendanceStatus):
		response.BadRequest(c, 14001, "出勤状态无效")
	case errors.Is(err, service.ErrInvalidNightDate):
		response.BadRequest(c, 14002, "观测日期格式无效")
	case errors.Is(err, service.ErrObserverNotFound):
		response.NotFound(c, 14003, "观测员不存在")
	case errors.Is(err, pkgerrors.ErrLockNotAcquired):
		response.ServiceUnavailable(c, 14004, "出勤记录繁忙，请稍后重试")
	default:
		response.InternalError(c)
	}
}
