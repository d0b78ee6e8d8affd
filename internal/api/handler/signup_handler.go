package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
	"github.com/paeinovis/RETRHO-administrative/pkg/response"
)

// SignupHandler 观测报名与观测夜 HTTP 处理器
type SignupHandler struct {
	signupSvc service.SignupService
}

// NewSignupHandler 创建 SignupHandler
func NewSignupHandler(signupSvc service.SignupService) *SignupHandler {
	return &SignupHandler{signupSvc: signupSvc}
}

// Signup 观测报名表单回调
// POST /api/v1/signups
func (h *SignupHandler) Signup(c *gin.Context) {
	var req dto.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	out, err := h.signupSvc.Signup(c.Request.Context(), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	resp := &dto.SignupResponse{Status: string(out.Status), NewNight: out.NewNight}
	if out.Rejection != nil {
		resp.Kind = string(out.Rejection.Kind)
	}
	if out.Night != nil {
		resp.Night = h.signupSvc.ToNightResponse(out.Night)
	}

	if out.Status == service.SignupAccepted {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// ListNights 观测夜列表，默认日期升序
// GET /api/v1/nights?order=desc
func (h *SignupHandler) ListNights(c *gin.Context) {
	nights, err := h.signupSvc.ListNights(c.Request.Context(), descOrder(c))
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, nights)
}

// GetNight 单个观测夜
// GET /api/v1/nights/:date
func (h *SignupHandler) GetNight(c *gin.Context) {
	night, err := h.signupSvc.GetNight(c.Request.Context(), c.Param("date"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, night)
}

func (h *SignupHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTier):
		response.BadRequest(c, 13001, "报名档位必须为 senior 或 junior")
	case errors.Is(err, service.ErrInvalidNightDate):
		response.BadRequest(c, 13002, "观测日期格式无效")
	case errors.Is(err, service.ErrNightNotFound):
		response.NotFound(c, 13003, "观测夜不存在")
	default:
		response.InternalError(c)
	}
}
