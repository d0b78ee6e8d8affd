package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paeinovis/RETRHO-administrative/internal/service"
	"github.com/paeinovis/RETRHO-administrative/pkg/response"
)

// CalendarHandler 观测日历订阅
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// Feed iCalendar 订阅源
// GET /calendar.ics
func (h *CalendarHandler) Feed(c *gin.Context) {
	feed, err := h.calendarSvc.Feed(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}
