package handler

import "github.com/paeinovis/RETRHO-administrative/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Submission *SubmissionHandler
	Signup     *SignupHandler
	Followup   *FollowupHandler
	Admin      *AdminHandler
	Export     *ExportHandler
	Calendar   *CalendarHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:       NewAuthHandler(svc.Auth),
		Submission: NewSubmissionHandler(svc.Consolidation),
		Signup:     NewSignupHandler(svc.Signup),
		Followup:   NewFollowupHandler(svc.Attendance),
		Admin:      NewAdminHandler(svc.Consolidation),
		Export:     NewExportHandler(svc.Export),
		Calendar:   NewCalendarHandler(svc.Calendar),
	}
}
