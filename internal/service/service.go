package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/metrics"
	"github.com/paeinovis/RETRHO-administrative/internal/notify"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
	"github.com/paeinovis/RETRHO-administrative/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth          AuthService
	Signup        SignupService
	Consolidation ConsolidationService
	Attendance    AttendanceService
	Calendar      CalendarService
	Export        ExportService
}

// Collaborators 外部协作方，nil 字段使用默认实现
type Collaborators struct {
	Locker     Locker
	Dispatcher notify.Dispatcher
	Calendar   CalendarClient
	Fetcher    WorkbookFetcher
	Metrics    metrics.Recorder
	Clock      Clock
}

func (c Collaborators) withDefaults(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) Collaborators {
	if c.Metrics == nil {
		c.Metrics = metrics.Nop{}
	}
	if c.Locker == nil {
		c.Locker = NewLocalLocker()
	}
	if c.Dispatcher == nil {
		c.Dispatcher = notify.New(&cfg.Mail, repo.Notification, c.Metrics, logger)
	}
	if c.Fetcher == nil {
		c.Fetcher = NewHTTPFetcher(&cfg.Intake)
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	collab Collaborators,
	jwtMgr *jwt.Manager,
	logger *zap.Logger,
) *Service {
	collab = collab.withDefaults(cfg, repo, logger)
	renderer := notify.NewRenderer(cfg.Links, cfg.Schedule.MaxJunior)
	calendar := NewCalendarService(cfg, repo, collab.Calendar, logger)

	return &Service{
		Auth:          NewAuthService(cfg, jwtMgr, logger),
		Signup:        NewSignupService(cfg, repo, calendar, renderer, collab, logger),
		Consolidation: NewConsolidationService(cfg, repo, renderer, collab, logger),
		Attendance:    NewAttendanceService(repo, collab.Locker, collab.Metrics, logger),
		Calendar:      calendar,
		Export:        NewExportService(cfg, repo, logger),
	}
}
