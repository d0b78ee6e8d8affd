package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/api/handler"
	"github.com/paeinovis/RETRHO-administrative/internal/api/middleware"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
	"github.com/paeinovis/RETRHO-administrative/pkg/jwt"
)

const (
	maxBodyBytes = 1 << 20

	// 表单回调与登录的限流窗口
	formRateLimit  = 30
	loginRateLimit = 10
	rateWindow     = time.Minute
)

// HealthCheck /health 依次执行的依赖探测
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Setup 初始化并返回 Gin 路由引擎
// limiter 为 nil 时不限流；gatherer 为 nil 时不暴露 /metrics
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	jwtMgr *jwt.Manager,
	limiter middleware.RateLimiter,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
	checks ...HealthCheck,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", healthHandler(checks))

	if cfg.Metrics.Enabled && gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// ── 日历订阅 ──
	r.GET("/calendar.ics", h.Calendar.Feed)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块
		v1.POST("/auth/login", middleware.RateLimit(limiter, loginRateLimit, rateWindow), h.Auth.Login)

		// 表单回调（无需认证）
		forms := v1.Group("")
		forms.Use(middleware.RateLimit(limiter, formRateLimit, rateWindow))
		{
			forms.POST("/submissions", h.Submission.Submit)
			forms.POST("/signups", h.Signup.Signup)
			forms.POST("/followups", h.Followup.Report)
		}

		// 只读查询
		v1.GET("/nights", h.Signup.ListNights)
		v1.GET("/nights/:date", h.Signup.GetNight)
		v1.GET("/observers", h.Followup.ListObservers)
		v1.GET("/observers/:name", h.Followup.GetObserver)
		v1.GET("/targets", h.Submission.ListTargets)

		// 需要管理员认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr), middleware.RoleAuth(service.RoleAdmin))
		{
			authorized.GET("/auth/me", h.Auth.Me)

			// 维护模块
			admin := authorized.Group("/admin")
			{
				admin.POST("/sweep", h.Admin.Sweep)
				admin.GET("/submissions/archive", h.Admin.ListArchive)
				admin.POST("/submissions/:id/consolidate", h.Admin.Consolidate)
				admin.POST("/consolidate-pending", h.Admin.ConsolidatePending)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/schedule", h.Export.ExportSchedule)
				export.GET("/targets", h.Export.ExportTargets)
				export.GET("/history", h.Export.ExportHistory)
			}
		}
	}

	return r
}

func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "ok", http.StatusOK
		results := make(gin.H, len(checks))
		for _, hc := range checks {
			if err := hc.Ping(ctx); err != nil {
				results[hc.Name] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			results[hc.Name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	}
}
