package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/api/handler"
	"github.com/paeinovis/RETRHO-administrative/internal/api/middleware"
	"github.com/paeinovis/RETRHO-administrative/internal/api/router"
	"github.com/paeinovis/RETRHO-administrative/internal/jobs"
	"github.com/paeinovis/RETRHO-administrative/internal/metrics"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
	"github.com/paeinovis/RETRHO-administrative/pkg/database"
	"github.com/paeinovis/RETRHO-administrative/pkg/jwt"
	"github.com/paeinovis/RETRHO-administrative/pkg/redis"
)

// Options 组装时的可选项
type Options struct {
	// Migrate 为 true 时启动即执行数据库迁移
	Migrate bool
	// Fetcher 覆盖默认的 HTTP 工作簿下载器（命令行读取本地文件时使用）
	Fetcher service.WorkbookFetcher
}

// App 进程内的全部依赖
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client // 未配置或连接失败时为 nil
	Registry *prometheus.Registry
	JWT      *jwt.Manager
	Repo     *repository.Repository
	Service  *service.Service
}

// New 依赖注入: DB → Redis → Metrics → Repository → Service
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	logger.Info("数据库连接成功")

	a := &App{Config: cfg, Logger: logger, DB: db}

	if opts.Migrate {
		sqlDB, err := db.DB()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			a.Close()
			return nil, fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	// Redis 可选：未配置或连接失败时使用进程内锁，且不限流
	var locker service.Locker
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，降级为进程内锁，多实例部署时写入不再互斥", zap.Error(err))
		} else {
			a.Redis = rdb
			locker = rdb
		}
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sink, err := metrics.NewPromSink(a.Registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("注册指标失败: %w", err)
	}

	a.JWT = jwt.NewManager(&cfg.Auth)
	a.Repo = repository.NewRepository(db)
	a.Service = service.NewService(cfg, a.Repo, service.Collaborators{
		Locker:  locker,
		Fetcher: opts.Fetcher,
		Metrics: sink,
	}, a.JWT, logger)

	return a, nil
}

// Router 构建 HTTP 路由
func (a *App) Router() *gin.Engine {
	var limiter middleware.RateLimiter
	if a.Redis != nil {
		limiter = a.Redis
	}
	h := handler.NewHandler(a.Service)
	return router.Setup(a.Config, h, a.JWT, limiter, a.Registry, a.Logger, a.healthChecks()...)
}

func (a *App) healthChecks() []router.HealthCheck {
	checks := []router.HealthCheck{{
		Name: "db",
		Ping: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}
	if a.Redis != nil {
		checks = append(checks, router.HealthCheck{Name: "redis", Ping: a.Redis.Ping})
	}
	return checks
}

// StartJobs 启动后台定时任务，返回的 channel 在任务退出后关闭
func (a *App) StartJobs(ctx context.Context) <-chan struct{} {
	return jobs.StartExpirySweepJob(ctx, a.Config.Jobs, a.Service.Consolidation, a.Logger)
}

// Close 释放数据库与 Redis 连接
func (a *App) Close() {
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
}
