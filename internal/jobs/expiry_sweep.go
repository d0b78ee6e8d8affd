package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
)

// Sweeper 过期目标清理，由 service.ConsolidationService 实现
type Sweeper interface {
	SweepExpired(ctx context.Context, today time.Time) (int, error)
	Today() time.Time
}

// StartExpirySweepJob 周期性地把窗口已关闭的目标移入过期表。
// 返回的 channel 在后台协程退出后关闭；任务未启用时立即关闭。
func StartExpirySweepJob(ctx context.Context, cfg config.JobsConfig, sweeper Sweeper, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if !cfg.ExpirySweepEnabled || sweeper == nil {
		logger.Info("过期目标清理任务未启用")
		close(done)
		return done
	}
	interval := cfg.ExpirySweepInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	timeout := cfg.ExpirySweepTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()

		// 启动时先清理一次
		sweepOnce(ctx, sweeper, timeout, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOnce(ctx, sweeper, timeout, logger)
			}
		}
	}()
	return done
}

func sweepOnce(ctx context.Context, sweeper Sweeper, timeout time.Duration, logger *zap.Logger) {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	today := sweeper.Today()
	moved, err := sweeper.SweepExpired(tickCtx, today)
	if err != nil {
		logger.Error("过期目标清理失败", zap.Time("today", today), zap.Error(err))
		return
	}
	if moved > 0 {
		logger.Info("过期目标已移出主表", zap.Int("moved", moved), zap.Time("today", today))
	}
}
