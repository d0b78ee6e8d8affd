package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/app"
	applogger "github.com/paeinovis/RETRHO-administrative/pkg/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "retrhoctl",
	Short:         "RETRHO 观测排班与目标整合的运维命令",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "配置文件路径（默认查找 ./config/config.yaml）")
}

// withApp 加载配置并组装依赖，执行 fn 后释放资源
func withApp(opts app.Options, fn func(ctx context.Context, a *app.App) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log, "cli")
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		logger.Error("命令执行失败", zap.Error(err))
		return err
	}
	return nil
}
