package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/pkg/database"
	applogger "github.com/paeinovis/RETRHO-administrative/pkg/logger"
)

var rollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "数据库迁移",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "执行全部未应用的迁移",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSQL(database.RunMigrations)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "回滚指定步数的迁移",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSQL(func(db *sql.DB, logger *zap.Logger) error {
			return database.RollbackMigrations(db, rollbackSteps, logger)
		})
	},
}

// withSQL 迁移只需要数据库连接，不组装完整依赖
func withSQL(fn func(db *sql.DB, logger *zap.Logger) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := applogger.NewLogger(&cfg.Log, "cli")
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Sync()

	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return fn(sqlDB, logger)
}

func init() {
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "回滚步数")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
