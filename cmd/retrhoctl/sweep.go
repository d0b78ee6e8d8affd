package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paeinovis/RETRHO-administrative/internal/app"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
)

var sweepToday string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "将观测窗口已关闭的目标移入过期表",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(app.Options{}, func(ctx context.Context, a *app.App) error {
			today := a.Service.Consolidation.Today()
			if sweepToday != "" {
				d, err := service.ParseDate(sweepToday)
				if err != nil {
					return fmt.Errorf("--today 日期格式无效: %w", err)
				}
				today = d
			}
			moved, err := a.Service.Consolidation.SweepExpired(ctx, today)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %d target(s) to expired as of %s\n", moved, today.Format("2006-01-02"))
			return nil
		})
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepToday, "today", "", "基准日期 YYYY-MM-DD（默认观测站当天）")
	rootCmd.AddCommand(sweepCmd)
}
