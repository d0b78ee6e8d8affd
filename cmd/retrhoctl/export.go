package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/paeinovis/RETRHO-administrative/internal/app"
)

var (
	exportDir  string
	exportDesc bool
)

var exportCmd = &cobra.Command{
	Use:       "export {schedule|targets|history}",
	Short:     "导出 xlsx 报表到本地目录",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"schedule", "targets", "history"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(app.Options{}, func(ctx context.Context, a *app.App) error {
			var (
				buf      *bytes.Buffer
				filename string
				err      error
			)
			switch args[0] {
			case "schedule":
				buf, filename, err = a.Service.Export.ExportSchedule(ctx, exportDesc)
			case "targets":
				buf, filename, err = a.Service.Export.ExportTargets(ctx)
			case "history":
				buf, filename, err = a.Service.Export.ExportHistory(ctx)
			}
			if err != nil {
				return err
			}

			path := filepath.Join(exportDir, filename)
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("写入文件失败: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", ".", "输出目录")
	exportCmd.Flags().BoolVar(&exportDesc, "desc", false, "排班表按日期倒序")
	rootCmd.AddCommand(exportCmd)
}
