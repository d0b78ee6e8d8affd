package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paeinovis/RETRHO-administrative/internal/app"
	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/service"
)

var (
	consolidateReq     dto.SubmissionRequest
	consolidatePending bool
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate {--pending | --file targets.xlsx --name NAME --email EMAIL --count N}",
	Short: "整合 pending 提交，或从本地 xlsx 提交表执行一次目标整合",
	RunE: func(cmd *cobra.Command, args []string) error {
		if consolidatePending {
			return withApp(app.Options{}, func(ctx context.Context, a *app.App) error {
				outs, err := a.Service.Consolidation.ConsolidatePending(ctx)
				for _, out := range outs {
					printOutcome(cmd, out)
				}
				return err
			})
		}
		if consolidateReq.SheetLink == "" || consolidateReq.SubmitterName == "" ||
			consolidateReq.SubmitterEmail == "" || consolidateReq.TargetCount < 1 {
			return fmt.Errorf("--file、--name、--email、--count 均为必填")
		}
		opts := app.Options{Fetcher: service.FileFetcher{}}
		return withApp(opts, func(ctx context.Context, a *app.App) error {
			out, err := a.Service.Consolidation.Submit(ctx, &consolidateReq)
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		})
	},
}

func printOutcome(cmd *cobra.Command, out *service.ConsolidationOutcome) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "submission %s: %s\n", out.SubmissionID, out.Status)
	if out.Code != "" {
		fmt.Fprintf(w, "reference code %s, targets %s\n", out.Code, service.JoinHuman(out.Targets))
	}
	if out.Rejection != nil {
		fmt.Fprintf(w, "%s: %s\n", out.Rejection.Kind, out.Rejection.Detail())
	}
}

func init() {
	f := consolidateCmd.Flags()
	f.BoolVar(&consolidatePending, "pending", false, "整合全部 pending 提交（使用配置的 HTTP 下载器）")
	f.StringVar(&consolidateReq.SheetLink, "file", "", "提交表 xlsx 路径")
	f.StringVar(&consolidateReq.SubmitterName, "name", "", "提交人姓名")
	f.StringVar(&consolidateReq.SubmitterEmail, "email", "", "提交人邮箱")
	f.IntVar(&consolidateReq.TargetCount, "count", 0, "声明的目标数量")
	f.StringVar(&consolidateReq.AccessLevel, "access", "", "访问级别")
	f.StringVar(&consolidateReq.SubmittedAt, "at", "", "提交时间 RFC3339（默认当前时间）")
	rootCmd.AddCommand(consolidateCmd)
}
