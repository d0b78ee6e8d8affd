package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
	"github.com/paeinovis/RETRHO-administrative/internal/sheet"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoData       = errors.New("暂无可导出的数据")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// 导出工作表名，与原表格保持一致
const (
	scheduleSheet = "Schedule"
	targetSheet   = "TargetMaster"
	expiredSheet  = "Expired Targets"
	historySheet  = "History"
)

var (
	headerStyle = sheet.CellStyle{Bold: true, Fill: "#D9E1F2"}
	seniorStyle = sheet.CellStyle{Bold: true, FontColor: "#1F4E79"}
	absentStyle = sheet.CellStyle{FontColor: "#FF0000"}
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportSchedule 观测排班表，desc 为 true 时最新日期在前
	ExportSchedule(ctx context.Context, desc bool) (*bytes.Buffer, string, error)
	// ExportTargets 目标主表（按窗口关闭日期排序）与过期目标
	ExportTargets(ctx context.Context) (*bytes.Buffer, string, error)
	// ExportHistory 观测员出勤历史
	ExportHistory(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo      *repository.Repository
	intake    config.IntakeConfig
	maxJunior int
	loc       *time.Location
	logger    *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ExportService {
	intake := cfg.Intake
	if len(intake.TemplateColumns) == 0 {
		intake.TemplateColumns = config.DefaultTemplateColumns
	}
	return &exportService{
		repo:      repo,
		intake:    intake,
		maxJunior: cfg.Schedule.MaxJunior,
		loc:       observatoryLocation(cfg),
		logger:    logger,
	}
}

func (s *exportService) filename(kind string) string {
	return fmt.Sprintf("RETRHO_%s_%s.xlsx", kind, time.Now().In(s.loc).Format("2006-01-02"))
}

// writeTable 第 1 行写表头，数据行追加在其后
func writeTable(st sheet.Store, name string, header []string, rows [][]string) error {
	if err := st.WriteRange(name, 1, 1, [][]string{header}); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := st.AppendRows(name, rows)
	return err
}

func (s *exportService) finish(wb *sheet.Workbook) (*bytes.Buffer, error) {
	buf, err := wb.Bytes()
	if err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, ErrExportGenerateFail
	}
	return buf, nil
}

// ═══════════════════════════════════════════════════════════
// ExportSchedule — 观测排班表
// ═══════════════════════════════════════════════════════════
//
// | Date | Sunset | Senior | Junior 1 … Junior N |

func (s *exportService) ExportSchedule(ctx context.Context, desc bool) (*bytes.Buffer, string, error) {
	nights, err := s.repo.Night.List(ctx, desc)
	if err != nil {
		s.logger.Error("查询观测夜失败", zap.Error(err))
		return nil, "", err
	}

	wb, err := sheet.New(scheduleSheet)
	if err != nil {
		return nil, "", ErrExportGenerateFail
	}
	defer wb.Close()

	width := 3 + s.maxJunior
	header := []string{"Date", "Sunset", "Senior"}
	for i := 1; i <= s.maxJunior; i++ {
		header = append(header, fmt.Sprintf("Junior %d", i))
	}

	rows := make([][]string, 0, len(nights))
	for i := range nights {
		n := &nights[i]
		line := make([]string, width)
		line[0] = DisplayDate(n.NightDate)
		line[1] = SunsetLabel(n.NightDate, s.loc)
		if n.SeniorName != nil {
			line[2] = *n.SeniorName
		}
		for j, jr := range n.Juniors() {
			if 3+j < width {
				line[3+j] = jr.ObserverName
			}
		}
		rows = append(rows, line)
	}

	if err := writeTable(wb, scheduleSheet, header, rows); err != nil {
		s.logger.Error("写入排班表失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	_ = wb.SetStyle(scheduleSheet, 1, 1, 1, width, headerStyle)
	if len(nights) > 0 {
		_ = wb.SetStyle(scheduleSheet, 2, 3, len(nights)+1, 3, seniorStyle)
	}
	_ = wb.SetColWidth(scheduleSheet, 1, width, 18)

	buf, err := s.finish(wb)
	if err != nil {
		return nil, "", err
	}
	return buf, s.filename("Schedule"), nil
}

// ═══════════════════════════════════════════════════════════
// ExportTargets — 目标主表
// ═══════════════════════════════════════════════════════════
//
// | Reference Code | Submitter | Email | Access | Submitted | 模板 24 列 |
// 主表按窗口关闭日期升序，过期目标单独成表

const targetMetaColumns = 5

func (s *exportService) targetHeader() []string {
	header := []string{"Reference Code", "Submitter", "Email", "Access", "Submitted"}
	return append(header, s.intake.TemplateColumns...)
}

func targetLine(f *model.TargetFields) []string {
	line := []string{
		f.ReferenceCode,
		f.SubmitterName,
		f.SubmitterEmail,
		f.AccessLevel,
		f.SubmittedAt.Format("2006-01-02 15:04:05"),
	}
	return append(line, f.Cells...)
}

func (s *exportService) ExportTargets(ctx context.Context) (*bytes.Buffer, string, error) {
	records, err := s.repo.Target.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询目标主表失败", zap.Error(err))
		return nil, "", err
	}
	expired, err := s.repo.Target.ListExpired(ctx)
	if err != nil {
		s.logger.Error("查询过期目标失败", zap.Error(err))
		return nil, "", err
	}

	wb, err := sheet.New(targetSheet)
	if err != nil {
		return nil, "", ErrExportGenerateFail
	}
	defer wb.Close()

	header := s.targetHeader()
	rows := make([][]string, 0, len(records))
	for i := range records {
		rows = append(rows, targetLine(&records[i].TargetFields))
	}
	if err := writeTable(wb, targetSheet, header, rows); err != nil {
		s.logger.Error("写入目标主表失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	if err := wb.SortByColumn(targetSheet, targetMetaColumns+s.intake.CloseColumn, 1, false); err != nil {
		s.logger.Error("目标主表排序失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	_ = wb.SetStyle(targetSheet, 1, 1, 1, len(header), headerStyle)

	if err := wb.AddSheet(expiredSheet); err != nil {
		return nil, "", ErrExportGenerateFail
	}
	expiredRows := make([][]string, 0, len(expired))
	for i := range expired {
		expiredRows = append(expiredRows, targetLine(&expired[i].TargetFields))
	}
	if err := writeTable(wb, expiredSheet, header, expiredRows); err != nil {
		s.logger.Error("写入过期目标失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	_ = wb.SetStyle(expiredSheet, 1, 1, 1, len(header), headerStyle)

	buf, err := s.finish(wb)
	if err != nil {
		return nil, "", err
	}
	return buf, s.filename("TargetMaster"), nil
}

// ═══════════════════════════════════════════════════════════
// ExportHistory — 观测员出勤历史
// ═══════════════════════════════════════════════════════════
//
// 每位观测员一列：第 1 行姓名，第 2、3 行出勤/缺勤计数，
// 第 4 行起按日期列出观测夜，缺勤标红

const historyDataRow = 4

func (s *exportService) ExportHistory(ctx context.Context) (*bytes.Buffer, string, error) {
	observers, err := s.repo.Observer.List(ctx)
	if err != nil {
		s.logger.Error("查询观测员失败", zap.Error(err))
		return nil, "", err
	}
	if len(observers) == 0 {
		return nil, "", ErrExportNoData
	}

	wb, err := sheet.New(historySheet)
	if err != nil {
		return nil, "", ErrExportGenerateFail
	}
	defer wb.Close()

	for i := range observers {
		o := &observers[i]
		col := i + 1
		column := [][]string{
			{o.Name},
			{fmt.Sprintf("Observed: %d", o.NightsObserved)},
			{fmt.Sprintf("Missed: %d", o.NightsMissed)},
		}
		for _, e := range o.Entries {
			column = append(column, []string{DisplayDate(e.NightDate)})
		}
		if err := wb.WriteRange(historySheet, 1, col, column); err != nil {
			s.logger.Error("写入出勤历史失败", zap.String("observer", o.Name), zap.Error(err))
			return nil, "", ErrExportGenerateFail
		}
		for j, e := range o.Entries {
			if e.Status == model.EntryAbsent {
				row := historyDataRow + j
				_ = wb.SetStyle(historySheet, row, col, row, col, absentStyle)
			}
		}
	}
	_ = wb.SetStyle(historySheet, 1, 1, 1, len(observers), headerStyle)
	_ = wb.SetColWidth(historySheet, 1, len(observers), 20)

	buf, err := s.finish(wb)
	if err != nil {
		return nil, "", err
	}
	return buf, s.filename("History"), nil
}
