package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/metrics"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/notify"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
)

// ── 目标整合模块业务错误 ──

var (
	ErrSubmissionNotFound  = errors.New("提交记录不存在")
	ErrSubmissionProcessed = errors.New("提交已处理")
	ErrInvalidSubmittedAt  = errors.New("提交时间格式无效，应为 RFC3339")
)

// ConsolidationOutcome 一次提交的整合结果
type ConsolidationOutcome struct {
	SubmissionID string
	Status       string // stored | rejected | failed
	Code         RefCode
	Targets      []string
	Rejection    *Rejection
}

// ConsolidationService 目标提交整合业务接口
type ConsolidationService interface {
	// Intake 将表单提交写入活动日志（pending）
	Intake(ctx context.Context, req *dto.SubmissionRequest) (*model.Submission, error)
	// Consolidate 校验并存储一条 pending 提交，全程持有 intake 锁
	Consolidate(ctx context.Context, submissionID string) (*ConsolidationOutcome, error)
	// ConsolidatePending 按提交时间顺序整合所有 pending 提交（加锁超时后的补处理）
	ConsolidatePending(ctx context.Context) ([]*ConsolidationOutcome, error)
	// Submit Intake 后立即 Consolidate
	Submit(ctx context.Context, req *dto.SubmissionRequest) (*ConsolidationOutcome, error)
	// SweepExpired 将窗口关闭早于 today 的目标移入过期表
	SweepExpired(ctx context.Context, today time.Time) (int, error)
	// Today 观测站时区的当天日期
	Today() time.Time
	ListTargets(ctx context.Context, page, pageSize int) ([]dto.TargetResponse, int64, error)
	ListArchive(ctx context.Context, page, pageSize int) ([]dto.ArchivedSubmissionResponse, int64, error)
}

type consolidationService struct {
	repo     *repository.Repository
	intake   config.IntakeConfig
	renderer *notify.Renderer
	locker   Locker
	fetcher  WorkbookFetcher
	notifier notify.Dispatcher
	metrics  metrics.Recorder
	clock    Clock
	loc      *time.Location
	logger   *zap.Logger
}

// NewConsolidationService 创建 ConsolidationService 实例
func NewConsolidationService(
	cfg *config.Config,
	repo *repository.Repository,
	renderer *notify.Renderer,
	collab Collaborators,
	logger *zap.Logger,
) ConsolidationService {
	collab = collab.withDefaults(cfg, repo, logger)
	intake := cfg.Intake
	if len(intake.TemplateColumns) == 0 {
		intake.TemplateColumns = config.DefaultTemplateColumns
	}
	return &consolidationService{
		repo:     repo,
		intake:   intake,
		renderer: renderer,
		locker:   collab.Locker,
		fetcher:  collab.Fetcher,
		notifier: collab.Dispatcher,
		metrics:  collab.Metrics,
		clock:    collab.Clock,
		loc:      observatoryLocation(cfg),
		logger:   logger,
	}
}

func (s *consolidationService) Today() time.Time {
	return dateOnly(s.clock(), s.loc)
}

// ────────────────────── Intake ──────────────────────

func (s *consolidationService) Intake(ctx context.Context, req *dto.SubmissionRequest) (*model.Submission, error) {
	submittedAt := s.clock().UTC()
	if req.SubmittedAt != "" {
		t, err := time.Parse(time.RFC3339, req.SubmittedAt)
		if err != nil {
			return nil, ErrInvalidSubmittedAt
		}
		submittedAt = t.UTC()
	}

	sub := &model.Submission{
		SubmittedAt:    submittedAt,
		SubmitterName:  strings.TrimSpace(req.SubmitterName),
		SubmitterEmail: strings.TrimSpace(req.SubmitterEmail),
		SheetLink:      strings.TrimSpace(req.SheetLink),
		TargetCount:    req.TargetCount,
		AccessLevel:    strings.TrimSpace(req.AccessLevel),
		Status:         model.SubmissionPending,
	}
	if err := s.repo.Submission.Create(ctx, sub); err != nil {
		s.logger.Error("写入提交日志失败", zap.Error(err))
		return nil, err
	}
	return sub, nil
}

func (s *consolidationService) Submit(ctx context.Context, req *dto.SubmissionRequest) (*ConsolidationOutcome, error) {
	sub, err := s.Intake(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Consolidate(ctx, sub.SubmissionID)
}

// ────────────────────── Consolidate ──────────────────────

func (s *consolidationService) Consolidate(ctx context.Context, submissionID string) (*ConsolidationOutcome, error) {
	sub, err := s.loadPending(ctx, submissionID)
	if err != nil {
		if !errors.Is(err, ErrSubmissionNotFound) && !errors.Is(err, ErrSubmissionProcessed) {
			s.logger.Error("读取提交失败", zap.String("submission_id", submissionID), zap.Error(err))
		}
		return nil, err
	}

	out, err := s.process(ctx, sub)
	if err != nil {
		if !errors.Is(err, ErrSubmissionProcessed) {
			s.logger.Error("整合提交失败，保留为 pending",
				zap.String("submission_id", submissionID), zap.Error(err))
			s.notifyQueued(ctx, sub)
		}
		return nil, err
	}

	s.metrics.SubmissionOutcome(out.Status)
	s.notify(ctx, sub, out)
	return out, nil
}

// loadPending 读取仍处于 pending 的提交
func (s *consolidationService) loadPending(ctx context.Context, submissionID string) (*model.Submission, error) {
	sub, err := s.repo.Submission.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if sub.Status != model.SubmissionPending {
		return nil, ErrSubmissionProcessed
	}
	return sub, nil
}

func (s *consolidationService) ConsolidatePending(ctx context.Context) ([]*ConsolidationOutcome, error) {
	pending, err := s.repo.Submission.ListPending(ctx)
	if err != nil {
		s.logger.Error("查询 pending 提交失败", zap.Error(err))
		return nil, err
	}

	outcomes := make([]*ConsolidationOutcome, 0, len(pending))
	for i := range pending {
		out, err := s.Consolidate(ctx, pending[i].SubmissionID)
		if errors.Is(err, ErrSubmissionProcessed) || errors.Is(err, ErrSubmissionNotFound) {
			continue // 已被并发请求处理
		}
		if err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}

// process 下载与校验在锁外完成，intake 锁只覆盖状态复核与写入
func (s *consolidationService) process(ctx context.Context, sub *model.Submission) (*ConsolidationOutcome, error) {
	var (
		rej            *Rejection
		status, reason string
	)
	header, rows, err := s.readWorkbook(ctx, sub)
	if err != nil {
		rej = &Rejection{Kind: KindStorageFailure, Reasons: []string{err.Error()}}
		status, reason = model.SubmissionFailed, model.ArchiveStorageFailure
	} else if rej = ValidateSubmission(header, s.intake.TemplateColumns, rows, s.Today()); rej != nil {
		status, reason = model.SubmissionRejected, model.ArchiveRejected
	}

	var out *ConsolidationOutcome
	err = withLock(ctx, s.locker, intakeLockKey, func() error {
		if _, err := s.loadPending(ctx, sub.SubmissionID); err != nil {
			return err
		}
		if rej != nil {
			out = s.reject(ctx, sub, status, reason, rej)
			return nil
		}
		out = s.storeRows(ctx, sub, rows)
		return nil
	})
	return out, err
}

func (s *consolidationService) storeRows(ctx context.Context, sub *model.Submission, rows []TargetRow) *ConsolidationOutcome {
	code, err := s.store(ctx, sub, rows)
	if err != nil {
		s.logger.Error("存储目标失败", zap.String("submission_id", sub.SubmissionID), zap.Error(err))
		return s.reject(ctx, sub, model.SubmissionFailed, model.ArchiveStorageFailure,
			&Rejection{Kind: KindStorageFailure, Reasons: []string{err.Error()}})
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
	}
	s.logger.Info("目标提交已存储",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("reference_code", string(code)),
		zap.Int("targets", len(names)),
	)
	return &ConsolidationOutcome{
		SubmissionID: sub.SubmissionID,
		Status:       model.SubmissionStored,
		Code:         code,
		Targets:      names,
	}
}

// readWorkbook 读取表头行与 TargetCount 行数据
func (s *consolidationService) readWorkbook(ctx context.Context, sub *model.Submission) ([]string, []TargetRow, error) {
	wb, err := s.fetcher.Fetch(ctx, sub.SheetLink)
	if err != nil {
		return nil, nil, err
	}
	defer wb.Close()

	width := len(s.intake.TemplateColumns)
	name := wb.FirstSheet()
	header, err := wb.ReadRange(name, s.intake.HeaderRow, s.intake.HeaderRow, 1, width)
	if err != nil {
		return nil, nil, err
	}
	data, err := wb.ReadRange(name, s.intake.DataStartRow, s.intake.DataStartRow+sub.TargetCount-1, 1, width)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]TargetRow, 0, len(data))
	for _, cells := range data {
		rows = append(rows, TargetRow{
			Cells:     cells,
			Name:      strings.TrimSpace(cells[s.intake.NameColumn-1]),
			OpenText:  strings.TrimSpace(cells[s.intake.OpenColumn-1]),
			CloseText: strings.TrimSpace(cells[s.intake.CloseColumn-1]),
		})
	}
	return header[0], rows, nil
}

// store 单个事务内完成学期切换、编号、写主表与标记提交
func (s *consolidationService) store(ctx context.Context, sub *model.Submission, rows []TargetRow) (RefCode, error) {
	now := s.clock().UTC()
	submitted := dateOnly(sub.SubmittedAt, s.loc)
	key := SemesterKey(submitted)

	var code RefCode
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		latest, err := tx.Submission.LatestStored(ctx)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case latest.SemesterKey != nil && *latest.SemesterKey != key:
			moved, err := tx.Submission.ArchiveStored(ctx, now)
			if err != nil {
				return err
			}
			s.logger.Info("学期切换，已归档上学期提交",
				zap.String("from", *latest.SemesterKey),
				zap.String("to", key),
				zap.Int64("archived", moved),
			)
		}

		prior, err := tx.Submission.CountStored(ctx)
		if err != nil {
			return err
		}
		code, err = GenerateRefCode(submitted, int(prior))
		if err != nil {
			return err
		}

		records := make([]model.MasterRecord, 0, len(rows))
		for i, row := range rows {
			open, _ := parseCellDate(row.OpenText)
			closeAt, _ := parseCellDate(row.CloseText)
			records = append(records, model.MasterRecord{TargetFields: model.TargetFields{
				SubmissionID:   sub.SubmissionID,
				ReferenceCode:  string(code),
				SubmitterName:  sub.SubmitterName,
				SubmitterEmail: sub.SubmitterEmail,
				AccessLevel:    sub.AccessLevel,
				SubmittedAt:    sub.SubmittedAt,
				RowIndex:       i,
				TargetName:     row.Name,
				WindowOpen:     open,
				WindowClose:    closeAt,
				Cells:          append([]string(nil), row.Cells...),
			}})
		}
		if err := tx.Target.BatchCreate(ctx, records); err != nil {
			return err
		}
		return tx.Submission.MarkStored(ctx, sub.SubmissionID, string(code), key, now)
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// reject 被拒或失败的提交移入归档，不参与序号计数
func (s *consolidationService) reject(ctx context.Context, sub *model.Submission, status, reason string, rej *Rejection) *ConsolidationOutcome {
	now := s.clock().UTC()
	sub.ProcessedAt = &now
	entry := sub.ToArchive(status, reason, now)
	kind, detail := string(rej.Kind), rej.Detail()
	entry.RejectKind = &kind
	entry.RejectDetail = &detail

	if err := s.repo.Submission.Archive(ctx, entry); err != nil {
		s.logger.Error("归档被拒提交失败", zap.String("submission_id", sub.SubmissionID), zap.Error(err))
	}
	s.logger.Info("目标提交未通过",
		zap.String("submission_id", sub.SubmissionID),
		zap.String("kind", kind),
		zap.String("detail", detail),
	)
	return &ConsolidationOutcome{SubmissionID: sub.SubmissionID, Status: status, Rejection: rej}
}

func (s *consolidationService) notify(ctx context.Context, sub *model.Submission, out *ConsolidationOutcome) {
	var (
		msg notify.Message
		err error
	)
	if out.Rejection == nil {
		msg, err = s.renderer.SubmissionSuccess(sub.SubmitterEmail, sub.SubmitterName, string(out.Code), out.Targets)
	} else {
		msg, err = s.renderer.SubmissionFailure(sub.SubmitterEmail, sub.SubmitterName, string(out.Rejection.Kind), out.Rejection.Detail())
	}
	if err != nil {
		s.logger.Error("渲染提交通知失败", zap.Error(err))
		return
	}
	notify.Deliver(ctx, s.notifier, msg, s.logger)
}

// notifyQueued 未能整合（锁超时、数据库异常）时告知提交者稍后处理
func (s *consolidationService) notifyQueued(ctx context.Context, sub *model.Submission) {
	msg, err := s.renderer.SubmissionQueued(sub.SubmitterEmail, sub.SubmitterName)
	if err != nil {
		s.logger.Error("渲染提交通知失败", zap.Error(err))
		return
	}
	notify.Deliver(ctx, s.notifier, msg, s.logger)
}

// ────────────────────── SweepExpired ──────────────────────

func (s *consolidationService) SweepExpired(ctx context.Context, today time.Time) (int, error) {
	var moved int
	err := withLock(ctx, s.locker, intakeLockKey, func() error {
		records, err := s.repo.Target.ListClosedBefore(ctx, today)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		if err := s.repo.Target.MoveToExpired(ctx, records, s.clock().UTC()); err != nil {
			return err
		}
		moved = len(records)
		return nil
	})
	if err != nil {
		s.logger.Error("过期目标清理失败", zap.Error(err))
		return 0, err
	}

	s.metrics.TargetsExpired(moved)
	s.logger.Info("过期目标清理完成",
		zap.String("today", today.Format("2006-01-02")),
		zap.Int("moved", moved),
	)
	return moved, nil
}

// ────────────────────── 查询 ──────────────────────

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}

func (s *consolidationService) ListTargets(ctx context.Context, page, pageSize int) ([]dto.TargetResponse, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	records, total, err := s.repo.Target.List(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		s.logger.Error("列出目标失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.TargetResponse, 0, len(records))
	for i := range records {
		r := &records[i]
		result = append(result, dto.TargetResponse{
			RecordID:       r.RecordID,
			ReferenceCode:  r.ReferenceCode,
			TargetName:     r.TargetName,
			SubmitterName:  r.SubmitterName,
			SubmitterEmail: r.SubmitterEmail,
			AccessLevel:    r.AccessLevel,
			SubmittedAt:    r.SubmittedAt,
			WindowOpen:     r.WindowOpen.Format("2006-01-02"),
			WindowClose:    r.WindowClose.Format("2006-01-02"),
			Cells:          r.Cells,
		})
	}
	return result, total, nil
}

func (s *consolidationService) ListArchive(ctx context.Context, page, pageSize int) ([]dto.ArchivedSubmissionResponse, int64, error) {
	page, pageSize = normalizePage(page, pageSize)
	entries, total, err := s.repo.Submission.ListArchive(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		s.logger.Error("列出归档提交失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.ArchivedSubmissionResponse, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		resp := dto.ArchivedSubmissionResponse{
			SubmissionID:   e.SubmissionID,
			SubmittedAt:    e.SubmittedAt,
			SubmitterName:  e.SubmitterName,
			SubmitterEmail: e.SubmitterEmail,
			TargetCount:    e.TargetCount,
			Status:         e.Status,
			Reason:         e.Reason,
			ArchivedAt:     e.ArchivedAt,
		}
		if e.ReferenceCode != nil {
			resp.ReferenceCode = *e.ReferenceCode
		}
		if e.RejectKind != nil {
			resp.RejectKind = *e.RejectKind
		}
		if e.RejectDetail != nil {
			resp.RejectDetail = *e.RejectDetail
		}
		result = append(result, resp)
	}
	return result, total, nil
}
