package service

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/sheet"
	pkgerrors "github.com/paeinovis/RETRHO-administrative/pkg/errors"
)

var validRows = [][]string{
	{"1", "M31", "2026-11-01", "2026-12-01"},
	{"2", "NGC 7000", "2026-10-01", "2026-11-15"},
}

func submission(link string, count int) *dto.SubmissionRequest {
	return &dto.SubmissionRequest{
		SubmittedAt:    "2026-10-19T14:30:00Z",
		SubmitterName:  "Henrietta Leavitt",
		SubmitterEmail: "leavitt@example.edu",
		SheetLink:      link,
		TargetCount:    count,
		AccessLevel:    "Full",
	}
}

func TestConsolidate_StoresValidSubmission(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("good", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Status != model.SubmissionStored || out.Rejection != nil {
		t.Fatalf("期望 stored，实际 %+v", out)
	}
	if out.Code != "26C000" {
		t.Errorf("学期首个提交期望 26C000，实际 %s", out.Code)
	}
	if !reflect.DeepEqual(out.Targets, []string{"M31", "NGC 7000"}) {
		t.Errorf("目标名单不符: %v", out.Targets)
	}

	if len(env.targets.records) != 2 {
		t.Fatalf("期望写入 2 条主表记录，实际 %d", len(env.targets.records))
	}
	rec := env.targets.records[1]
	if rec.ReferenceCode != "26C000" || rec.SubmitterEmail != "leavitt@example.edu" || rec.RowIndex != 1 {
		t.Errorf("主表记录字段不符: %+v", rec.TargetFields)
	}
	if rec.WindowClose.Format("2006-01-02") != "2026-11-15" {
		t.Errorf("窗口关闭日期不符: %s", rec.WindowClose)
	}

	msg := env.dispatcher.last()
	if !strings.HasPrefix(msg.Subject, "[SUCCESS]") || !strings.Contains(msg.Body, "26C000") ||
		!strings.Contains(msg.Body, "M31<br/>NGC 7000") {
		t.Errorf("成功通知不符: %+v", msg)
	}
}

func TestConsolidate_SequenceIncrements(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	for i, want := range []RefCode{"26C000", "26C001", "26C002"} {
		out, err := svc.Submit(context.Background(), submission("good", 2))
		if err != nil {
			t.Fatalf("第 %d 次 Submit 应成功: %v", i+1, err)
		}
		if out.Code != want {
			t.Errorf("期望 %s，实际 %s", want, out.Code)
		}
	}
}

func TestConsolidate_ColumnMismatch(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["bad"] = buildWorkbook(t, []string{"A", "X", "C", "D"}, validRows)
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("bad", 2))
	if err != nil {
		t.Fatalf("Submit 应返回结果而非错误: %v", err)
	}
	if out.Status != model.SubmissionRejected || out.Rejection.Kind != KindColumnMismatch {
		t.Fatalf("期望 ColumnMismatch，实际 %+v", out)
	}
	if !reflect.DeepEqual(out.Rejection.Reasons, []string{"B"}) {
		t.Errorf("期望原因 [B]，实际 %v", out.Rejection.Reasons)
	}
	if len(env.targets.records) != 0 {
		t.Error("被拒提交不应写入主表")
	}

	if len(env.subs.archive) != 1 || env.subs.archive[0].Reason != model.ArchiveRejected {
		t.Fatalf("被拒提交应移入归档: %+v", env.subs.archive)
	}
	if *env.subs.archive[0].RejectKind != "ColumnMismatch" {
		t.Errorf("归档应记录失败分类，实际 %s", *env.subs.archive[0].RejectKind)
	}
	if !strings.Contains(env.dispatcher.last().Body, "in the columns B") {
		t.Errorf("失败通知应列出不一致的列: %s", env.dispatcher.last().Body)
	}
}

func TestConsolidate_RejectedDoesNotConsumeSequence(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	env.fetcher.books["bad"] = buildWorkbook(t, []string{"A", "X", "C", "D"}, validRows)
	svc := env.consolidationService()

	if _, err := svc.Submit(context.Background(), submission("bad", 2)); err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	out, err := svc.Submit(context.Background(), submission("good", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Code != "26C000" {
		t.Errorf("被拒提交不应占用序号，期望 26C000，实际 %s", out.Code)
	}
}

func TestConsolidate_WindowMismatch(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["late"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, [][]string{
		{"1", "M31", "2026-11-01", "2026-12-01"},
		{"2", "M57", "2026-08-01", "2026-09-01"},
		{"3", "M13", "2026-12-01", "2026-11-01"},
	})
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("late", 3))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Rejection == nil || out.Rejection.Kind != KindWindowMismatch {
		t.Fatalf("期望 WindowMismatch，实际 %+v", out)
	}
	if out.Rejection.Detail() != "M57 and M13" {
		t.Errorf("期望 \"M57 and M13\"，实际 %q", out.Rejection.Detail())
	}
}

func TestConsolidate_OnlyReadsTargetCountRows(t *testing.T) {
	env := newTestEnv()
	rows := append([][]string{}, validRows...)
	rows = append(rows, []string{"3", "M57", "2026-08-01", "2026-09-01"})
	env.fetcher.books["extra"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, rows)
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("extra", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Status != model.SubmissionStored || len(out.Targets) != 2 {
		t.Errorf("只应读取声明数量的行，实际 %+v", out)
	}
}

func TestConsolidate_SemesterRollover(t *testing.T) {
	env := newTestEnv()
	env.subs.seedStored(time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC), "26B000")
	env.subs.seedStored(time.Date(2026, time.August, 21, 12, 0, 0, 0, time.UTC), "26B001")
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("good", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Code != "26C000" {
		t.Errorf("学期切换后期望 26C000，实际 %s", out.Code)
	}

	rolled := 0
	for _, a := range env.subs.archive {
		if a.Reason == model.ArchiveRollover {
			rolled++
		}
	}
	if rolled != 2 {
		t.Errorf("上学期 2 条提交应归档，实际 %d", rolled)
	}
	if n, _ := env.subs.CountStored(context.Background()); n != 1 {
		t.Errorf("活动日志应只剩本次提交，实际 %d", n)
	}
}

func TestConsolidate_SameSemesterNoRollover(t *testing.T) {
	env := newTestEnv()
	env.subs.seedStored(time.Date(2026, time.September, 20, 12, 0, 0, 0, time.UTC), "26C000")
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("good", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Code != "26C001" {
		t.Errorf("期望 26C001，实际 %s", out.Code)
	}
	if len(env.subs.archive) != 0 {
		t.Errorf("同学期不应归档，实际 %d", len(env.subs.archive))
	}
}

func TestConsolidate_RolloverComparesYearAndLetter(t *testing.T) {
	env := newTestEnv()
	env.subs.seedStored(time.Date(2025, time.February, 3, 12, 0, 0, 0, time.UTC), "25A004")
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	req := submission("good", 2)
	req.SubmittedAt = "2026-02-10T15:00:00Z"
	out, err := svc.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Code != "26A000" {
		t.Errorf("同字母不同年份也应切换学期，期望 26A000，实际 %s", out.Code)
	}
	if len(env.subs.archive) != 1 || env.subs.archive[0].Reason != model.ArchiveRollover {
		t.Errorf("25A 的提交应归档，实际 %+v", env.subs.archive)
	}
}

func TestConsolidate_SequenceOverflowIsStorageFailure(t *testing.T) {
	env := newTestEnv()
	base := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		env.subs.seedStored(base.Add(time.Duration(i)*time.Minute), "26C999")
	}
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("good", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Status != model.SubmissionFailed || out.Rejection.Kind != KindStorageFailure {
		t.Fatalf("序号溢出应为 StorageFailure，实际 %+v", out)
	}
	if len(env.targets.records) != 0 {
		t.Error("序号溢出时不应写入主表")
	}
}

func TestConsolidate_StorageFailure(t *testing.T) {
	env := newTestEnv()
	env.targets.failCreate = errMockStorage
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("good", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Status != model.SubmissionFailed || out.Rejection.Kind != KindStorageFailure {
		t.Fatalf("期望 StorageFailure，实际 %+v", out)
	}
	if !strings.Contains(out.Rejection.Detail(), errMockStorage.Error()) {
		t.Errorf("应携带原始错误信息，实际 %q", out.Rejection.Detail())
	}
	if len(env.subs.archive) != 1 || env.subs.archive[0].Reason != model.ArchiveStorageFailure {
		t.Errorf("失败提交应移入归档: %+v", env.subs.archive)
	}
	if n, _ := env.subs.CountStored(context.Background()); n != 0 {
		t.Errorf("失败提交不应计入序号，实际 %d", n)
	}
}

func TestConsolidate_FetchFailure(t *testing.T) {
	env := newTestEnv()
	svc := env.consolidationService()

	out, err := svc.Submit(context.Background(), submission("missing", 2))
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if out.Rejection == nil || out.Rejection.Kind != KindStorageFailure {
		t.Fatalf("获取表格失败应为 StorageFailure，实际 %+v", out)
	}
	if !strings.Contains(env.dispatcher.last().Body, "HTTP 404") {
		t.Error("失败通知应包含错误信息")
	}
}

func TestConsolidate_Errors(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()

	if _, err := svc.Consolidate(context.Background(), "nope"); !errors.Is(err, ErrSubmissionNotFound) {
		t.Errorf("期望 ErrSubmissionNotFound，实际 %v", err)
	}

	out, _ := svc.Submit(context.Background(), submission("good", 2))
	if _, err := svc.Consolidate(context.Background(), out.SubmissionID); !errors.Is(err, ErrSubmissionProcessed) {
		t.Errorf("重复整合期望 ErrSubmissionProcessed，实际 %v", err)
	}

	req := submission("good", 2)
	req.SubmittedAt = "yesterday"
	if _, err := svc.Intake(context.Background(), req); !errors.Is(err, ErrInvalidSubmittedAt) {
		t.Errorf("期望 ErrInvalidSubmittedAt，实际 %v", err)
	}
}

func TestConsolidatePending_InSubmissionOrder(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()
	ctx := context.Background()

	later := submission("good", 2)
	later.SubmittedAt = "2026-10-19T15:00:00Z"
	earlier := submission("good", 2)
	earlier.SubmittedAt = "2026-10-19T09:00:00Z"
	second, err := svc.Intake(ctx, later)
	if err != nil {
		t.Fatalf("Intake 应成功: %v", err)
	}
	first, err := svc.Intake(ctx, earlier)
	if err != nil {
		t.Fatalf("Intake 应成功: %v", err)
	}

	outs, err := svc.ConsolidatePending(ctx)
	if err != nil {
		t.Fatalf("ConsolidatePending 应成功: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("期望整合 2 条，实际 %d", len(outs))
	}
	if outs[0].SubmissionID != first.SubmissionID || outs[0].Code != "26C000" {
		t.Errorf("较早的提交应先整合并得到 26C000，实际 %+v", outs[0])
	}
	if outs[1].SubmissionID != second.SubmissionID || outs[1].Code != "26C001" {
		t.Errorf("较晚的提交应得到 26C001，实际 %+v", outs[1])
	}

	again, err := svc.ConsolidatePending(ctx)
	if err != nil || len(again) != 0 {
		t.Errorf("无 pending 时应返回空结果，实际 %d 条 err=%v", len(again), err)
	}
}

func TestSweepExpired(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()
	if _, err := svc.Submit(context.Background(), submission("good", 2)); err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}

	moved, err := svc.SweepExpired(context.Background(), time.Date(2026, time.November, 20, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("SweepExpired 应成功: %v", err)
	}
	if moved != 1 {
		t.Fatalf("期望移动 1 条，实际 %d", moved)
	}
	if len(env.targets.records) != 1 || env.targets.records[0].TargetName != "M31" {
		t.Errorf("未过期目标应保留: %+v", env.targets.records)
	}
	if len(env.targets.expired) != 1 || env.targets.expired[0].TargetName != "NGC 7000" {
		t.Errorf("过期目标应移入过期表: %+v", env.targets.expired)
	}

	moved, _ = svc.SweepExpired(context.Background(), time.Date(2026, time.November, 20, 0, 0, 0, 0, time.UTC))
	if moved != 0 {
		t.Errorf("再次清理应无变化，实际 %d", moved)
	}
}

func TestListTargetsAndArchive(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	env.fetcher.books["bad"] = buildWorkbook(t, []string{"A", "X", "C", "D"}, validRows)
	svc := env.consolidationService()
	_, _ = svc.Submit(context.Background(), submission("good", 2))
	_, _ = svc.Submit(context.Background(), submission("bad", 2))

	targets, total, err := svc.ListTargets(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListTargets 应成功: %v", err)
	}
	if total != 2 || targets[0].TargetName != "M31" || targets[0].WindowOpen != "2026-11-01" {
		t.Errorf("目标列表不符: %+v", targets)
	}

	archive, total, err := svc.ListArchive(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ListArchive 应成功: %v", err)
	}
	if total != 1 || archive[0].RejectKind != "ColumnMismatch" || archive[0].RejectDetail != "B" {
		t.Errorf("归档列表不符: %+v", archive)
	}
}

// ── 锁范围 ──

// lockWatcher 记录 intake 锁是否被持有
type lockWatcher struct {
	inner Locker
	held  atomic.Bool
}

func (l *lockWatcher) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := l.inner.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	l.held.Store(true)
	return func() {
		l.held.Store(false)
		unlock()
	}, nil
}

// watchedFetcher 下载时检查锁状态
type watchedFetcher struct {
	inner   WorkbookFetcher
	locks   *lockWatcher
	underMu sync.Mutex
	under   int
}

func (f *watchedFetcher) Fetch(ctx context.Context, link string) (*sheet.Workbook, error) {
	if f.locks.held.Load() {
		f.underMu.Lock()
		f.under++
		f.underMu.Unlock()
	}
	return f.inner.Fetch(ctx, link)
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, pkgerrors.ErrLockNotAcquired
}

func TestConsolidate_FetchRunsOutsideIntakeLock(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	locks := &lockWatcher{inner: NewLocalLocker()}
	fetcher := &watchedFetcher{inner: env.fetcher, locks: locks}
	collab := env.collab()
	collab.Locker, collab.Fetcher = locks, fetcher
	svc := NewConsolidationService(env.cfg, env.repo, env.renderer(), collab, zap.NewNop())

	out, err := svc.Submit(context.Background(), submission("good", 2))
	if err != nil || out.Code != "26C000" {
		t.Fatalf("Submit 应成功: %+v %v", out, err)
	}
	if fetcher.under != 0 {
		t.Errorf("下载表格时不应持有 intake 锁，实际 %d 次", fetcher.under)
	}
}

func TestConsolidate_ConcurrentSubmissionsGetDistinctCodes(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	svc := env.consolidationService()
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		sub, err := svc.Intake(ctx, submission("good", 2))
		if err != nil {
			t.Fatalf("Intake 应成功: %v", err)
		}
		ids[i] = sub.SubmissionID
	}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[RefCode]bool)
	)
	// 同一提交被两路并发整合，只能成功一次
	for _, id := range append(ids, ids...) {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			out, err := svc.Consolidate(ctx, id)
			if errors.Is(err, ErrSubmissionProcessed) {
				return
			}
			if err != nil {
				t.Errorf("Consolidate 失败: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if codes[out.Code] {
				t.Errorf("参考编号重复: %s", out.Code)
			}
			codes[out.Code] = true
		}(id)
	}
	wg.Wait()

	if len(codes) != n {
		t.Errorf("期望 %d 个不同编号，实际 %d", n, len(codes))
	}
	if stored, _ := env.subs.CountStored(ctx); stored != n {
		t.Errorf("期望存储 %d 条，实际 %d", n, stored)
	}
}

func TestConsolidate_LockTimeoutKeepsPendingAndNotifies(t *testing.T) {
	env := newTestEnv()
	env.fetcher.books["good"] = buildWorkbook(t, []string{"A", "B", "C", "D"}, validRows)
	collab := env.collab()
	collab.Locker = failingLocker{}
	blocked := NewConsolidationService(env.cfg, env.repo, env.renderer(), collab, zap.NewNop())
	ctx := context.Background()

	if _, err := blocked.Submit(ctx, submission("good", 2)); !errors.Is(err, pkgerrors.ErrLockNotAcquired) {
		t.Fatalf("期望 ErrLockNotAcquired，实际 %v", err)
	}
	msg := env.dispatcher.last()
	if msg.To != "leavitt@example.edu" || !strings.Contains(msg.Subject, "[RECEIVED]") {
		t.Errorf("锁超时应发送排队通知，实际 %+v", msg)
	}
	pending, _ := env.subs.ListPending(ctx)
	if len(pending) != 1 {
		t.Fatalf("提交应保留为 pending，实际 %d 条", len(pending))
	}

	outs, err := env.consolidationService().ConsolidatePending(ctx)
	if err != nil || len(outs) != 1 || outs[0].Code != "26C000" {
		t.Fatalf("重新整合应成功: %+v %v", outs, err)
	}
	if !strings.Contains(env.dispatcher.last().Subject, "[SUCCESS]") {
		t.Errorf("重新整合后应发送成功通知，实际 %s", env.dispatcher.last().Subject)
	}
}
