package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	today time.Time
	err   error
	seen  []time.Time
}

func (s *countingSweeper) SweepExpired(ctx context.Context, today time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("缺少超时")
	}
	s.calls++
	s.seen = append(s.seen, today)
	return 1, s.err
}

func (s *countingSweeper) Today() time.Time { return s.today }

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestStartExpirySweepJob_Disabled(t *testing.T) {
	sweeper := &countingSweeper{}
	done := StartExpirySweepJob(context.Background(), config.JobsConfig{ExpirySweepEnabled: false}, sweeper, zap.NewNop())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("未启用时应立即结束")
	}
	if sweeper.count() != 0 {
		t.Errorf("期望不执行清理，实际 %d 次", sweeper.count())
	}
}

func TestStartExpirySweepJob_RunsUntilCancelled(t *testing.T) {
	today := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	sweeper := &countingSweeper{today: today}
	ctx, cancel := context.WithCancel(context.Background())

	done := StartExpirySweepJob(ctx, config.JobsConfig{
		ExpirySweepEnabled:  true,
		ExpirySweepInterval: 10 * time.Millisecond,
		ExpirySweepTimeout:  time.Second,
	}, sweeper, zap.NewNop())

	deadline := time.Now().Add(2 * time.Second)
	for sweeper.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("取消后后台任务应退出")
	}
	if sweeper.count() < 3 {
		t.Fatalf("期望至少 3 次清理，实际 %d 次", sweeper.count())
	}
	if !sweeper.seen[0].Equal(today) {
		t.Errorf("期望使用 Today() 的日期，实际 %v", sweeper.seen[0])
	}
}

func TestSweepOnce_ErrorIsLogged(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	sweepOnce(context.Background(), sweeper, time.Second, zap.NewNop())
	if sweeper.count() != 1 {
		t.Errorf("期望执行 1 次，实际 %d 次", sweeper.count())
	}
}
