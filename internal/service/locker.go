package service

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/paeinovis/RETRHO-administrative/pkg/errors"
)

// Locker 按 key 的单写者锁；Redis 客户端与进程内实现均满足此接口
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// 锁名
const intakeLockKey = "intake"

func nightLockKey(date time.Time) string {
	return "night:" + date.Format("2006-01-02")
}

// lockWaitTimeout 等待锁的上限，超时返回 ErrLockNotAcquired
const lockWaitTimeout = 15 * time.Second

// LocalLocker 进程内按 key 的互斥锁（单实例部署）
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot)
		return nil, pkgerrors.ErrLockNotAcquired
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.release(key, slot)
		})
	}, nil
}

func (l *LocalLocker) release(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// withLock 在 key 锁内执行 fn
func withLock(ctx context.Context, locker Locker, key string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockWaitTimeout)
	defer cancel()

	unlock, err := locker.Lock(lockCtx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
