package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Submission    SubmissionRepository
	Target        TargetRepository
	Night         NightRepository
	Observer      ObserverRepository
	CalendarEvent CalendarEventRepository
	Notification  NotificationRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:            db,
		Submission:    NewSubmissionRepo(db),
		Target:        NewTargetRepo(db),
		Night:         NewNightRepo(db),
		Observer:      NewObserverRepo(db),
		CalendarEvent: NewCalendarEventRepo(db),
		Notification:  NewNotificationRepo(db),
	}
}

// DB 返回底层连接（迁移、健康检查使用）
func (r *Repository) DB() *gorm.DB { return r.db }

// BeginTx 开启事务；以 mock 组装的聚合没有底层连接，返回 nil
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务的聚合；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Transaction 在单个事务内执行 fn，fn 返回错误或 panic 时回滚
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) (err error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(p)
		}
	}()

	if err := fn(r.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		return tx.Commit().Error
	}
	return nil
}
