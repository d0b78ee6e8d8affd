package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/internal/model"
)

// ObserverRepository 观测员出勤数据访问接口
type ObserverRepository interface {
	Create(ctx context.Context, observer *model.Observer) error
	GetByName(ctx context.Context, name string) (*model.Observer, error)
	// UpdateCounts 仅更新出勤计数
	UpdateCounts(ctx context.Context, observer *model.Observer) error
	AddEntry(ctx context.Context, entry *model.AttendanceEntry) error
	HasEntry(ctx context.Context, observerID string, night time.Time) (bool, error)
	List(ctx context.Context) ([]model.Observer, error)
}

// ── Observer Repository 实现 ──

type observerRepo struct {
	db *gorm.DB
}

func NewObserverRepo(db *gorm.DB) ObserverRepository {
	return &observerRepo{db: db}
}

func entriesByNight(db *gorm.DB) *gorm.DB {
	return db.Order("night_date ASC")
}

func (r *observerRepo) Create(ctx context.Context, observer *model.Observer) error {
	return r.db.WithContext(ctx).Omit("Entries").Create(observer).Error
}

func (r *observerRepo) GetByName(ctx context.Context, name string) (*model.Observer, error) {
	var observer model.Observer
	err := r.db.WithContext(ctx).
		Preload("Entries", entriesByNight).
		Where("name = ?", name).
		First(&observer).Error
	if err != nil {
		return nil, err
	}
	return &observer, nil
}

func (r *observerRepo) UpdateCounts(ctx context.Context, observer *model.Observer) error {
	return r.db.WithContext(ctx).
		Model(&model.Observer{}).
		Where("observer_id = ?", observer.ObserverID).
		Updates(map[string]interface{}{
			"nights_observed": observer.NightsObserved,
			"nights_missed":   observer.NightsMissed,
			"updated_at":      time.Now().UTC(),
		}).Error
}

func (r *observerRepo) AddEntry(ctx context.Context, entry *model.AttendanceEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *observerRepo) HasEntry(ctx context.Context, observerID string, night time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceEntry{}).
		Where("observer_id = ? AND night_date = ?", observerID, night).
		Count(&n).Error
	return n > 0, err
}

func (r *observerRepo) List(ctx context.Context) ([]model.Observer, error) {
	var observers []model.Observer
	err := r.db.WithContext(ctx).
		Preload("Entries", entriesByNight).
		Order("name ASC").
		Find(&observers).Error
	return observers, err
}
