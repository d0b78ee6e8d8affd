package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/paeinovis/RETRHO-administrative/internal/model"
	pkgerrors "github.com/paeinovis/RETRHO-administrative/pkg/errors"
)

// NightRepository 观测夜与报名数据访问接口
type NightRepository interface {
	Create(ctx context.Context, night *model.ScheduledNight) error
	GetByDate(ctx context.Context, date time.Time) (*model.ScheduledNight, error)
	// GetByDateForUpdate 行级锁读取，须在事务内调用
	GetByDateForUpdate(ctx context.Context, date time.Time) (*model.ScheduledNight, error)
	Update(ctx context.Context, night *model.ScheduledNight) error
	AddSignup(ctx context.Context, signup *model.NightSignup) error
	// List 按日期排序返回全部观测夜，desc 为 true 时最新日期在前
	List(ctx context.Context, desc bool) ([]model.ScheduledNight, error)
}

// ── Night Repository 实现 ──

type nightRepo struct {
	db *gorm.DB
}

func NewNightRepo(db *gorm.DB) NightRepository {
	return &nightRepo{db: db}
}

func preloadSignups(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *nightRepo) Create(ctx context.Context, night *model.ScheduledNight) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(night).Error
}

func (r *nightRepo) GetByDate(ctx context.Context, date time.Time) (*model.ScheduledNight, error) {
	var night model.ScheduledNight
	err := r.db.WithContext(ctx).
		Preload("Signups", preloadSignups).
		Where("night_date = ?", date).
		First(&night).Error
	if err != nil {
		return nil, err
	}
	return &night, nil
}

func (r *nightRepo) GetByDateForUpdate(ctx context.Context, date time.Time) (*model.ScheduledNight, error) {
	var night model.ScheduledNight
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("night_date = ?", date).
		First(&night).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("night_id = ?", night.NightID).
		Order("position ASC").
		Find(&night.Signups).Error; err != nil {
		return nil, err
	}
	return &night, nil
}

func (r *nightRepo) Update(ctx context.Context, night *model.ScheduledNight) error {
	oldVersion := night.Version
	result := r.db.WithContext(ctx).
		Model(&model.ScheduledNight{}).
		Where("night_id = ? AND version = ?", night.NightID, oldVersion).
		Updates(map[string]interface{}{
			"junior_count": night.JuniorCount,
			"senior_name":  night.SeniorName,
			"senior_email": night.SeniorEmail,
			"updated_at":   time.Now().UTC(),
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	night.Version = oldVersion + 1
	return nil
}

func (r *nightRepo) AddSignup(ctx context.Context, signup *model.NightSignup) error {
	return r.db.WithContext(ctx).Create(signup).Error
}

func (r *nightRepo) List(ctx context.Context, desc bool) ([]model.ScheduledNight, error) {
	order := "night_date ASC"
	if desc {
		order = "night_date DESC"
	}
	var nights []model.ScheduledNight
	err := r.db.WithContext(ctx).
		Preload("Signups", preloadSignups).
		Order(order).
		Find(&nights).Error
	return nights, err
}
