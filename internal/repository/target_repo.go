package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/internal/model"
)

// TargetRepository 目标主表与过期表数据访问接口
type TargetRepository interface {
	BatchCreate(ctx context.Context, records []model.MasterRecord) error
	List(ctx context.Context, offset, limit int) ([]model.MasterRecord, int64, error)
	ListAll(ctx context.Context) ([]model.MasterRecord, error)
	// ListClosedBefore 观测窗口关闭日期早于 day 的目标
	ListClosedBefore(ctx context.Context, day time.Time) ([]model.MasterRecord, error)
	// MoveToExpired 将主表记录移入过期表
	MoveToExpired(ctx context.Context, records []model.MasterRecord, at time.Time) error
	ListExpired(ctx context.Context) ([]model.ExpiredTarget, error)
}

// ── Target Repository 实现 ──

type targetRepo struct {
	db *gorm.DB
}

func NewTargetRepo(db *gorm.DB) TargetRepository {
	return &targetRepo{db: db}
}

func (r *targetRepo) BatchCreate(ctx context.Context, records []model.MasterRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(records, 100).Error
}

func (r *targetRepo) List(ctx context.Context, offset, limit int) ([]model.MasterRecord, int64, error) {
	var (
		records []model.MasterRecord
		total   int64
	)
	db := r.db.WithContext(ctx).Model(&model.MasterRecord{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("submitted_at ASC, row_index ASC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	return records, total, err
}

func (r *targetRepo) ListAll(ctx context.Context) ([]model.MasterRecord, error) {
	var records []model.MasterRecord
	err := r.db.WithContext(ctx).
		Order("submitted_at ASC, row_index ASC").
		Find(&records).Error
	return records, err
}

func (r *targetRepo) ListClosedBefore(ctx context.Context, day time.Time) ([]model.MasterRecord, error) {
	var records []model.MasterRecord
	err := r.db.WithContext(ctx).
		Where("window_close < ?", day).
		Order("window_close ASC").
		Find(&records).Error
	return records, err
}

func (r *targetRepo) MoveToExpired(ctx context.Context, records []model.MasterRecord, at time.Time) error {
	if len(records) == 0 {
		return nil
	}
	expired := make([]model.ExpiredTarget, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		expired = append(expired, model.ExpiredTarget{
			RecordID:     rec.RecordID,
			TargetFields: rec.TargetFields,
			ExpiredAt:    at,
		})
		ids = append(ids, rec.RecordID)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(expired, 100).Error; err != nil {
			return err
		}
		return tx.Where("record_id IN ?", ids).Delete(&model.MasterRecord{}).Error
	})
}

func (r *targetRepo) ListExpired(ctx context.Context) ([]model.ExpiredTarget, error) {
	var expired []model.ExpiredTarget
	err := r.db.WithContext(ctx).
		Order("expired_at DESC, window_close ASC").
		Find(&expired).Error
	return expired, err
}
