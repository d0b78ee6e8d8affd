package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/internal/model"
)

// SubmissionRepository 提交活动日志与归档数据访问接口
type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	// LatestStored 当前活动日志中最近一条已存储的提交，无记录时返回 gorm.ErrRecordNotFound
	LatestStored(ctx context.Context) (*model.Submission, error)
	CountStored(ctx context.Context) (int64, error)
	MarkStored(ctx context.Context, id, code, semesterKey string, at time.Time) error
	// ListPending 按提交时间升序
	ListPending(ctx context.Context) ([]model.Submission, error)
	// ArchiveStored 将活动日志中全部已存储的提交移入归档（学期切换）
	ArchiveStored(ctx context.Context, at time.Time) (int64, error)
	// Archive 将单条提交移入归档并从活动日志删除
	Archive(ctx context.Context, entry *model.ArchivedSubmission) error
	ListArchive(ctx context.Context, offset, limit int) ([]model.ArchivedSubmission, int64, error)
}

// ── Submission Repository 实现 ──

type submissionRepo struct {
	db *gorm.DB
}

func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, sub *model.Submission) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", id).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) LatestStored(ctx context.Context) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SubmissionStored).
		Order("submitted_at DESC, created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *submissionRepo) CountStored(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("status = ?", model.SubmissionStored).
		Count(&n).Error
	return n, err
}

func (r *submissionRepo) MarkStored(ctx context.Context, id, code, semesterKey string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submission_id = ?", id).
		Updates(map[string]interface{}{
			"status":         model.SubmissionStored,
			"reference_code": code,
			"semester_key":   semesterKey,
			"processed_at":   at,
			"updated_at":     at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepo) ListPending(ctx context.Context) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SubmissionPending).
		Order("submitted_at ASC").
		Find(&subs).Error
	return subs, err
}

func (r *submissionRepo) ArchiveStored(ctx context.Context, at time.Time) (int64, error) {
	var stored []model.Submission
	if err := r.db.WithContext(ctx).
		Where("status = ?", model.SubmissionStored).
		Find(&stored).Error; err != nil {
		return 0, err
	}
	if len(stored) == 0 {
		return 0, nil
	}

	entries := make([]model.ArchivedSubmission, 0, len(stored))
	ids := make([]string, 0, len(stored))
	for i := range stored {
		entries = append(entries, *stored[i].ToArchive(model.SubmissionStored, model.ArchiveRollover, at))
		ids = append(ids, stored[i].SubmissionID)
	}

	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entries).Error; err != nil {
			return err
		}
		result := tx.Where("submission_id IN ?", ids).Delete(&model.Submission{})
		moved = result.RowsAffected
		return result.Error
	})
	return moved, err
}

func (r *submissionRepo) Archive(ctx context.Context, entry *model.ArchivedSubmission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		return tx.Where("submission_id = ?", entry.SubmissionID).
			Delete(&model.Submission{}).Error
	})
}

func (r *submissionRepo) ListArchive(ctx context.Context, offset, limit int) ([]model.ArchivedSubmission, int64, error) {
	var (
		entries []model.ArchivedSubmission
		total   int64
	)
	db := r.db.WithContext(ctx).Model(&model.ArchivedSubmission{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("archived_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	return entries, total, err
}
