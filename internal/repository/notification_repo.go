package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/internal/model"
)

// NotificationRepository 外发邮件记录数据访问接口
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByRecipient(ctx context.Context, recipient string, offset, limit int) ([]model.Notification, int64, error)
}

type notificationRepo struct {
	db *gorm.DB
}

func NewNotificationRepo(db *gorm.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipient string, offset, limit int) ([]model.Notification, int64, error) {
	var (
		list  []model.Notification
		total int64
	)
	db := r.db.WithContext(ctx).Model(&model.Notification{}).Where("recipient = ?", recipient)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
