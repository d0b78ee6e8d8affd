package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/internal/model"
)

// CalendarEventRepository 日历事件数据访问接口
type CalendarEventRepository interface {
	Create(ctx context.Context, event *model.CalendarEvent) error
	List(ctx context.Context) ([]model.CalendarEvent, error)
}

type calendarEventRepo struct {
	db *gorm.DB
}

func NewCalendarEventRepo(db *gorm.DB) CalendarEventRepository {
	return &calendarEventRepo{db: db}
}

func (r *calendarEventRepo) Create(ctx context.Context, event *model.CalendarEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *calendarEventRepo) List(ctx context.Context) ([]model.CalendarEvent, error) {
	var events []model.CalendarEvent
	err := r.db.WithContext(ctx).
		Order("starts_at ASC").
		Find(&events).Error
	return events, err
}
