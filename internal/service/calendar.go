package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
)

// CalendarClient 外部日历协作方
type CalendarClient interface {
	CreateEvent(ctx context.Context, title string, start, end time.Time) error
}

// CalendarService 观测日历业务接口
type CalendarService interface {
	// PlaceholderForNight 为新观测夜创建一个日落到次日日出的占位事件
	PlaceholderForNight(ctx context.Context, night time.Time) (Twilight, error)
	// Feed 以 iCalendar 格式导出全部观测事件
	Feed(ctx context.Context) (string, error)
}

type calendarService struct {
	client CalendarClient
	events repository.CalendarEventRepository
	title  string
	name   string
	loc    *time.Location
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
// client 为 nil 时使用基于 calendar_events 表的内置日历
func NewCalendarService(cfg *config.Config, repo *repository.Repository, client CalendarClient, logger *zap.Logger) CalendarService {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		loc = time.UTC
	}
	if client == nil {
		client = NewStoredCalendar(repo.CalendarEvent, loc)
	}
	return &calendarService{
		client: client,
		events: repo.CalendarEvent,
		title:  cfg.Schedule.CalendarTitle,
		name:   cfg.Schedule.CalendarName,
		loc:    loc,
		logger: logger,
	}
}

func (s *calendarService) PlaceholderForNight(ctx context.Context, night time.Time) (Twilight, error) {
	tw := TwilightFor(night, s.loc)
	if err := s.client.CreateEvent(ctx, s.title, tw.Sunset, tw.Sunrise); err != nil {
		s.logger.Error("创建观测日历事件失败",
			zap.String("night", night.Format("2006-01-02")),
			zap.Error(err),
		)
		return tw, err
	}
	s.logger.Info("已创建观测日历事件",
		zap.String("night", night.Format("2006-01-02")),
		zap.Time("sunset", tw.Sunset),
		zap.Time("sunrise", tw.Sunrise),
	)
	return tw, nil
}

func (s *calendarService) Feed(ctx context.Context) (string, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		s.logger.Error("查询日历事件失败", zap.Error(err))
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//RETRHO//Observing Schedule//EN")
	cal.SetXWRCalName(s.name)
	cal.SetXWRTimezone(s.loc.String())

	for _, e := range events {
		ev := cal.AddEvent(e.UID)
		ev.SetCreatedTime(e.CreatedAt)
		ev.SetDtStampTime(e.CreatedAt)
		ev.SetStartAt(e.StartsAt)
		ev.SetEndAt(e.EndsAt)
		ev.SetSummary(e.Title)
	}
	return cal.Serialize(), nil
}

// ── 内置日历 ──

// StoredCalendar 把事件写入 calendar_events，由 /calendar.ics 对外发布
type StoredCalendar struct {
	repo repository.CalendarEventRepository
	loc  *time.Location
}

// NewStoredCalendar 创建内置日历
func NewStoredCalendar(repo repository.CalendarEventRepository, loc *time.Location) *StoredCalendar {
	return &StoredCalendar{repo: repo, loc: loc}
}

func (c *StoredCalendar) CreateEvent(ctx context.Context, title string, start, end time.Time) error {
	night := dateOnly(start, c.loc)
	return c.repo.Create(ctx, &model.CalendarEvent{
		UID:       fmt.Sprintf("observing-%s@retrho", night.Format("20060102")),
		Title:     title,
		NightDate: night,
		StartsAt:  start.UTC(),
		EndsAt:    end.UTC(),
	})
}
