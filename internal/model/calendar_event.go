package model

import "time"

// CalendarEvent 观测日历占位事件 — 对应 calendar_events
type CalendarEvent struct {
	EventID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"event_id"`
	UID       string    `gorm:"type:varchar(200);not null;uniqueIndex"         json:"uid"`
	Title     string    `gorm:"type:varchar(200);not null"                     json:"title"`
	NightDate time.Time `gorm:"type:date;not null;index"                       json:"night_date"`
	StartsAt  time.Time `gorm:"not null"                                       json:"starts_at"`
	EndsAt    time.Time `gorm:"not null"                                       json:"ends_at"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (CalendarEvent) TableName() string { return "calendar_events" }
