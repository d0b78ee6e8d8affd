package model

import "time"

// 通知发送状态
const (
	NotificationSent   = "sent"
	NotificationLogged = "logged" // 未配置 SMTP，仅记录
	NotificationFailed = "failed"
)

// Notification 外发邮件记录表 — 对应 notifications
type Notification struct {
	NotificationID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	Recipient      string    `gorm:"type:varchar(320);not null;index"               json:"recipient"`
	Subject        string    `gorm:"type:varchar(300);not null"                     json:"subject"`
	Body           string    `gorm:"type:text;not null"                             json:"body"`
	Status         string    `gorm:"type:varchar(20);not null"                      json:"status"`
	Error          *string   `gorm:"type:text"                                      json:"error,omitempty"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
