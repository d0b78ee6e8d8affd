package model

import "time"

// TargetFields 目标行的公共字段，主表与过期表共用
type TargetFields struct {
	SubmissionID   string    `gorm:"type:uuid;not null"          json:"submission_id"`
	ReferenceCode  string    `gorm:"type:varchar(6);not null"    json:"reference_code"`
	SubmitterName  string    `gorm:"type:varchar(200);not null"  json:"submitter_name"`
	SubmitterEmail string    `gorm:"type:varchar(320);not null"  json:"submitter_email"`
	AccessLevel    string    `gorm:"type:varchar(50);not null"   json:"access_level"`
	SubmittedAt    time.Time `gorm:"not null"                    json:"submitted_at"`
	RowIndex       int       `gorm:"not null"                    json:"row_index"` // 在原提交表中的顺序
	TargetName     string    `gorm:"type:varchar(200);not null"  json:"target_name"`
	WindowOpen     time.Time `gorm:"type:date;not null"          json:"window_open"`
	WindowClose    time.Time `gorm:"type:date;not null;index"    json:"window_close"`
	Cells          []string  `gorm:"type:jsonb;serializer:json"  json:"cells"` // 模板 24 列原始文本
}

// MasterRecord 目标主表 — 对应 target_master
type MasterRecord struct {
	RecordID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	TargetFields
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName 指定表名
func (MasterRecord) TableName() string { return "target_master" }

// ExpiredTarget 已过观测窗口的目标 — 对应 expired_targets
type ExpiredTarget struct {
	ExpiredID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"expired_id"`
	RecordID  string `gorm:"type:uuid;not null"                             json:"record_id"`
	TargetFields
	ExpiredAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"expired_at"`
}

// TableName 指定表名
func (ExpiredTarget) TableName() string { return "expired_targets" }
