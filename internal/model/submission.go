package model

import "time"

// 提交记录状态
const (
	SubmissionPending  = "pending"
	SubmissionStored   = "stored"
	SubmissionRejected = "rejected"
	SubmissionFailed   = "failed"
)

// 归档原因
const (
	ArchiveRollover       = "rollover"
	ArchiveRejected       = "rejected"
	ArchiveStorageFailure = "storage_failure"
)

// Submission 当前学期的提交活动日志 — 对应 submissions
// pending 为已受理未整合；stored 参与参考编号的顺序计数
type Submission struct {
	SubmissionID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"submission_id"`
	SubmittedAt    time.Time  `gorm:"not null;index"                                 json:"submitted_at"`
	SubmitterName  string     `gorm:"type:varchar(200);not null"                     json:"submitter_name"`
	SubmitterEmail string     `gorm:"type:varchar(320);not null"                     json:"submitter_email"`
	SheetLink      string     `gorm:"type:text;not null"                             json:"sheet_link"`
	TargetCount    int        `gorm:"not null"                                       json:"target_count"`
	AccessLevel    string     `gorm:"type:varchar(50);not null;default:''"           json:"access_level"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	ReferenceCode  *string    `gorm:"type:varchar(6);uniqueIndex:uq_submissions_reference_code,where:reference_code IS NOT NULL" json:"reference_code,omitempty"`
	SemesterKey    *string    `gorm:"type:varchar(3)"                                json:"semester_key,omitempty"` // 如 26C
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	BaseModel
}

// TableName 指定表名
func (Submission) TableName() string { return "submissions" }

// ArchivedSubmission 提交归档 — 对应 submission_archive
// 学期切换、校验被拒、存储失败的提交都会移入此表
type ArchivedSubmission struct {
	ArchiveID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"archive_id"`
	SubmissionID   string     `gorm:"type:uuid;not null;index"                       json:"submission_id"`
	SubmittedAt    time.Time  `gorm:"not null"                                       json:"submitted_at"`
	SubmitterName  string     `gorm:"type:varchar(200);not null"                     json:"submitter_name"`
	SubmitterEmail string     `gorm:"type:varchar(320);not null"                     json:"submitter_email"`
	SheetLink      string     `gorm:"type:text;not null"                             json:"sheet_link"`
	TargetCount    int        `gorm:"not null"                                       json:"target_count"`
	AccessLevel    string     `gorm:"type:varchar(50);not null;default:''"           json:"access_level"`
	Status         string     `gorm:"type:varchar(20);not null"                      json:"status"` // stored | rejected | failed
	ReferenceCode  *string    `gorm:"type:varchar(6)"                                json:"reference_code,omitempty"`
	SemesterKey    *string    `gorm:"type:varchar(3)"                                json:"semester_key,omitempty"`
	RejectKind     *string    `gorm:"type:varchar(40)"                               json:"reject_kind,omitempty"`
	RejectDetail   *string    `gorm:"type:text"                                      json:"reject_detail,omitempty"`
	Reason         string     `gorm:"type:varchar(20);not null"                      json:"reason"` // rollover | rejected | storage_failure
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	ArchivedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"archived_at"`
}

// TableName 指定表名
func (ArchivedSubmission) TableName() string { return "submission_archive" }

// ToArchive 生成归档行
func (s *Submission) ToArchive(status, reason string, at time.Time) *ArchivedSubmission {
	return &ArchivedSubmission{
		SubmissionID:   s.SubmissionID,
		SubmittedAt:    s.SubmittedAt,
		SubmitterName:  s.SubmitterName,
		SubmitterEmail: s.SubmitterEmail,
		SheetLink:      s.SheetLink,
		TargetCount:    s.TargetCount,
		AccessLevel:    s.AccessLevel,
		Status:         status,
		ReferenceCode:  s.ReferenceCode,
		SemesterKey:    s.SemesterKey,
		Reason:         reason,
		ProcessedAt:    s.ProcessedAt,
		ArchivedAt:     at,
	}
}
