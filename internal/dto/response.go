package dto

import "time"

// ── 目标提交响应 ──

// SubmissionResponse 提交受理与整合结果
type SubmissionResponse struct {
	SubmissionID  string   `json:"submission_id"`
	Status        string   `json:"status"` // stored | rejected | failed
	ReferenceCode string   `json:"reference_code,omitempty"`
	Targets       []string `json:"targets,omitempty"`
	Kind          string   `json:"kind,omitempty"`
	Reasons       []string `json:"reasons,omitempty"`
	Detail        string   `json:"detail,omitempty"`
}

// ArchivedSubmissionResponse 归档提交
type ArchivedSubmissionResponse struct {
	SubmissionID   string    `json:"submission_id"`
	SubmittedAt    time.Time `json:"submitted_at"`
	SubmitterName  string    `json:"submitter_name"`
	SubmitterEmail string    `json:"submitter_email"`
	TargetCount    int       `json:"target_count"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason"`
	ReferenceCode  string    `json:"reference_code,omitempty"`
	RejectKind     string    `json:"reject_kind,omitempty"`
	RejectDetail   string    `json:"reject_detail,omitempty"`
	ArchivedAt     time.Time `json:"archived_at"`
}

// TargetResponse 目标主表记录
type TargetResponse struct {
	RecordID       string    `json:"record_id"`
	ReferenceCode  string    `json:"reference_code"`
	TargetName     string    `json:"target_name"`
	SubmitterName  string    `json:"submitter_name"`
	SubmitterEmail string    `json:"submitter_email"`
	AccessLevel    string    `json:"access_level"`
	SubmittedAt    time.Time `json:"submitted_at"`
	WindowOpen     string    `json:"window_open"`
	WindowClose    string    `json:"window_close"`
	Cells          []string  `json:"cells"`
}

// SweepResponse 过期清理结果
type SweepResponse struct {
	Moved int    `json:"moved"`
	Today string `json:"today"`
}

// ── 观测排班响应 ──

// SignupResponse 报名结果
type SignupResponse struct {
	Status   string         `json:"status"` // Accepted | RejectedFull | RejectedDuplicate | RejectedPastDate
	Kind     string         `json:"kind,omitempty"`
	NewNight bool           `json:"new_night"`
	Night    *NightResponse `json:"night,omitempty"`
}

// NightResponse 观测夜
type NightResponse struct {
	Date        string   `json:"date"`
	JuniorCount int      `json:"junior_count"`
	Juniors     []string `json:"juniors"`
	Senior      string   `json:"senior,omitempty"`
	Sunset      string   `json:"sunset"`
}

// ── 出勤响应 ──

// AttendanceResponse 回访处理结果
type AttendanceResponse struct {
	Applied  bool              `json:"applied"` // false 表示重复或请假，未改动记录
	Observer *ObserverResponse `json:"observer,omitempty"`
}

// ObserverResponse 观测员出勤汇总
type ObserverResponse struct {
	Name           string               `json:"name"`
	NightsObserved int                  `json:"nights_observed"`
	NightsMissed   int                  `json:"nights_missed"`
	History        []AttendanceHistItem `json:"history,omitempty"`
}

// AttendanceHistItem 单晚出勤
type AttendanceHistItem struct {
	Night  string `json:"night"`
	Status string `json:"status"` // present | absent
}
