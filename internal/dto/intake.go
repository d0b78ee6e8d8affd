package dto

// ── 表单接入 DTO ──

// SubmissionRequest 目标提交表单回调
type SubmissionRequest struct {
	SubmittedAt    string `json:"submitted_at"` // RFC3339，缺省为接收时间
	SubmitterName  string `json:"submitter_name"  binding:"required,max=200"`
	SubmitterEmail string `json:"submitter_email" binding:"required,email"`
	SheetLink      string `json:"sheet_link"      binding:"required"`
	TargetCount    int    `json:"target_count"    binding:"required,min=1,max=500"`
	AccessLevel    string `json:"access_level"    binding:"max=50"`
}

// SignupRequest 观测报名表单回调
type SignupRequest struct {
	Name  string `json:"name"  binding:"required,max=200"`
	Email string `json:"email" binding:"required,email"`
	Date  string `json:"date"  binding:"required"` // 观测日期，如 2026-03-02
	Tier  string `json:"tier"  binding:"required"` // senior | junior（大小写不敏感）
}

// FollowupRequest 观测后回访表单回调
type FollowupRequest struct {
	Name   string `json:"name"   binding:"required,max=200"`
	Night  string `json:"night"  binding:"required"`
	Status string `json:"status" binding:"required"` // present | absent_unexcused | absent_excused，或表单原文 Yes / No (Unexcused) / No (Excused)
}
