package service

import "strings"

// Kind 被拒结果分类
type Kind string

const (
	KindColumnMismatch   Kind = "ColumnMismatch"
	KindWindowMismatch   Kind = "WindowMismatch"
	KindCapacityExceeded Kind = "CapacityExceeded"
	KindDuplicateSignup  Kind = "DuplicateSignup"
	KindPastDateRejected Kind = "PastDateRejected"
	KindStorageFailure   Kind = "StorageFailure"
)

// Rejection 带分类的被拒结果，Reasons 保持收集顺序
type Rejection struct {
	Kind    Kind     `json:"kind"`
	Reasons []string `json:"reasons,omitempty"`
}

// Detail 人类可读的原因文本
func (r *Rejection) Detail() string {
	return JoinHuman(r.Reasons)
}

func (r *Rejection) Error() string {
	if len(r.Reasons) == 0 {
		return string(r.Kind)
	}
	return string(r.Kind) + ": " + r.Detail()
}

// JoinHuman 以英文习惯拼接列表："a"、"a and b"、"a, b, and c"
func JoinHuman(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}

// SignupStatus 报名结果
type SignupStatus string

const (
	SignupAccepted          SignupStatus = "Accepted"
	SignupRejectedFull      SignupStatus = "RejectedFull"
	SignupRejectedDuplicate SignupStatus = "RejectedDuplicate"
	SignupRejectedPastDate  SignupStatus = "RejectedPastDate"
	SignupFailed            SignupStatus = "Failed" // 存储或加锁失败
)

func signupStatusFor(kind Kind) SignupStatus {
	switch kind {
	case KindCapacityExceeded:
		return SignupRejectedFull
	case KindDuplicateSignup:
		return SignupRejectedDuplicate
	case KindPastDateRejected:
		return SignupRejectedPastDate
	default:
		return SignupFailed
	}
}
