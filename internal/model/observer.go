package model

import "time"

// 出勤状态
const (
	AttendancePresent         = "present"
	AttendanceAbsentUnexcused = "absent_unexcused"
	AttendanceAbsentExcused   = "absent_excused"
)

// 出勤历史标记
const (
	EntryPresent = "present"
	EntryAbsent  = "absent"
)

// Observer 观测员出勤汇总 — 对应 observers（name 唯一）
type Observer struct {
	ObserverID     string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"observer_id"`
	Name           string `gorm:"type:varchar(200);not null;uniqueIndex"         json:"name"`
	NightsObserved int    `gorm:"not null;default:0"                             json:"nights_observed"`
	NightsMissed   int    `gorm:"not null;default:0"                             json:"nights_missed"`
	BaseModel

	// 关联
	Entries []AttendanceEntry `gorm:"foreignKey:ObserverID;references:ObserverID" json:"entries,omitempty"`
}

// TableName 指定表名
func (Observer) TableName() string { return "observers" }

// AttendanceEntry 单晚出勤记录 — 对应 attendance_entries
// (observer_id, night_date) 唯一，重复上报被拒绝
type AttendanceEntry struct {
	EntryID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"            json:"entry_id"`
	ObserverID string    `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_observer_night" json:"observer_id"`
	NightDate  time.Time `gorm:"type:date;not null;uniqueIndex:uq_attendance_observer_night" json:"night_date"`
	Status     string    `gorm:"type:varchar(20);not null"                                 json:"status"` // present | absent
	ReportedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"                        json:"reported_at"`
}

// TableName 指定表名
func (AttendanceEntry) TableName() string { return "attendance_entries" }
