package model

import "time"

// 报名档位
const (
	TierSenior = "senior"
	TierJunior = "junior"
)

// ScheduledNight 观测夜 — 对应 scheduled_nights（每个日期至多一行）
type ScheduledNight struct {
	NightID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"night_id"`
	NightDate   time.Time `gorm:"type:date;not null;uniqueIndex"                 json:"night_date"`
	JuniorCount int       `gorm:"not null;default:0"                             json:"junior_count"`
	SeniorName  *string   `gorm:"type:varchar(200)"                              json:"senior_name,omitempty"`
	SeniorEmail *string   `gorm:"type:varchar(320)"                              json:"senior_email,omitempty"`
	VersionedModel

	// 关联
	Signups []NightSignup `gorm:"foreignKey:NightID;references:NightID" json:"signups,omitempty"`
}

// TableName 指定表名
func (ScheduledNight) TableName() string { return "scheduled_nights" }

// Juniors 按报名顺序返回 junior 名单
func (n *ScheduledNight) Juniors() []NightSignup {
	out := make([]NightSignup, 0, len(n.Signups))
	for _, s := range n.Signups {
		if s.Tier == TierJunior {
			out = append(out, s)
		}
	}
	return out
}

// HasObserver 名字是否已出现在当晚名单（junior 或 senior）
func (n *ScheduledNight) HasObserver(name string) bool {
	if n.SeniorName != nil && *n.SeniorName == name {
		return true
	}
	for _, s := range n.Signups {
		if s.ObserverName == name {
			return true
		}
	}
	return false
}

// NightSignup 观测夜报名明细 — 对应 night_signups
type NightSignup struct {
	SignupID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"signup_id"`
	NightID      string    `gorm:"type:uuid;not null;index"                       json:"night_id"`
	ObserverName string    `gorm:"type:varchar(200);not null"                     json:"observer_name"`
	Email        string    `gorm:"type:varchar(320);not null"                     json:"email"`
	Tier         string    `gorm:"type:varchar(10);not null"                      json:"tier"` // senior | junior
	Position     int       `gorm:"not null"                                       json:"position"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (NightSignup) TableName() string { return "night_signups" }
