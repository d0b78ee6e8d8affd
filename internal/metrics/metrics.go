// Package metrics 业务结果计数，暴露给 Prometheus。
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder 业务结果记录接口
type Recorder interface {
	SignupOutcome(tier, status string)
	SubmissionOutcome(outcome string)
	AttendanceReported(status string, applied bool)
	TargetsExpired(n int)
	NotificationSent(status string)
}

// Nop 不记录任何指标
type Nop struct{}

func (Nop) SignupOutcome(string, string)    {}
func (Nop) SubmissionOutcome(string)        {}
func (Nop) AttendanceReported(string, bool) {}
func (Nop) TargetsExpired(int)              {}
func (Nop) NotificationSent(string)         {}

// PromSink 基于 Prometheus 计数器的实现
type PromSink struct {
	signups       *prometheus.CounterVec
	submissions   *prometheus.CounterVec
	attendance    *prometheus.CounterVec
	expired       prometheus.Counter
	notifications *prometheus.CounterVec
}

// NewPromSink 在 reg 上注册指标；reg 为 nil 时使用默认注册器，已注册的指标直接复用
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	signups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrho_signups_total",
		Help: "Observing signups by tier and outcome",
	}, []string{"tier", "status"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrho_submissions_total",
		Help: "Target submissions by consolidation outcome",
	}, []string{"outcome"})
	attendance := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrho_attendance_reports_total",
		Help: "Followup attendance reports by status and whether they changed the ledger",
	}, []string{"status", "applied"})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "retrho_targets_expired_total",
		Help: "Master records moved to the expired collection",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retrho_notifications_total",
		Help: "Outbound notifications by delivery status",
	}, []string{"status"})

	var err error
	if signups, err = register(reg, signups); err != nil {
		return nil, err
	}
	if submissions, err = register(reg, submissions); err != nil {
		return nil, err
	}
	if attendance, err = register(reg, attendance); err != nil {
		return nil, err
	}
	if expired, err = register(reg, expired); err != nil {
		return nil, err
	}
	if notifications, err = register(reg, notifications); err != nil {
		return nil, err
	}

	return &PromSink{
		signups:       signups,
		submissions:   submissions,
		attendance:    attendance,
		expired:       expired,
		notifications: notifications,
	}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) SignupOutcome(tier, status string) {
	s.signups.WithLabelValues(tier, status).Inc()
}

func (s *PromSink) SubmissionOutcome(outcome string) {
	s.submissions.WithLabelValues(outcome).Inc()
}

func (s *PromSink) AttendanceReported(status string, applied bool) {
	s.attendance.WithLabelValues(status, strconv.FormatBool(applied)).Inc()
}

func (s *PromSink) TargetsExpired(n int) {
	if n > 0 {
		s.expired.Add(float64(n))
	}
}

func (s *PromSink) NotificationSent(status string) {
	s.notifications.WithLabelValues(status).Inc()
}
