package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/metrics"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
)

// ── 出勤模块业务错误 ──

var (
	ErrInvalidAttendanceStatus = errors.New("出勤状态无效")
	ErrObserverNotFound        = errors.New("观测员不存在")
)

// AttendanceService 观测出勤业务接口
type AttendanceService interface {
	// ReportAttendance 处理回访表单；同一观测员同一晚的重复上报与请假均不改动记录
	ReportAttendance(ctx context.Context, req *dto.FollowupRequest) (*dto.AttendanceResponse, error)
	GetObserver(ctx context.Context, name string) (*dto.ObserverResponse, error)
	ListObservers(ctx context.Context) ([]dto.ObserverResponse, error)
}

type attendanceService struct {
	repo    *repository.Repository
	locker  Locker
	metrics metrics.Recorder
	logger  *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, locker Locker, rec metrics.Recorder, logger *zap.Logger) AttendanceService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &attendanceService{repo: repo, locker: locker, metrics: rec, logger: logger}
}

// ParseAttendanceStatus 接受规范值或回访表单原文
func ParseAttendanceStatus(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case model.AttendancePresent, "yes":
		return model.AttendancePresent, nil
	case model.AttendanceAbsentUnexcused, "no (unexcused)", "unexcused":
		return model.AttendanceAbsentUnexcused, nil
	case model.AttendanceAbsentExcused, "no (excused)", "excused":
		return model.AttendanceAbsentExcused, nil
	default:
		return "", ErrInvalidAttendanceStatus
	}
}

// ────────────────────── ReportAttendance ──────────────────────

func (s *attendanceService) ReportAttendance(ctx context.Context, req *dto.FollowupRequest) (*dto.AttendanceResponse, error) {
	status, err := ParseAttendanceStatus(req.Status)
	if err != nil {
		return nil, err
	}
	night, err := ParseDate(req.Night)
	if err != nil {
		return nil, ErrInvalidNightDate
	}
	name := strings.TrimSpace(req.Name)

	if status == model.AttendanceAbsentExcused {
		s.metrics.AttendanceReported(status, false)
		return &dto.AttendanceResponse{Applied: false}, nil
	}

	var (
		observer *model.Observer
		applied  bool
	)
	err = withLock(ctx, s.locker, "observer:"+name, func() error {
		return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			var err error
			observer, err = tx.Observer.GetByName(ctx, name)
			isNew := errors.Is(err, gorm.ErrRecordNotFound)
			if err != nil && !isNew {
				return err
			}

			if !isNew {
				seen, err := tx.Observer.HasEntry(ctx, observer.ObserverID, night)
				if err != nil {
					return err
				}
				if seen {
					return nil
				}
			} else {
				observer = &model.Observer{Name: name}
			}

			entry := &model.AttendanceEntry{NightDate: night}
			if status == model.AttendancePresent {
				observer.NightsObserved++
				entry.Status = model.EntryPresent
			} else {
				observer.NightsMissed++
				entry.Status = model.EntryAbsent
			}

			if isNew {
				if err := tx.Observer.Create(ctx, observer); err != nil {
					return err
				}
			} else if err := tx.Observer.UpdateCounts(ctx, observer); err != nil {
				return err
			}

			entry.ObserverID = observer.ObserverID
			if err := tx.Observer.AddEntry(ctx, entry); err != nil {
				return err
			}
			observer.Entries = append(observer.Entries, *entry)
			applied = true
			return nil
		})
	})
	if err != nil {
		s.logger.Error("记录出勤失败",
			zap.String("name", name),
			zap.String("night", night.Format("2006-01-02")),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.AttendanceReported(status, applied)
	s.logger.Info("处理出勤回访",
		zap.String("name", name),
		zap.String("night", night.Format("2006-01-02")),
		zap.String("status", status),
		zap.Bool("applied", applied),
	)
	return &dto.AttendanceResponse{Applied: applied, Observer: toObserverResponse(observer)}, nil
}

// ────────────────────── 查询 ──────────────────────

func (s *attendanceService) GetObserver(ctx context.Context, name string) (*dto.ObserverResponse, error) {
	observer, err := s.repo.Observer.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrObserverNotFound
		}
		s.logger.Error("查询观测员失败", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return toObserverResponse(observer), nil
}

func (s *attendanceService) ListObservers(ctx context.Context) ([]dto.ObserverResponse, error) {
	observers, err := s.repo.Observer.List(ctx)
	if err != nil {
		s.logger.Error("列出观测员失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.ObserverResponse, 0, len(observers))
	for i := range observers {
		result = append(result, *toObserverResponse(&observers[i]))
	}
	return result, nil
}

func toObserverResponse(o *model.Observer) *dto.ObserverResponse {
	if o == nil {
		return nil
	}
	resp := &dto.ObserverResponse{
		Name:           o.Name,
		NightsObserved: o.NightsObserved,
		NightsMissed:   o.NightsMissed,
		History:        make([]dto.AttendanceHistItem, 0, len(o.Entries)),
	}
	for _, e := range o.Entries {
		resp.History = append(resp.History, dto.AttendanceHistItem{
			Night:  e.NightDate.Format("2006-01-02"),
			Status: e.Status,
		})
	}
	return resp
}
