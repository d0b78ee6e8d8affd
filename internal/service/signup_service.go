package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/dto"
	"github.com/paeinovis/RETRHO-administrative/internal/metrics"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/notify"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
)

// ── 观测报名模块业务错误 ──

var (
	ErrInvalidTier      = errors.New("报名档位必须为 senior 或 junior")
	ErrInvalidNightDate = errors.New("观测日期格式无效")
	ErrNightNotFound    = errors.New("观测夜不存在")
)

// SignupOutcome 一次报名的处理结果
type SignupOutcome struct {
	Status    SignupStatus
	Rejection *Rejection // Accepted 时为 nil
	NewNight  bool
	Night     *model.ScheduledNight
}

// SignupService 观测排班业务接口
type SignupService interface {
	Signup(ctx context.Context, req *dto.SignupRequest) (*SignupOutcome, error)
	// ListNights 默认日期升序，desc 为 true 时最新日期在前
	ListNights(ctx context.Context, desc bool) ([]dto.NightResponse, error)
	GetNight(ctx context.Context, date string) (*dto.NightResponse, error)
	ToNightResponse(night *model.ScheduledNight) *dto.NightResponse
}

type signupService struct {
	repo      *repository.Repository
	calendar  CalendarService
	renderer  *notify.Renderer
	locker    Locker
	notifier  notify.Dispatcher
	metrics   metrics.Recorder
	clock     Clock
	loc       *time.Location
	maxJunior int
	logger    *zap.Logger
}

// NewSignupService 创建 SignupService 实例
func NewSignupService(
	cfg *config.Config,
	repo *repository.Repository,
	calendar CalendarService,
	renderer *notify.Renderer,
	collab Collaborators,
	logger *zap.Logger,
) SignupService {
	collab = collab.withDefaults(cfg, repo, logger)
	return &signupService{
		repo:      repo,
		calendar:  calendar,
		renderer:  renderer,
		locker:    collab.Locker,
		notifier:  collab.Dispatcher,
		metrics:   collab.Metrics,
		clock:     collab.Clock,
		loc:       observatoryLocation(cfg),
		maxJunior: cfg.Schedule.MaxJunior,
		logger:    logger,
	}
}

func observatoryLocation(cfg *config.Config) *time.Location {
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

// ────────────────────── Signup ──────────────────────

func (s *signupService) Signup(ctx context.Context, req *dto.SignupRequest) (*SignupOutcome, error) {
	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if tier != model.TierSenior && tier != model.TierJunior {
		return nil, ErrInvalidTier
	}
	date, err := ParseDate(req.Date)
	if err != nil {
		return nil, ErrInvalidNightDate
	}
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)

	var out *SignupOutcome
	if date.Before(dateOnly(s.clock(), s.loc)) {
		out = rejectedSignup(KindPastDateRejected)
	} else {
		out, err = s.place(ctx, date, name, email, tier)
		if err != nil {
			s.logger.Error("报名写入失败",
				zap.String("name", name),
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err),
			)
			out = &SignupOutcome{
				Status:    SignupFailed,
				Rejection: &Rejection{Kind: KindStorageFailure, Reasons: []string{err.Error()}},
			}
		}
	}

	if out.NewNight {
		// 日历占位失败不影响报名结果
		_, _ = s.calendar.PlaceholderForNight(ctx, date)
	}

	s.metrics.SignupOutcome(tier, string(out.Status))
	s.notify(ctx, email, name, date, out)

	s.logger.Info("处理观测报名",
		zap.String("name", name),
		zap.String("tier", tier),
		zap.String("date", date.Format("2006-01-02")),
		zap.String("status", string(out.Status)),
		zap.Bool("new_night", out.NewNight),
	)
	return out, nil
}

func rejectedSignup(kind Kind) *SignupOutcome {
	return &SignupOutcome{Status: signupStatusFor(kind), Rejection: &Rejection{Kind: kind}}
}

// place 在 night 锁与事务内完成读-判-写
func (s *signupService) place(ctx context.Context, date time.Time, name, email, tier string) (*SignupOutcome, error) {
	var out *SignupOutcome
	err := withLock(ctx, s.locker, nightLockKey(date), func() error {
		return s.repo.Transaction(ctx, func(tx *repository.Repository) error {
			night, err := tx.Night.GetByDateForUpdate(ctx, date)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			newNight := night == nil
			if newNight {
				night = &model.ScheduledNight{NightDate: date}
			} else if kind := s.check(night, name, tier); kind != "" {
				out = rejectedSignup(kind)
				out.Night = night
				return nil
			}

			if tier == model.TierJunior {
				night.JuniorCount++
			} else {
				night.SeniorName = &name
				night.SeniorEmail = &email
			}

			if newNight {
				if err := tx.Night.Create(ctx, night); err != nil {
					return err
				}
			} else if err := tx.Night.Update(ctx, night); err != nil {
				return err
			}

			signup := &model.NightSignup{
				NightID:      night.NightID,
				ObserverName: name,
				Email:        email,
				Tier:         tier,
				Position:     len(night.Signups),
			}
			if err := tx.Night.AddSignup(ctx, signup); err != nil {
				return err
			}
			night.Signups = append(night.Signups, *signup)

			out = &SignupOutcome{Status: SignupAccepted, NewNight: newNight, Night: night}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// check 已有观测夜上的容量与重复校验，通过时返回空
func (s *signupService) check(night *model.ScheduledNight, name, tier string) Kind {
	if tier == model.TierSenior {
		if night.HasObserver(name) {
			return KindDuplicateSignup
		}
		if night.SeniorName != nil {
			return KindCapacityExceeded
		}
		return ""
	}
	if night.JuniorCount >= s.maxJunior {
		return KindCapacityExceeded
	}
	if night.HasObserver(name) {
		return KindDuplicateSignup
	}
	return ""
}

func (s *signupService) notify(ctx context.Context, to, name string, date time.Time, out *SignupOutcome) {
	var (
		msg notify.Message
		err error
	)
	if out.Status == SignupAccepted {
		msg, err = s.renderer.SignupSuccess(to, name, DisplayDate(date))
	} else {
		msg, err = s.renderer.SignupFailure(to, name, DisplayDate(date), string(out.Rejection.Kind))
	}
	if err != nil {
		s.logger.Error("渲染报名通知失败", zap.Error(err))
		return
	}
	notify.Deliver(ctx, s.notifier, msg, s.logger)
}

// ────────────────────── 查询 ──────────────────────

func (s *signupService) ListNights(ctx context.Context, desc bool) ([]dto.NightResponse, error) {
	nights, err := s.repo.Night.List(ctx, desc)
	if err != nil {
		s.logger.Error("列出观测夜失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.NightResponse, 0, len(nights))
	for i := range nights {
		result = append(result, *s.ToNightResponse(&nights[i]))
	}
	return result, nil
}

func (s *signupService) GetNight(ctx context.Context, date string) (*dto.NightResponse, error) {
	d, err := ParseDate(date)
	if err != nil {
		return nil, ErrInvalidNightDate
	}
	night, err := s.repo.Night.GetByDate(ctx, d)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNightNotFound
		}
		s.logger.Error("查询观测夜失败", zap.String("date", date), zap.Error(err))
		return nil, err
	}
	return s.ToNightResponse(night), nil
}

func (s *signupService) ToNightResponse(night *model.ScheduledNight) *dto.NightResponse {
	juniors := night.Juniors()
	names := make([]string, 0, len(juniors))
	for _, j := range juniors {
		names = append(names, j.ObserverName)
	}
	resp := &dto.NightResponse{
		Date:        night.NightDate.Format("2006-01-02"),
		JuniorCount: night.JuniorCount,
		Juniors:     names,
		Sunset:      SunsetLabel(night.NightDate, s.loc),
	}
	if night.SeniorName != nil {
		resp.Senior = *night.SeniorName
	}
	return resp
}
