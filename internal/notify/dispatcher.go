// Package notify 结果通知的渲染与投递。
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"

	"github.com/paeinovis/RETRHO-administrative/config"
	"github.com/paeinovis/RETRHO-administrative/internal/metrics"
	"github.com/paeinovis/RETRHO-administrative/internal/model"
	"github.com/paeinovis/RETRHO-administrative/internal/repository"
)

// Dispatcher 邮件投递接口
type Dispatcher interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// ── SMTP ──

// SMTPDispatcher 通过 SMTP 发送 HTML 邮件
type SMTPDispatcher struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPDispatcher 根据邮件配置创建 SMTP 投递器
func NewSMTPDispatcher(cfg *config.MailConfig) *SMTPDispatcher {
	return &SMTPDispatcher{
		dialer: mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, htmlBody string) error {
	// DialAndSend 不接受 ctx，仅在发送前检查取消
	if err := ctx.Err(); err != nil {
		return err
	}
	m := mail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)
	if err := d.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

// ── 仅日志 ──

// LogDispatcher 未配置 SMTP 时使用，只写日志
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, to, subject, htmlBody string) error {
	d.logger.Info("通知（未发送，SMTP 未配置）",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("body_len", len(htmlBody)),
	)
	return nil
}

// ── 发送记录 ──

// Recorder 包装下游投递器，把每次发送结果写入 notifications 表
type Recorder struct {
	next     Dispatcher
	repo     repository.NotificationRepository
	okStatus string
	metrics  metrics.Recorder
	logger   *zap.Logger
}

// NewRecorder 创建记录型投递器；delivered 表示下游会真实投递（SMTP）
func NewRecorder(next Dispatcher, repo repository.NotificationRepository, delivered bool, rec metrics.Recorder, logger *zap.Logger) *Recorder {
	status := model.NotificationLogged
	if delivered {
		status = model.NotificationSent
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Recorder{next: next, repo: repo, okStatus: status, metrics: rec, logger: logger}
}

func (r *Recorder) Send(ctx context.Context, to, subject, htmlBody string) error {
	sendErr := r.next.Send(ctx, to, subject, htmlBody)

	entry := &model.Notification{
		Recipient: to,
		Subject:   subject,
		Body:      htmlBody,
		Status:    r.okStatus,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		entry.Status = model.NotificationFailed
		entry.Error = &msg
	}
	r.metrics.NotificationSent(entry.Status)

	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Warn("写入通知记录失败", zap.String("to", to), zap.Error(err))
	}
	return sendErr
}

// New 按配置选择 SMTP 或仅日志投递，并包上发送记录
func New(cfg *config.MailConfig, repo repository.NotificationRepository, rec metrics.Recorder, logger *zap.Logger) Dispatcher {
	if cfg.Enabled() {
		return NewRecorder(NewSMTPDispatcher(cfg), repo, true, rec, logger)
	}
	return NewRecorder(NewLogDispatcher(logger), repo, false, rec, logger)
}

// Deliver 投递一条已渲染的消息；失败只记录日志，不影响调用方结果
func Deliver(ctx context.Context, d Dispatcher, msg Message, logger *zap.Logger) {
	if d == nil || msg.To == "" {
		return
	}
	if err := d.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		logger.Warn("通知投递失败",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	}
}
