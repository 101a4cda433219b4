package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/infra/observability"
	"github.com/lucafranzi/contabile/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var notifyTracer = otel.Tracer("service/notify")

// NotifyService owns the Telegram reminder side channel: the stored
// config, the test/check endpoints and the background renewal loop.
// Delivery is best-effort and never runs inside a ledger transaction.
type NotifyService struct {
	store      port.AgendaStore
	dashboard  *DashboardService
	notifier   port.Notifier
	dispatcher port.ReminderDispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

func NewNotifyService(store port.AgendaStore, dashboard *DashboardService, notifier port.Notifier, metrics *observability.Metrics, logger *zap.Logger) *NotifyService {
	return &NotifyService{store: store, dashboard: dashboard, notifier: notifier, metrics: metrics, logger: logger}
}

// SetDispatcher wires the reminder dispatcher after construction; the
// inline dispatcher closes over Deliver, which needs the service first.
func (s *NotifyService) SetDispatcher(d port.ReminderDispatcher) {
	s.dispatcher = d
}

// ============================================================
// Config
// ============================================================

func (s *NotifyService) GetConfig(ctx context.Context) (*domain.TelegramConfig, error) {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.GetConfig")
	defer span.End()

	return s.store.GetTelegramConfig(ctx)
}

func (s *NotifyService) UpdateConfig(ctx context.Context, cfg *domain.TelegramConfig) (*domain.TelegramConfig, error) {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.UpdateConfig")
	defer span.End()

	if cfg.Enabled && (cfg.BotToken == "" || cfg.ChatID == "") {
		return nil, &domain.ErrValidation{Field: "enabled", Message: "bot_token and chat_id are required to enable reminders"}
	}

	if err := s.store.UpdateTelegramConfig(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("telegram config updated", zap.Bool("enabled", cfg.Enabled))
	return s.store.GetTelegramConfig(ctx)
}

// SendTest sends a test message through the configured bot.
func (s *NotifyService) SendTest(ctx context.Context) error {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.SendTest")
	defer span.End()

	cfg, err := s.store.GetTelegramConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return &domain.ErrValidation{Field: "bot_token", Message: "telegram is not configured"}
	}

	text := fmt.Sprintf("Test message, sent %s", time.Now().UTC().Format(time.RFC3339))
	if err := s.notifier.SendMessage(ctx, cfg.BotToken, cfg.ChatID, text); err != nil {
		s.metrics.IncrReminder("failed")
		return err
	}
	s.metrics.IncrReminder("sent")
	return nil
}

// Check reports the side channel health: config state, bot reachability
// and the reminder queue depth.
func (s *NotifyService) Check(ctx context.Context) (*domain.TelegramCheck, error) {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.Check")
	defer span.End()

	cfg, err := s.store.GetTelegramConfig(ctx)
	if err != nil {
		return nil, err
	}

	check := &domain.TelegramCheck{
		Configured: cfg.BotToken != "" && cfg.ChatID != "",
		Enabled:    cfg.Enabled,
	}
	if s.dispatcher != nil {
		check.QueueDepth = s.dispatcher.Depth()
	}
	if !check.Configured {
		return check, nil
	}

	username, err := s.notifier.GetMe(ctx, cfg.BotToken)
	if err != nil {
		check.Error = err.Error()
		return check, nil
	}
	check.BotOK = true
	check.BotName = username
	return check, nil
}

// ============================================================
// Reminder loop
// ============================================================

// RunReminderLoop dispatches renewal reminders every interval until the
// context is cancelled. Intended to run in its own goroutine from main.
func (s *NotifyService) RunReminderLoop(ctx context.Context, interval time.Duration, windowDays int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("reminder loop started",
		zap.Duration("interval", interval),
		zap.Int("window_days", windowDays),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder loop stopped")
			return
		case <-ticker.C:
			if err := s.DispatchDueReminders(ctx, windowDays); err != nil {
				s.logger.Warn("reminder sweep failed", zap.Error(err))
			}
		}
	}
}

// DispatchDueReminders queues one reminder for each renewal due within
// windowDays. Failures are logged per fee; the sweep keeps going.
func (s *NotifyService) DispatchDueReminders(ctx context.Context, windowDays int) error {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.DispatchDueReminders")
	defer span.End()

	cfg, err := s.store.GetTelegramConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		return nil
	}
	if s.dispatcher == nil {
		return nil
	}

	renewals, err := s.dashboard.GetRenewals(ctx, windowDays)
	if err != nil {
		return err
	}

	for _, r := range renewals {
		msg := domain.ReminderMessage{
			FeeID:      r.Fee.ID,
			ClientName: r.ClientName,
			Amount:     r.Fee.Amount,
			DueDate:    r.NextDate,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.dispatcher.Dispatch(ctx, msg); err != nil {
			s.metrics.IncrReminder("failed")
			s.logger.Warn("reminder dispatch failed",
				zap.String("fee_id", r.Fee.ID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("reminder sweep complete", zap.Int("renewals", len(renewals)))
	return nil
}

// Deliver sends one reminder through the bot. It is the handler behind
// both the inline dispatcher and the AMQP consumer.
func (s *NotifyService) Deliver(ctx context.Context, msg domain.ReminderMessage) error {
	ctx, span := notifyTracer.Start(ctx, "NotifyService.Deliver")
	defer span.End()

	cfg, err := s.store.GetTelegramConfig(ctx)
	if err != nil {
		return err
	}
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}

	text := fmt.Sprintf("Renewal due %s: %s, %s", msg.DueDate, msg.ClientName, msg.Amount)
	if err := s.notifier.SendMessage(ctx, cfg.BotToken, cfg.ChatID, text); err != nil {
		s.metrics.IncrReminder("failed")
		return err
	}
	s.metrics.IncrReminder("sent")
	return nil
}
