// Package scheduler запускает фоновые задачи по расписанию cron: применение политик
// хранения данных и напоминания об окончании подписки.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
	"github.com/magabrotheeeer/fonoapp/internal/services/retention"
)

// ExpiringNotice за сколько дней до окончания подписки отправляется напоминание.
const ExpiringNotice = 3

// Retention применение политик хранения.
type Retention interface {
	Sync(ctx context.Context) error
	Apply(ctx context.Context, now time.Time, dryRun bool) (*retention.Summary, error)
}

// SubscriptionRepository поиск подписок, которые скоро закончатся.
type SubscriptionRepository interface {
	FindSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.ExpiringSubscription, error)
}

// Publisher отправляет уведомления в брокер.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Service планировщик фоновых задач.
type Service struct {
	retention Retention
	repo      SubscriptionRepository
	pub       Publisher
	log       *slog.Logger
	now       func() time.Time
}

// New создаёт планировщик.
func New(retention Retention, repo SubscriptionRepository, pub Publisher, log *slog.Logger) *Service {
	return &Service{
		retention: retention,
		repo:      repo,
		pub:       pub,
		log:       log,
		now:       time.Now,
	}
}

// Start синхронизирует каталог политик и регистрирует задачи в cron.
// Остановка возвращённого планировщика на совести вызывающего.
func (s *Service) Start(ctx context.Context, retentionSpec, expiringSpec string) (*cron.Cron, error) {
	const op = "scheduler.Start"

	if err := s.retention.Sync(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(retentionSpec, func() { s.RunRetention(ctx) }); err != nil {
		return nil, fmt.Errorf("%s: retention spec: %w", op, err)
	}
	if _, err := c.AddFunc(expiringSpec, func() { s.NotifyExpiring(ctx) }); err != nil {
		return nil, fmt.Errorf("%s: expiring spec: %w", op, err)
	}
	c.Start()

	s.log.Info("scheduler started",
		slog.String("retention_spec", retentionSpec),
		slog.String("expiring_spec", expiringSpec),
	)
	return c, nil
}

// RunRetention применяет политики хранения.
func (s *Service) RunRetention(ctx context.Context) {
	s.log.Info("starting retention run")
	summary, err := s.retention.Apply(ctx, s.now().UTC(), false)
	if err != nil {
		s.log.Error("retention run finished with errors", sl.Err(err))
	}
	if summary != nil {
		var total int64
		for _, r := range summary.Results {
			total += r.Records
		}
		s.log.Info("retention run finished", slog.Int("policies", len(summary.Results)), slog.Int64("records", total))
	}
}

// NotifyExpiring рассылает напоминания по подпискам, которые закончатся через ExpiringNotice дней
// и не будут продлены. Окно равно одним суткам, поэтому при ежедневном запуске каждое
// напоминание уходит один раз.
func (s *Service) NotifyExpiring(ctx context.Context) int {
	from := s.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, ExpiringNotice)
	to := from.Add(24 * time.Hour)

	items, err := s.repo.FindSubscriptionsEndingBetween(ctx, from, to)
	if err != nil {
		s.log.Error("failed to find expiring subscriptions", sl.Err(err))
		return 0
	}
	if len(items) == 0 {
		s.log.Info("no expiring subscriptions found")
		return 0
	}

	sent := 0
	for _, item := range items {
		n := models.Notification{
			Kind:    models.NotificationSubscriptionExpiring,
			UserUID: item.UserUID,
			Email:   item.Email,
			Name:    item.FirstName,
			Data:    map[string]string{"period_end": item.CurrentPeriodEnd.UTC().Format(time.RFC3339)},
		}
		if err := s.pub.Publish(ctx, n); err != nil {
			s.log.Error("failed to publish message", slog.String("user_uid", item.UserUID), sl.Err(err))
			continue
		}
		sent++
	}
	s.log.Info("expiring subscription notices published", slog.Int("count", sent))
	return sent
}
