// Package download реализует месячную квоту скачиваний материалов для бесплатного тарифа.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/lib/metrics"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// Значения по умолчанию для квоты.
const (
	DefaultMonthlyLimit = 5
	DefaultResetPeriod  = 30 * 24 * time.Hour
)

// Repository методы хранилища для квоты и истории скачиваний.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetDownloadLimit(ctx context.Context, userUID string) (*models.DownloadLimit, error)
	CreateDownloadLimit(ctx context.Context, userUID string, now time.Time) (*models.DownloadLimit, error)
	ResetDownloadLimit(ctx context.Context, userUID string, now, staleBefore time.Time) (*models.DownloadLimit, error)
	RecordDownload(ctx context.Context, entry models.DownloadHistory, limit int) (int, error)
	InsertDownloadHistory(ctx context.Context, entry models.DownloadHistory) (int64, error)
	ListDownloadHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.DownloadHistory, error)
}

// PremiumChecker сообщает, есть ли у пользователя платная подписка.
type PremiumChecker interface {
	IsPremium(ctx context.Context, userUID string) (bool, error)
}

// Publisher отправляет уведомления в брокер.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Hasher псевдонимизирует IP-адрес клиента.
type Hasher interface {
	Hash(value string) string
}

// Service сервис квоты скачиваний.
type Service struct {
	repo    Repository
	premium PremiumChecker
	pub     Publisher
	hasher  Hasher
	log     *slog.Logger
	limit   int
	period  time.Duration
	now     func() time.Time
}

// New создаёт сервис квоты. Нулевые limit и period заменяются значениями по умолчанию.
func New(repo Repository, premium PremiumChecker, pub Publisher, hasher Hasher, log *slog.Logger, limit int, period time.Duration) *Service {
	if limit <= 0 {
		limit = DefaultMonthlyLimit
	}
	if period <= 0 {
		period = DefaultResetPeriod
	}
	return &Service{
		repo:    repo,
		premium: premium,
		pub:     pub,
		hasher:  hasher,
		log:     log,
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Check возвращает состояние квоты, создавая счётчик при первом обращении
// и обнуляя его, если с последнего сброса прошло больше периода.
func (s *Service) Check(ctx context.Context, userUID string) (*models.DownloadStatus, error) {
	const op = "download.Check"

	premium, err := s.premium.IsPremium(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if premium {
		return s.unlimited(), nil
	}

	dl, err := s.currentLimit(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.status(dl), nil
}

// Record регистрирует скачивание. Для бесплатного тарифа счётчик увеличивается
// атомарно и только если квота не исчерпана.
func (s *Service) Record(ctx context.Context, userUID string, req models.DownloadRequest, clientIP string) (*models.DownloadStatus, error) {
	const op = "download.Record"

	entry := models.DownloadHistory{
		UserUID:      userUID,
		ExerciseID:   req.ExerciseID,
		FileName:     req.FileName,
		IPHash:       s.hasher.Hash(clientIP),
		DownloadedAt: s.now(),
	}

	premium, err := s.premium.IsPremium(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if premium {
		if _, err := s.repo.InsertDownloadHistory(ctx, entry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		metrics.DownloadRecorded("premium")
		s.log.Info("download recorded", slog.String("user_uid", userUID), slog.String("exercise_id", req.ExerciseID))
		return s.unlimited(), nil
	}

	dl, err := s.currentLimit(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if dl.DownloadCount >= s.limit {
		metrics.DownloadRejected()
		return s.status(dl), fmt.Errorf("%s: %w", op, models.ErrDownloadLimitReached)
	}

	count, err := s.repo.RecordDownload(ctx, entry, s.limit)
	if errors.Is(err, models.ErrDownloadLimitReached) {
		metrics.DownloadRejected()
		dl.DownloadCount = s.limit
		return s.status(dl), fmt.Errorf("%s: %w", op, models.ErrDownloadLimitReached)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.DownloadRecorded("free")

	dl.DownloadCount = count
	st := s.status(dl)
	s.log.Info("download recorded",
		slog.String("user_uid", userUID),
		slog.String("exercise_id", req.ExerciseID),
		slog.Int("remaining", st.Remaining),
	)

	switch st.Remaining {
	case 1:
		s.notify(ctx, userUID, models.NotificationDownloadWarning, st)
	case 0:
		s.notify(ctx, userUID, models.NotificationDownloadLimitReached, st)
	}
	return st, nil
}

// History возвращает последние скачивания пользователя.
func (s *Service) History(ctx context.Context, userUID string, limit, offset int) ([]*models.DownloadHistory, error) {
	const op = "download.History"
	items, err := s.repo.ListDownloadHistory(ctx, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

func (s *Service) currentLimit(ctx context.Context, userUID string) (*models.DownloadLimit, error) {
	now := s.now()

	dl, err := s.repo.GetDownloadLimit(ctx, userUID)
	if errors.Is(err, models.ErrNotFound) {
		return s.repo.CreateDownloadLimit(ctx, userUID, now)
	}
	if err != nil {
		return nil, err
	}

	if now.Sub(dl.LastReset) <= s.period {
		return dl, nil
	}
	reset, err := s.repo.ResetDownloadLimit(ctx, userUID, now, now.Add(-s.period))
	if err != nil {
		return nil, err
	}
	if reset == nil {
		// сброс уже выполнен параллельным запросом
		return s.repo.GetDownloadLimit(ctx, userUID)
	}
	s.log.Info("download limit reset", slog.String("user_uid", userUID))
	return reset, nil
}

func (s *Service) status(dl *models.DownloadLimit) *models.DownloadStatus {
	remaining := s.limit - dl.DownloadCount
	if remaining < 0 {
		remaining = 0
	}
	resetAt := dl.LastReset.Add(s.period)
	return &models.DownloadStatus{
		CanDownload: dl.DownloadCount < s.limit,
		Limit:       s.limit,
		Used:        dl.DownloadCount,
		Remaining:   remaining,
		ResetAt:     &resetAt,
	}
}

func (s *Service) unlimited() *models.DownloadStatus {
	return &models.DownloadStatus{
		CanDownload: true,
		Unlimited:   true,
		Limit:       s.limit,
	}
}

func (s *Service) notify(ctx context.Context, userUID, kind string, st *models.DownloadStatus) {
	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		s.log.Warn("failed to load user for notification", slog.String("user_uid", userUID), sl.Err(err))
		return
	}
	n := models.Notification{
		Kind:    kind,
		UserUID: userUID,
		Email:   u.Email,
		Name:    u.FirstName,
		Data: map[string]string{
			"remaining": strconv.Itoa(st.Remaining),
			"limit":     strconv.Itoa(st.Limit),
		},
	}
	if st.ResetAt != nil {
		n.Data["reset_at"] = st.ResetAt.Format(time.RFC3339)
	}
	if err := s.pub.Publish(ctx, n); err != nil {
		s.log.Warn("failed to publish notification", slog.String("kind", kind), sl.Err(err))
	}
}
