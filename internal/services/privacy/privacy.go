// Package privacy реализует права субъекта данных: выгрузку, удаление и исправление.
package privacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/fonoapp/internal/cache"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

const exportRowsLimit = 10000

// Repository методы хранилища, нужные для выгрузки и удаления данных.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	GetDownloadLimit(ctx context.Context, userUID string) (*models.DownloadLimit, error)
	ListDownloadHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.DownloadHistory, error)
	ListConsentRecords(ctx context.Context, userUID string) ([]*models.ConsentRecord, error)
	ListConsentAudit(ctx context.Context, userUID string, limit int) ([]*models.ConsentAuditLog, error)
	ListPrivacyRequests(ctx context.Context, userUID string) ([]*models.PrivacyRequest, error)
	InsertPrivacyRequest(ctx context.Context, req *models.PrivacyRequest) error
	DeleteUserData(ctx context.Context, userUID string) error
}

// ProfileUpdater изменяет профиль пользователя.
type ProfileUpdater interface {
	Update(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, []string, error)
}

// SubscriptionCanceler прекращает подписку у платёжного провайдера.
type SubscriptionCanceler interface {
	CancelImmediately(ctx context.Context, userUID string) error
}

// Cache удаление ключей из кэша.
type Cache interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher отправляет уведомления в брокер.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// Hasher псевдонимизирует идентификатор удалённого пользователя.
type Hasher interface {
	Hash(value string) string
}

// Document готовая выгрузка данных.
type Document struct {
	Format      string
	ContentType string
	FileName    string
	Body        []byte
}

// Service сервис прав субъекта данных.
type Service struct {
	repo     Repository
	profile  ProfileUpdater
	canceler SubscriptionCanceler
	cache    Cache
	pub      Publisher
	hasher   Hasher
	log      *slog.Logger
	now      func() time.Time
}

// New создаёт сервис прав субъекта данных.
func New(repo Repository, profile ProfileUpdater, canceler SubscriptionCanceler, cache Cache,
	pub Publisher, hasher Hasher, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		profile:  profile,
		canceler: canceler,
		cache:    cache,
		pub:      pub,
		hasher:   hasher,
		log:      log,
		now:      time.Now,
	}
}

// Collect собирает все данные пользователя.
func (s *Service) Collect(ctx context.Context, userUID string) (*models.UserDataExport, error) {
	const op = "privacy.Collect"

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	export := &models.UserDataExport{ExportedAt: s.now().UTC(), Profile: u}

	export.Subscription, err = s.repo.GetSubscription(ctx, userUID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	export.DownloadLimit, err = s.repo.GetDownloadLimit(ctx, userUID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if export.Downloads, err = s.repo.ListDownloadHistory(ctx, userUID, exportRowsLimit, 0); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if export.Consents, err = s.repo.ListConsentRecords(ctx, userUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if export.ConsentHistory, err = s.repo.ListConsentAudit(ctx, userUID, exportRowsLimit); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if export.PrivacyRequests, err = s.repo.ListPrivacyRequests(ctx, userUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return export, nil
}

// Export выгружает данные пользователя в формате json или csv и фиксирует обращение.
func (s *Service) Export(ctx context.Context, userUID, format string) (*Document, error) {
	const op = "privacy.Export"

	if format == "" {
		format = models.ExportFormatJSON
	}
	if format != models.ExportFormatJSON && format != models.ExportFormatCSV {
		return nil, fmt.Errorf("%s: %w", op, models.ErrUnsupportedFormat)
	}

	export, err := s.Collect(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	doc := &Document{
		Format:   format,
		FileName: fmt.Sprintf("fonoapp-dados-%s.%s", export.ExportedAt.Format("20060102"), format),
	}
	switch format {
	case models.ExportFormatJSON:
		doc.ContentType = "application/json"
		doc.Body, err = json.MarshalIndent(export, "", "  ")
	case models.ExportFormatCSV:
		doc.ContentType = "text/csv; charset=utf-8"
		doc.Body, err = EncodeCSV(export)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.record(ctx, userUID, models.PrivacyRequestExport, "format: "+format); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user data exported", slog.String("user_uid", userUID), slog.String("format", format))
	return doc, nil
}

// Delete удаляет все данные пользователя. Подписка у провайдера отменяется
// по возможности, ошибка отмены не мешает удалению.
func (s *Service) Delete(ctx context.Context, userUID string) error {
	const op = "privacy.Delete"

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.canceler.CancelImmediately(ctx, userUID); err != nil {
		s.log.Warn("failed to cancel provider subscription", slog.String("user_uid", userUID), sl.Err(err))
	}

	if err := s.repo.DeleteUserData(ctx, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// пользователя уже нет, обращение хранится без ссылки на него
	if err := s.record(ctx, "", models.PrivacyRequestDeletion, "subject: "+s.hasher.Hash(userUID)); err != nil {
		s.log.Error("failed to record deletion request", slog.String("user_uid", userUID), sl.Err(err))
	}

	if err := s.cache.Invalidate(ctx, cache.ProfileKey(userUID), cache.SubscriptionStatusKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("user_uid", userUID), sl.Err(err))
	}

	n := models.Notification{
		Kind:  models.NotificationAccountDeleted,
		Email: u.Email,
		Name:  u.FirstName,
	}
	if err := s.pub.Publish(ctx, n); err != nil {
		s.log.Warn("failed to publish notification", slog.String("kind", n.Kind), sl.Err(err))
	}

	s.log.Info("user data deleted", slog.String("user_uid", userUID))
	return nil
}

// Rectify исправляет данные профиля и фиксирует обращение со списком изменённых полей.
func (s *Service) Rectify(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, []string, error) {
	const op = "privacy.Rectify"

	u, changed, err := s.profile.Update(ctx, userUID, upd)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	details := "fields: " + strings.Join(changed, ",")
	if err := s.record(ctx, userUID, models.PrivacyRequestRectification, details); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, changed, nil
}

func (s *Service) record(ctx context.Context, userUID, kind, details string) error {
	now := s.now().UTC()
	return s.repo.InsertPrivacyRequest(ctx, &models.PrivacyRequest{
		ID:          uuid.NewString(),
		UserUID:     userUID,
		Type:        kind,
		Status:      models.PrivacyStatusCompleted,
		Details:     details,
		CreatedAt:   now,
		CompletedAt: &now,
	})
}
