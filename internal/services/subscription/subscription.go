// Package subscription синхронизирует платную подписку пользователя с платёжным провайдером
// и кэширует её статус.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/cache"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
	"github.com/magabrotheeeer/fonoapp/internal/paymentprovider"
)

// Repository методы хранилища для подписок.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) error
}

// Provider клиент платёжного провайдера.
type Provider interface {
	CreateCustomer(ctx context.Context, params paymentprovider.CreateCustomerRequest) (*paymentprovider.Customer, error)
	CreateCheckoutSession(ctx context.Context, params paymentprovider.CheckoutSessionRequest) (*paymentprovider.CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*paymentprovider.SubscriptionObject, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher отправляет уведомления в брокер.
type Publisher interface {
	Publish(ctx context.Context, n models.Notification) error
}

// CheckoutConfig параметры страницы оплаты.
type CheckoutConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Service сервис подписок.
type Service struct {
	repo     Repository
	provider Provider
	cache    Cache
	pub      Publisher
	checkout CheckoutConfig
	log      *slog.Logger
}

// New создаёт сервис подписок.
func New(repo Repository, provider Provider, cache Cache, pub Publisher, checkout CheckoutConfig, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		cache:    cache,
		pub:      pub,
		checkout: checkout,
		log:      log,
	}
}

// Status возвращает текущую подписку. Пользователь без подписки получает статус free.
func (s *Service) Status(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "subscription.Status"
	key := cache.SubscriptionStatusKey(userUID)

	var cached models.Subscription
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read subscription status from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.GetSubscription(ctx, userUID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		sub = &models.Subscription{UserUID: userUID, Status: models.SubscriptionFree}
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, key, sub, cache.SubscriptionStatusTTL); err != nil {
		s.log.Warn("failed to cache subscription status", slog.String("key", key), sl.Err(err))
	}
	return sub, nil
}

// IsPremium сообщает, действует ли у пользователя платная подписка.
func (s *Service) IsPremium(ctx context.Context, userUID string) (bool, error) {
	const op = "subscription.IsPremium"
	sub, err := s.Status(ctx, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return sub.IsPremium(), nil
}

// Checkout создаёт страницу оплаты и возвращает её адрес.
// Клиент у провайдера создаётся при первой попытке оплаты.
func (s *Service) Checkout(ctx context.Context, userUID string) (string, error) {
	const op = "subscription.Checkout"

	sub, err := s.repo.GetSubscription(ctx, userUID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		sub = &models.Subscription{UserUID: userUID, Plan: models.PlanPremium, Status: models.SubscriptionFree}
	case err != nil:
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if sub.IsPremium() {
		return "", fmt.Errorf("%s: %w", op, models.ErrAlreadySubscribed)
	}

	if sub.ProviderCustomerID == "" {
		u, err := s.repo.GetUser(ctx, userUID)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		customer, err := s.provider.CreateCustomer(ctx, paymentprovider.CreateCustomerRequest{
			Email:    u.Email,
			Name:     u.FullName(),
			Metadata: map[string]string{"user_uid": userUID},
		})
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		sub.ProviderCustomerID = customer.ID
		if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutSessionRequest{
		CustomerID:        sub.ProviderCustomerID,
		PriceID:           s.checkout.PriceID,
		SuccessURL:        s.checkout.SuccessURL,
		CancelURL:         s.checkout.CancelURL,
		ClientReferenceID: userUID,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("checkout session created", slog.String("user_uid", userUID), slog.String("session_id", session.ID))
	return session.URL, nil
}

// Cancel отменяет подписку в конце оплаченного периода.
func (s *Service) Cancel(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "subscription.Cancel"

	sub, err := s.providerSubscription(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.provider.CancelSubscription(ctx, sub.ProviderSubscriptionID, true); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.CancelAtPeriodEnd = true
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userUID)

	s.log.Info("subscription canceled at period end", slog.String("user_uid", userUID))
	return sub, nil
}

// CancelImmediately прекращает подписку без ожидания конца периода.
// Пользователь без действующей подписки не считается ошибкой.
func (s *Service) CancelImmediately(ctx context.Context, userUID string) error {
	const op = "subscription.CancelImmediately"

	sub, err := s.providerSubscription(ctx, userUID)
	if errors.Is(err, models.ErrNoSubscription) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub.Status == models.SubscriptionCanceled {
		return nil
	}
	if _, err := s.provider.CancelSubscription(ctx, sub.ProviderSubscriptionID, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, userUID)
	return nil
}

func (s *Service) providerSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	sub, err := s.repo.GetSubscription(ctx, userUID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrNoSubscription
	}
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubscriptionID == "" {
		return nil, models.ErrNoSubscription
	}
	return sub, nil
}

// HandleEvent применяет событие вебхука платёжного провайдера.
// Неизвестные события и подписки, которых нет в базе, пропускаются.
func (s *Service) HandleEvent(ctx context.Context, event paymentprovider.Event) error {
	const op = "subscription.HandleEvent"
	log := s.log.With(slog.String("event_id", event.ID), slog.String("event_type", event.Type))

	var (
		userUID string
		err     error
	)
	switch event.Type {
	case paymentprovider.EventCheckoutCompleted:
		userUID, err = s.checkoutCompleted(ctx, event.Data)
	case paymentprovider.EventSubscriptionUpdated, paymentprovider.EventSubscriptionCanceled:
		userUID, err = s.subscriptionChanged(ctx, event.Type, event.Data)
	case paymentprovider.EventInvoicePaymentFailed:
		userUID, err = s.paymentFailed(ctx, event.Data)
	default:
		log.Debug("ignoring payment event")
		return nil
	}
	if errors.Is(err, models.ErrNotFound) {
		log.Warn("subscription for event not found")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.invalidate(ctx, userUID)
	log.Info("payment event applied", slog.String("user_uid", userUID))
	return nil
}

func (s *Service) checkoutCompleted(ctx context.Context, data json.RawMessage) (string, error) {
	var obj paymentprovider.CheckoutObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	if obj.ClientReferenceID == "" {
		return "", fmt.Errorf("checkout %s has no client reference: %w", obj.ID, models.ErrNotFound)
	}
	if _, err := s.repo.GetUser(ctx, obj.ClientReferenceID); err != nil {
		return "", err
	}
	sub := &models.Subscription{
		UserUID:                obj.ClientReferenceID,
		ProviderCustomerID:     obj.CustomerID,
		ProviderSubscriptionID: obj.SubscriptionID,
		Plan:                   models.PlanPremium,
		Status:                 models.SubscriptionActive,
		CurrentPeriodEnd:       unixTime(obj.CurrentPeriodEnd),
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return "", err
	}
	return sub.UserUID, nil
}

func (s *Service) subscriptionChanged(ctx context.Context, eventType string, data json.RawMessage) (string, error) {
	var obj paymentprovider.SubscriptionObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	if obj.ID == "" {
		return "", fmt.Errorf("subscription event without id: %w", models.ErrNotFound)
	}
	sub, err := s.repo.GetSubscriptionByProviderID(ctx, obj.ID)
	if err != nil {
		return "", err
	}

	if eventType == paymentprovider.EventSubscriptionCanceled {
		sub.Status = models.SubscriptionCanceled
		sub.CancelAtPeriodEnd = false
	} else {
		sub.Status = ProviderStatus(obj.Status)
		sub.CancelAtPeriodEnd = obj.CancelAtPeriodEnd
	}
	if end := unixTime(obj.CurrentPeriodEnd); end != nil {
		sub.CurrentPeriodEnd = end
	}
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return "", err
	}
	return sub.UserUID, nil
}

func (s *Service) paymentFailed(ctx context.Context, data json.RawMessage) (string, error) {
	var obj paymentprovider.InvoiceObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	// счёт без подписки (разовый платёж) не относится ни к одной строке subscriptions
	if obj.SubscriptionID == "" {
		return "", fmt.Errorf("invoice %s without subscription: %w", obj.ID, models.ErrNotFound)
	}
	sub, err := s.repo.GetSubscriptionByProviderID(ctx, obj.SubscriptionID)
	if err != nil {
		return "", err
	}
	sub.Status = models.SubscriptionPastDue
	if err := s.repo.UpsertSubscription(ctx, sub); err != nil {
		return "", err
	}

	u, err := s.repo.GetUser(ctx, sub.UserUID)
	if err != nil {
		s.log.Warn("failed to load user for notification", slog.String("user_uid", sub.UserUID), sl.Err(err))
		return sub.UserUID, nil
	}
	n := models.Notification{
		Kind:    models.NotificationPaymentFailed,
		UserUID: u.UID,
		Email:   u.Email,
		Name:    u.FirstName,
		Data:    map[string]string{"invoice_id": obj.ID},
	}
	if err := s.pub.Publish(ctx, n); err != nil {
		s.log.Warn("failed to publish notification", slog.String("kind", n.Kind), sl.Err(err))
	}
	return sub.UserUID, nil
}

func (s *Service) invalidate(ctx context.Context, userUID string) {
	if err := s.cache.Invalidate(ctx, cache.SubscriptionStatusKey(userUID), cache.ProfileKey(userUID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", slog.String("user_uid", userUID), sl.Err(err))
	}
}

// ProviderStatus приводит статус провайдера к статусам приложения.
func ProviderStatus(status string) string {
	switch status {
	case models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue, models.SubscriptionCanceled:
		return status
	case "unpaid", "incomplete":
		return models.SubscriptionPastDue
	default:
		return models.SubscriptionCanceled
	}
}

func unixTime(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
