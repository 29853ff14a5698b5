package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

const subscriptionColumns = `id, user_uid, provider_customer_id, provider_subscription_id, plan, status,
	current_period_end, cancel_at_period_end, created_at, updated_at`

func scanSubscription(row scanner) (*models.Subscription, error) {
	var sub models.Subscription
	var periodEnd sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.ProviderCustomerID, &sub.ProviderSubscriptionID,
		&sub.Plan, &sub.Status, &periodEnd, &sub.CancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}

// GetSubscription возвращает подписку пользователя.
func (s *Storage) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_uid = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNoRows(err))
	}
	return sub, nil
}

// GetSubscriptionByProviderID возвращает подписку по идентификатору у платёжного провайдера.
func (s *Storage) GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByProviderID"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if providerSubscriptionID == "" {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, providerSubscriptionID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNoRows(err))
	}
	return sub, nil
}

// UpsertSubscription создаёт или обновляет подписку пользователя (одна на пользователя).
func (s *Storage) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.UpsertSubscription"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var periodEnd sql.NullTime
	if sub.CurrentPeriodEnd != nil {
		periodEnd = sql.NullTime{Time: *sub.CurrentPeriodEnd, Valid: true}
	}
	query := `INSERT INTO subscriptions (user_uid, provider_customer_id, provider_subscription_id,
			      plan, status, current_period_end, cancel_at_period_end)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (user_uid) DO UPDATE
			  SET provider_customer_id = EXCLUDED.provider_customer_id,
			      provider_subscription_id = EXCLUDED.provider_subscription_id,
			      plan = EXCLUDED.plan,
			      status = EXCLUDED.status,
			      current_period_end = EXCLUDED.current_period_end,
			      cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			      updated_at = NOW()
			  RETURNING id, created_at, updated_at`
	if err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		sub.Plan, sub.Status, periodEnd, sub.CancelAtPeriodEnd,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindSubscriptionsEndingBetween находит подписки, которые закончатся в интервале и не будут продлены.
func (s *Storage) FindSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.ExpiringSubscription, error) {
	const op = "storage.FindSubscriptionsEndingBetween"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT u.uid, u.email, u.first_name, s.current_period_end
			  FROM subscriptions s
			  JOIN users u ON u.uid = s.user_uid
			  WHERE s.status IN ('active', 'trialing')
			    AND s.cancel_at_period_end = true
			    AND s.current_period_end >= $1
			    AND s.current_period_end < $2
			  ORDER BY s.current_period_end`
	rows, err := s.DB.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExpiringSubscription
	for rows.Next() {
		var item models.ExpiringSubscription
		if err := rows.Scan(&item.UserUID, &item.Email, &item.FirstName, &item.CurrentPeriodEnd); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
