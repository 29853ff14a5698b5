package models

import "time"

// Статусы подписки.
const (
	SubscriptionFree     = "free"
	SubscriptionActive   = "active"
	SubscriptionTrialing = "trialing"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// PlanPremium единственный платный тариф.
const PlanPremium = "premium"

// Subscription платная подписка пользователя у платёжного провайдера.
type Subscription struct {
	ID                     int        `json:"id"`
	UserUID                string     `json:"user_id"`
	ProviderCustomerID     string     `json:"-"`
	ProviderSubscriptionID string     `json:"-"`
	Plan                   string     `json:"plan"`
	Status                 string     `json:"status"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// IsPremium сообщает, даёт ли подписка доступ к платным возможностям.
func (s *Subscription) IsPremium() bool {
	if s == nil {
		return false
	}
	return s.Status == SubscriptionActive || s.Status == SubscriptionTrialing
}

// ExpiringSubscription данные для уведомления о скором окончании подписки.
type ExpiringSubscription struct {
	UserUID          string
	Email            string
	FirstName        string
	CurrentPeriodEnd time.Time
}
