package paymentprovider

import (
	"encoding/json"
	"fmt"
)

// Типы событий, которые присылает платёжный провайдер.
const (
	EventCheckoutCompleted    = "checkout.completed"
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
	EventInvoicePaymentFailed = "invoice.payment_failed"
)

// CreateCustomerRequest запрос на создание клиента у провайдера.
type CreateCustomerRequest struct {
	Email    string            `json:"email"`
	Name     string            `json:"name,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Customer клиент провайдера.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CheckoutSessionRequest запрос на создание страницы оплаты.
type CheckoutSessionRequest struct {
	CustomerID        string `json:"customer_id"`
	PriceID           string `json:"price_id"`
	SuccessURL        string `json:"success_url"`
	CancelURL         string `json:"cancel_url"`
	ClientReferenceID string `json:"client_reference_id"`
}

// CheckoutSession страница оплаты, на которую перенаправляется пользователь.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CancelSubscriptionRequest параметры отмены подписки.
type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// Event событие вебхука. Data разбирается в зависимости от Type.
type Event struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SubscriptionObject подписка в теле событий subscription.*.
type SubscriptionObject struct {
	ID                string `json:"id"`
	CustomerID        string `json:"customer_id"`
	Status            string `json:"status"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
}

// CheckoutObject тело события checkout.completed.
type CheckoutObject struct {
	ID                string `json:"id"`
	CustomerID        string `json:"customer_id"`
	SubscriptionID    string `json:"subscription_id"`
	ClientReferenceID string `json:"client_reference_id"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
}

// InvoiceObject тело события invoice.payment_failed.
type InvoiceObject struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
	AmountDue      int64  `json:"amount_due"`
	Currency       string `json:"currency"`
}

// APIError ошибка, которую вернул провайдер.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment provider: status %d: %s %s", e.StatusCode, e.Code, e.Message)
}
