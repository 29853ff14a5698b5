package models

// Виды уведомлений, передаваемых через брокер.
const (
	NotificationDownloadWarning      = "download_limit_warning"
	NotificationDownloadLimitReached = "download_limit_reached"
	NotificationPaymentFailed        = "payment_failed"
	NotificationSubscriptionExpiring = "subscription_expiring"
	NotificationAccountDeleted       = "account_deleted"
)

// Notification сообщение для сервиса рассылки.
type Notification struct {
	ID      string            `json:"id"`
	Kind    string            `json:"kind"`
	UserUID string            `json:"user_id,omitempty"`
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	Data    map[string]string `json:"data,omitempty"`
}
