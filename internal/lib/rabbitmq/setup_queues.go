package rabbitmq

import "github.com/magabrotheeeer/fonoapp/internal/models"

// Ключи маршрутизации уведомлений.
const (
	RoutingDownloads = "downloads"
	RoutingBilling   = "billing"
	RoutingAccount   = "account"
)

// QueueConfig очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые читает сервис рассылки.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.downloads", RoutingKey: RoutingDownloads},
		{QueueName: "notifications.billing", RoutingKey: RoutingBilling},
		{QueueName: "notifications.account", RoutingKey: RoutingAccount},
	}
}

// RoutingKeyFor возвращает ключ маршрутизации для вида уведомления.
func RoutingKeyFor(kind string) string {
	switch kind {
	case models.NotificationDownloadWarning, models.NotificationDownloadLimitReached:
		return RoutingDownloads
	case models.NotificationPaymentFailed, models.NotificationSubscriptionExpiring:
		return RoutingBilling
	default:
		return RoutingAccount
	}
}
