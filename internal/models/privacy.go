package models

import "time"

// Типы запросов субъекта данных.
const (
	PrivacyRequestExport        = "export"
	PrivacyRequestDeletion      = "deletion"
	PrivacyRequestRectification = "rectification"
)

// Статусы запросов субъекта данных.
const (
	PrivacyStatusCompleted = "completed"
	PrivacyStatusFailed    = "failed"
)

// Форматы экспорта.
const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
)

// PrivacyRequest запись об обращении субъекта данных (LGPD, ст. 18).
type PrivacyRequest struct {
	ID          string     `json:"id"`
	UserUID     string     `json:"user_id,omitempty"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Details     string     `json:"details,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// UserDataExport полная выгрузка данных пользователя.
type UserDataExport struct {
	ExportedAt      time.Time          `json:"exported_at"`
	Profile         *User              `json:"profile"`
	Subscription    *Subscription      `json:"subscription,omitempty"`
	DownloadLimit   *DownloadLimit     `json:"download_limit,omitempty"`
	Downloads       []*DownloadHistory `json:"downloads"`
	Consents        []*ConsentRecord   `json:"consents"`
	ConsentHistory  []*ConsentAuditLog `json:"consent_history"`
	PrivacyRequests []*PrivacyRequest  `json:"privacy_requests"`
}
