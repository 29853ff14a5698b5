package models

import "time"

// Действия политики хранения.
const (
	RetentionDelete    = "delete"
	RetentionAnonymize = "anonymize"
)

// Статусы выполнения политики.
const (
	RetentionStatusSuccess = "success"
	RetentionStatusFailed  = "failed"
	RetentionStatusDryRun  = "dry_run"
)

// DataRetentionPolicy срок хранения категории данных.
type DataRetentionPolicy struct {
	DataCategory  string `json:"data_category"`
	RetentionDays int    `json:"retention_days"`
	Action        string `json:"action"`
	LegalBasis    string `json:"legal_basis"`
	Description   string `json:"description"`
}

// Cutoff возвращает момент, старше которого данные подлежат обработке.
func (p DataRetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -p.RetentionDays)
}

// DataRetentionLog результат применения политики.
type DataRetentionLog struct {
	ID              int64     `json:"id"`
	DataCategory    string    `json:"data_category"`
	Action          string    `json:"action"`
	RecordsAffected int64     `json:"records_affected"`
	Status          string    `json:"status"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ExecutedAt      time.Time `json:"executed_at"`
}
