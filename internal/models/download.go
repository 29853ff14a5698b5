package models

import "time"

// DownloadLimit счётчик скачиваний пользователя в текущем окне.
type DownloadLimit struct {
	UserUID       string    `json:"user_id"`
	DownloadCount int       `json:"download_count"`
	LastReset     time.Time `json:"last_reset"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DownloadHistory запись об одном скачивании материала.
type DownloadHistory struct {
	ID           int64     `json:"id"`
	UserUID      string    `json:"user_id"`
	ExerciseID   string    `json:"exercise_id"`
	FileName     string    `json:"file_name"`
	IPHash       string    `json:"-"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// DownloadRequest тело запроса на регистрацию скачивания.
type DownloadRequest struct {
	ExerciseID string `json:"exercise_id" validate:"required,max=100"`
	FileName   string `json:"file_name" validate:"required,max=255"`
}

// DownloadStatus состояние квоты пользователя.
type DownloadStatus struct {
	CanDownload bool       `json:"can_download"`
	Unlimited   bool       `json:"unlimited"`
	Limit       int        `json:"limit"`
	Used        int        `json:"used"`
	Remaining   int        `json:"remaining"`
	ResetAt     *time.Time `json:"reset_at,omitempty"`
}
