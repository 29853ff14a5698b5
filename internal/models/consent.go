package models

import "time"

// Действия в журнале согласий.
const (
	ConsentActionGranted   = "granted"
	ConsentActionWithdrawn = "withdrawn"
	ConsentActionRenewed   = "renewed"
)

// ConsentType элемент каталога целей обработки данных.
type ConsentType struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	LegalBasis  string `json:"legal_basis"`
	Required    bool   `json:"required"`
	Version     string `json:"version"`
}

// ConsentRecord текущее состояние согласия пользователя по одной цели.
type ConsentRecord struct {
	UserUID     string     `json:"user_id"`
	ConsentType string     `json:"consent_type"`
	Granted     bool       `json:"granted"`
	Version     string     `json:"version"`
	GrantedAt   *time.Time `json:"granted_at,omitempty"`
	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UserConsent элемент каталога вместе с решением пользователя.
type UserConsent struct {
	ConsentType
	Granted   bool       `json:"granted"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ConsentAuditLog неизменяемая запись об изменении согласия.
type ConsentAuditLog struct {
	ID            int64     `json:"id"`
	UserUID       string    `json:"user_id"`
	ConsentType   string    `json:"consent_type"`
	Action        string    `json:"action"`
	PreviousState *bool     `json:"previous_state,omitempty"`
	NewState      bool      `json:"new_state"`
	Version       string    `json:"version"`
	IPHash        string    `json:"ip_hash,omitempty"`
	UserAgentHash string    `json:"user_agent_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConsentChange запрос на изменение одного согласия.
type ConsentChange struct {
	ConsentType string `json:"consent_type" validate:"required"`
	Granted     *bool  `json:"granted" validate:"required"`
}

// ConsentBatch тело запроса на изменение согласий.
type ConsentBatch struct {
	Consents []ConsentChange `json:"consents" validate:"required,min=1,dive"`
}

// RequestMeta данные клиента для журналов аудита.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ConsentAction определяет действие для журнала по предыдущему и новому состоянию.
func ConsentAction(previous *bool, granted bool) string {
	if previous != nil && *previous == granted {
		return ConsentActionRenewed
	}
	if granted {
		return ConsentActionGranted
	}
	return ConsentActionWithdrawn
}
