// Package models содержит доменные структуры приложения: пользователя,
// подписку, квоту скачиваний, согласия LGPD и политики хранения данных.
package models

import "time"

// Роли пользователя.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User представляет пользователя, синхронизированного с провайдером аутентификации.
type User struct {
	UID                string     `json:"id"`
	ExternalID         string     `json:"external_id"` // Идентификатор у провайдера аутентификации
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Phone              string     `json:"phone"`
	Profession         string     `json:"profession"`
	Organization       string     `json:"organization"`
	Role               string     `json:"role"`
	SubscriptionStatus string     `json:"subscription_status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastSeenAt         *time.Time `json:"last_seen_at,omitempty"`
}

// FullName возвращает имя и фамилию через пробел.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// ProfileUpdate используется для приёма изменений профиля из JSON-запроса.
// nil означает, что поле не меняется.
type ProfileUpdate struct {
	FirstName    *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName     *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Profession   *string `json:"profession,omitempty" validate:"omitempty,max=100"`
	Organization *string `json:"organization,omitempty" validate:"omitempty,max=150"`
	Email        *string `json:"email,omitempty" validate:"omitempty,email"`
}

// Apply применяет изменения к пользователю и возвращает список изменённых полей.
func (p ProfileUpdate) Apply(u *User) []string {
	var changed []string
	set := func(name string, dst *string, src *string) {
		if src != nil && *dst != *src {
			*dst = *src
			changed = append(changed, name)
		}
	}
	set("first_name", &u.FirstName, p.FirstName)
	set("last_name", &u.LastName, p.LastName)
	set("phone", &u.Phone, p.Phone)
	set("profession", &u.Profession, p.Profession)
	set("organization", &u.Organization, p.Organization)
	set("email", &u.Email, p.Email)
	return changed
}

// IdentityUser данные пользователя из вебхука провайдера аутентификации.
type IdentityUser struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	Phone      string
}
