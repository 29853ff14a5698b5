// Package identity синхронизирует пользователей с провайдером аутентификации по его вебхукам.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// События провайдера аутентификации.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// ErrMalformedPayload тело вебхука не содержит обязательных полей.
var ErrMalformedPayload = errors.New("malformed identity payload")

// Repository методы хранилища для пользователей.
type Repository interface {
	UpsertIdentityUser(ctx context.Context, iu models.IdentityUser) (string, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
}

// Deleter удаляет данные пользователя.
type Deleter interface {
	Delete(ctx context.Context, userUID string) error
}

// ProfileInvalidator сбрасывает закэшированный профиль.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userUID string)
}

// Service обработчик событий провайдера аутентификации.
type Service struct {
	repo    Repository
	deleter Deleter
	profile ProfileInvalidator
	log     *slog.Logger
}

// New создаёт обработчик событий.
func New(repo Repository, deleter Deleter, profile ProfileInvalidator, log *slog.Logger) *Service {
	return &Service{repo: repo, deleter: deleter, profile: profile, log: log}
}

// HandleEvent разбирает тело вебхука и применяет событие. Возвращает тип события.
func (s *Service) HandleEvent(ctx context.Context, payload []byte) (string, error) {
	const op = "identity.HandleEvent"

	if !gjson.ValidBytes(payload) {
		return "", fmt.Errorf("%s: %w", op, ErrMalformedPayload)
	}
	event := gjson.GetBytes(payload, "type").String()
	data := gjson.GetBytes(payload, "data")
	externalID := data.Get("id").String()
	if externalID == "" {
		return event, fmt.Errorf("%s: %w: missing data.id", op, ErrMalformedPayload)
	}
	log := s.log.With(slog.String("event_type", event), slog.String("external_id", externalID))

	switch event {
	case EventUserCreated, EventUserUpdated:
		iu := ParseUser(data)
		if iu.Email == "" {
			return event, fmt.Errorf("%s: %w: missing email", op, ErrMalformedPayload)
		}
		uid, err := s.repo.UpsertIdentityUser(ctx, iu)
		if err != nil {
			return event, fmt.Errorf("%s: %w", op, err)
		}
		s.profile.Invalidate(ctx, uid)
		log.Info("identity user synced", slog.String("user_uid", uid))

	case EventUserDeleted:
		u, err := s.repo.GetUserByExternalID(ctx, externalID)
		if errors.Is(err, models.ErrNotFound) {
			log.Info("identity user already removed")
			return event, nil
		}
		if err != nil {
			return event, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.deleter.Delete(ctx, u.UID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return event, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("identity user deleted", slog.String("user_uid", u.UID))

	default:
		log.Debug("ignoring identity event")
	}
	return event, nil
}

// ParseUser извлекает данные пользователя из объекта data.
// Основной адрес ищется по primary_email_address_id, иначе берётся первый.
func ParseUser(data gjson.Result) models.IdentityUser {
	iu := models.IdentityUser{
		ExternalID: data.Get("id").String(),
		FirstName:  data.Get("first_name").String(),
		LastName:   data.Get("last_name").String(),
	}

	if primary := data.Get("primary_email_address_id").String(); primary != "" {
		data.Get("email_addresses").ForEach(func(_, v gjson.Result) bool {
			if v.Get("id").String() == primary {
				iu.Email = v.Get("email_address").String()
				return false
			}
			return true
		})
	}
	if iu.Email == "" {
		iu.Email = data.Get("email_addresses.0.email_address").String()
	}

	if primary := data.Get("primary_phone_number_id").String(); primary != "" {
		data.Get("phone_numbers").ForEach(func(_, v gjson.Result) bool {
			if v.Get("id").String() == primary {
				iu.Phone = v.Get("phone_number").String()
				return false
			}
			return true
		})
	}
	return iu
}
