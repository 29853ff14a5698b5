// Package profile реализует чтение и изменение профиля пользователя с кэшированием в Redis.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/cache"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// Repository методы хранилища, нужные сервису профиля.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Service сервис профиля.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New создаёт сервис профиля.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Get возвращает профиль, сначала пытаясь взять его из кэша.
func (s *Service) Get(ctx context.Context, userUID string) (*models.User, error) {
	const op = "profile.Get"
	key := cache.ProfileKey(userUID)

	var cached models.User
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("failed to read profile from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, key, u, cache.ProfileTTL); err != nil {
		s.log.Warn("failed to cache profile", slog.String("key", key), sl.Err(err))
	}
	return u, nil
}

// Update применяет изменения профиля. Возвращает обновлённого пользователя
// и имена изменённых полей; если ничего не изменилось, запись не трогается.
func (s *Service) Update(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, []string, error) {
	const op = "profile.Update"

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	changed := upd.Apply(u)
	if len(changed) == 0 {
		return u, nil, nil
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	s.Invalidate(ctx, userUID)

	s.log.Info("profile updated", slog.String("user_uid", userUID), slog.Any("fields", changed))
	return u, changed, nil
}

// Invalidate удаляет профиль из кэша.
func (s *Service) Invalidate(ctx context.Context, userUID string) {
	key := cache.ProfileKey(userUID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to invalidate profile cache", slog.String("key", key), sl.Err(err))
	}
}
