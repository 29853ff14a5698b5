package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

const userColumns = `u.uid, u.external_id, u.email, u.first_name, u.last_name, u.phone,
	u.profession, u.organization, u.role, COALESCE(s.status, 'free'),
	u.created_at, u.updated_at, u.last_seen_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var lastSeen sql.NullTime
	if err := row.Scan(&u.UID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName, &u.Phone,
		&u.Profession, &u.Organization, &u.Role, &u.SubscriptionStatus,
		&u.CreatedAt, &u.UpdatedAt, &lastSeen); err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		u.LastSeenAt = &lastSeen.Time
	}
	return &u, nil
}

// EnsureUser находит пользователя по внешнему идентификатору или создаёт его,
// отмечая время последнего визита. Возвращает UID и роль.
func (s *Storage) EnsureUser(ctx context.Context, externalID, email string) (string, string, error) {
	const op = "storage.EnsureUser"
	if err := checkCtx(ctx); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO users (external_id, email, last_seen_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (external_id) DO UPDATE
			  SET last_seen_at = NOW(),
			      email = CASE WHEN users.email = '' THEN EXCLUDED.email ELSE users.email END
			  RETURNING uid, role`
	var uid, role string
	if err := s.DB.QueryRowContext(ctx, query, externalID, email).Scan(&uid, &role); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, role, nil
}

// UpsertIdentityUser создаёт или обновляет пользователя по данным провайдера аутентификации.
func (s *Storage) UpsertIdentityUser(ctx context.Context, iu models.IdentityUser) (string, error) {
	const op = "storage.UpsertIdentityUser"
	if err := checkCtx(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO users (external_id, email, first_name, last_name, phone)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (external_id) DO UPDATE
			  SET email = EXCLUDED.email,
			      first_name = CASE WHEN EXCLUDED.first_name <> '' THEN EXCLUDED.first_name ELSE users.first_name END,
			      last_name = CASE WHEN EXCLUDED.last_name <> '' THEN EXCLUDED.last_name ELSE users.last_name END,
			      phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE users.phone END,
			      updated_at = NOW()
			  RETURNING uid`
	var uid string
	if err := s.DB.QueryRowContext(ctx, query,
		iu.ExternalID, iu.Email, iu.FirstName, iu.LastName, iu.Phone).Scan(&uid); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + userColumns + `
			  FROM users u
			  LEFT JOIN subscriptions s ON s.user_uid = u.uid
			  WHERE u.uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNoRows(err))
	}
	return u, nil
}

// GetUserByExternalID возвращает пользователя по идентификатору провайдера аутентификации.
func (s *Storage) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	const op = "storage.GetUserByExternalID"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + userColumns + `
			  FROM users u
			  LEFT JOIN subscriptions s ON s.user_uid = u.uid
			  WHERE u.external_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNoRows(err))
	}
	return u, nil
}

// UpdateUser сохраняет редактируемые поля профиля.
func (s *Storage) UpdateUser(ctx context.Context, u *models.User) error {
	const op = "storage.UpdateUser"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE users
			  SET email = $1, first_name = $2, last_name = $3, phone = $4,
			      profession = $5, organization = $6, updated_at = NOW()
			  WHERE uid = $7`
	res, err := s.DB.ExecContext(ctx, query,
		u.Email, u.FirstName, u.LastName, u.Phone, u.Profession, u.Organization, u.UID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
