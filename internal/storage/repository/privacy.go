package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// InsertPrivacyRequest сохраняет обращение субъекта данных.
func (s *Storage) InsertPrivacyRequest(ctx context.Context, req *models.PrivacyRequest) error {
	const op = "storage.InsertPrivacyRequest"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var userUID sql.NullString
	if req.UserUID != "" {
		userUID = sql.NullString{String: req.UserUID, Valid: true}
	}
	var completedAt sql.NullTime
	if req.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *req.CompletedAt, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO privacy_requests
			  (id, user_uid, type, status, details, created_at, completed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		req.ID, userUID, req.Type, req.Status, req.Details, req.CreatedAt, completedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListPrivacyRequests возвращает обращения пользователя, новые сначала.
func (s *Storage) ListPrivacyRequests(ctx context.Context, userUID string) ([]*models.PrivacyRequest, error) {
	const op = "storage.ListPrivacyRequests"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, type, status, details, created_at, completed_at
			  FROM privacy_requests
			  WHERE user_uid = $1
			  ORDER BY created_at DESC`, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.PrivacyRequest, 0)
	for rows.Next() {
		item := models.PrivacyRequest{UserUID: userUID}
		var completedAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.Type, &item.Status, &item.Details,
			&item.CreatedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if completedAt.Valid {
			item.CompletedAt = &completedAt.Time
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteUserData удаляет все данные пользователя в одной транзакции.
// Журнал согласий обезличивается, обращения субъекта остаются без привязки к пользователю.
func (s *Storage) DeleteUserData(ctx context.Context, userUID string) error {
	const op = "storage.DeleteUserData"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE consent_audit_logs
			  SET ip_hash = '', user_agent_hash = ''
			  WHERE user_uid = $1`, userUID); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM download_history WHERE user_uid = $1`,
			`DELETE FROM download_limits WHERE user_uid = $1`,
			`DELETE FROM consent_records WHERE user_uid = $1`,
			`DELETE FROM subscriptions WHERE user_uid = $1`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, userUID); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE uid = $1`, userUID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
