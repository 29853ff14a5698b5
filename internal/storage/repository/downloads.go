package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// GetDownloadLimit возвращает счётчик скачиваний пользователя.
func (s *Storage) GetDownloadLimit(ctx context.Context, userUID string) (*models.DownloadLimit, error) {
	const op = "storage.GetDownloadLimit"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT user_uid, download_count, last_reset, updated_at
			  FROM download_limits
			  WHERE user_uid = $1`
	var dl models.DownloadLimit
	err := s.DB.QueryRowContext(ctx, query, userUID).
		Scan(&dl.UserUID, &dl.DownloadCount, &dl.LastReset, &dl.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapNoRows(err))
	}
	return &dl, nil
}

// CreateDownloadLimit создаёт нулевой счётчик. Если строка уже появилась
// в параллельном запросе, возвращается существующая.
func (s *Storage) CreateDownloadLimit(ctx context.Context, userUID string, now time.Time) (*models.DownloadLimit, error) {
	const op = "storage.CreateDownloadLimit"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO download_limits (user_uid, download_count, last_reset, updated_at)
			  VALUES ($1, 0, $2, $2)
			  ON CONFLICT (user_uid) DO UPDATE SET user_uid = EXCLUDED.user_uid
			  RETURNING user_uid, download_count, last_reset, updated_at`
	var dl models.DownloadLimit
	if err := s.DB.QueryRowContext(ctx, query, userUID, now).
		Scan(&dl.UserUID, &dl.DownloadCount, &dl.LastReset, &dl.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &dl, nil
}

// ResetDownloadLimit обнуляет счётчик, если последний сброс был раньше staleBefore.
// Возвращает nil без ошибки, если сброс уже выполнен другим запросом.
func (s *Storage) ResetDownloadLimit(ctx context.Context, userUID string, now, staleBefore time.Time) (*models.DownloadLimit, error) {
	const op = "storage.ResetDownloadLimit"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE download_limits
			  SET download_count = 0, last_reset = $2, updated_at = $2
			  WHERE user_uid = $1 AND last_reset < $3
			  RETURNING user_uid, download_count, last_reset, updated_at`
	var dl models.DownloadLimit
	err := s.DB.QueryRowContext(ctx, query, userUID, now, staleBefore).
		Scan(&dl.UserUID, &dl.DownloadCount, &dl.LastReset, &dl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &dl, nil
}

// RecordDownload атомарно увеличивает счётчик, если лимит не исчерпан,
// и пишет запись в историю. Возвращает новое значение счётчика.
func (s *Storage) RecordDownload(ctx context.Context, entry models.DownloadHistory, limit int) (int, error) {
	const op = "storage.RecordDownload"
	if err := checkCtx(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `UPDATE download_limits
			  SET download_count = download_count + 1, updated_at = $3
			  WHERE user_uid = $1 AND download_count < $2
			  RETURNING download_count`,
			entry.UserUID, limit, entry.DownloadedAt).Scan(&count)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrDownloadLimitReached
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO download_history
			  (user_uid, exercise_id, file_name, ip_hash, downloaded_at)
			  VALUES ($1, $2, $3, $4, $5)`,
			entry.UserUID, entry.ExerciseID, entry.FileName, entry.IPHash, entry.DownloadedAt)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// InsertDownloadHistory пишет запись в историю без изменения счётчика.
func (s *Storage) InsertDownloadHistory(ctx context.Context, entry models.DownloadHistory) (int64, error) {
	const op = "storage.InsertDownloadHistory"
	if err := checkCtx(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var id int64
	err := s.DB.QueryRowContext(ctx, `INSERT INTO download_history
			  (user_uid, exercise_id, file_name, ip_hash, downloaded_at)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`,
		entry.UserUID, entry.ExerciseID, entry.FileName, entry.IPHash, entry.DownloadedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// ListDownloadHistory возвращает историю скачиваний пользователя, новые сначала.
func (s *Storage) ListDownloadHistory(ctx context.Context, userUID string, limit, offset int) ([]*models.DownloadHistory, error) {
	const op = "storage.ListDownloadHistory"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT id, user_uid, exercise_id, file_name, ip_hash, downloaded_at
			  FROM download_history
			  WHERE user_uid = $1
			  ORDER BY downloaded_at DESC, id DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.DownloadHistory, 0)
	for rows.Next() {
		var item models.DownloadHistory
		if err := rows.Scan(&item.ID, &item.UserUID, &item.ExerciseID, &item.FileName,
			&item.IPHash, &item.DownloadedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
