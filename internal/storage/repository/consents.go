package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// ListConsentRecords возвращает сохранённые согласия пользователя.
func (s *Storage) ListConsentRecords(ctx context.Context, userUID string) ([]*models.ConsentRecord, error) {
	const op = "storage.ListConsentRecords"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT user_uid, consent_type, granted, version, granted_at, withdrawn_at, updated_at
			  FROM consent_records
			  WHERE user_uid = $1
			  ORDER BY consent_type`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.ConsentRecord, 0)
	for rows.Next() {
		var rec models.ConsentRecord
		var grantedAt, withdrawnAt sql.NullTime
		if err := rows.Scan(&rec.UserUID, &rec.ConsentType, &rec.Granted, &rec.Version,
			&grantedAt, &withdrawnAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if grantedAt.Valid {
			rec.GrantedAt = &grantedAt.Time
		}
		if withdrawnAt.Valid {
			rec.WithdrawnAt = &withdrawnAt.Time
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// SaveConsent в одной транзакции блокирует текущую запись согласия, сохраняет новое
// состояние (не более одной записи на пользователя и цель) и пишет строку журнала.
func (s *Storage) SaveConsent(ctx context.Context, audit *models.ConsentAuditLog, now time.Time) error {
	const op = "storage.SaveConsent"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return saveConsentTx(ctx, tx, audit, now)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	audit.CreatedAt = now
	return nil
}

// SaveConsents сохраняет несколько изменений согласий в одной транзакции:
// либо применяются все, либо ни одно.
func (s *Storage) SaveConsents(ctx context.Context, audits []*models.ConsentAuditLog, now time.Time) error {
	const op = "storage.SaveConsents"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, a := range audits {
			if err := saveConsentTx(ctx, tx, a, now); err != nil {
				return fmt.Errorf("%s: %w", a.ConsentType, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, a := range audits {
		a.CreatedAt = now
	}
	return nil
}

// saveConsentTx записывает одно изменение внутри транзакции tx.
func saveConsentTx(ctx context.Context, tx *sql.Tx, audit *models.ConsentAuditLog, now time.Time) error {
	var prev bool
	err := tx.QueryRowContext(ctx, `SELECT granted FROM consent_records
		  WHERE user_uid = $1 AND consent_type = $2
		  FOR UPDATE`, audit.UserUID, audit.ConsentType).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		audit.PreviousState = nil
	case err != nil:
		return err
	default:
		audit.PreviousState = &prev
	}
	audit.Action = models.ConsentAction(audit.PreviousState, audit.NewState)

	var grantedAt, withdrawnAt sql.NullTime
	if audit.NewState {
		grantedAt = sql.NullTime{Time: now, Valid: true}
	} else {
		withdrawnAt = sql.NullTime{Time: now, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO consent_records
		  (user_uid, consent_type, granted, version, granted_at, withdrawn_at, updated_at)
		  VALUES ($1, $2, $3, $4, $5, $6, $7)
		  ON CONFLICT (user_uid, consent_type) DO UPDATE
		  SET granted = EXCLUDED.granted,
		      version = EXCLUDED.version,
		      granted_at = COALESCE(EXCLUDED.granted_at, consent_records.granted_at),
		      withdrawn_at = COALESCE(EXCLUDED.withdrawn_at, consent_records.withdrawn_at),
		      updated_at = EXCLUDED.updated_at`,
		audit.UserUID, audit.ConsentType, audit.NewState, audit.Version, grantedAt, withdrawnAt, now)
	if err != nil {
		return err
	}

	var prevState sql.NullBool
	if audit.PreviousState != nil {
		prevState = sql.NullBool{Bool: *audit.PreviousState, Valid: true}
	}
	return tx.QueryRowContext(ctx, `INSERT INTO consent_audit_logs
		  (user_uid, consent_type, action, previous_state, new_state, version,
		   ip_hash, user_agent_hash, created_at)
		  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		  RETURNING id`,
		audit.UserUID, audit.ConsentType, audit.Action, prevState, audit.NewState, audit.Version,
		audit.IPHash, audit.UserAgentHash, now).Scan(&audit.ID)
}

// ListConsentAudit возвращает журнал изменений согласий пользователя, новые сначала.
func (s *Storage) ListConsentAudit(ctx context.Context, userUID string, limit int) ([]*models.ConsentAuditLog, error) {
	const op = "storage.ListConsentAudit"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT id, user_uid, consent_type, action, previous_state, new_state, version,
			      ip_hash, user_agent_hash, created_at
			  FROM consent_audit_logs
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, id DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.ConsentAuditLog, 0)
	for rows.Next() {
		var item models.ConsentAuditLog
		var prev sql.NullBool
		if err := rows.Scan(&item.ID, &item.UserUID, &item.ConsentType, &item.Action, &prev,
			&item.NewState, &item.Version, &item.IPHash, &item.UserAgentHash, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if prev.Valid {
			p := prev.Bool
			item.PreviousState = &p
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
