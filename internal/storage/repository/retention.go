package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// Категории данных, для которых определены политики хранения.
const (
	CategoryDownloadHistory       = "download_history"
	CategoryConsentAuditLogs      = "consent_audit_logs"
	CategoryInactiveAccounts      = "inactive_accounts"
	CategoryCanceledSubscriptions = "canceled_subscriptions"
	CategoryRetentionLogs         = "data_retention_logs"
	CategoryPrivacyRequests       = "privacy_requests"
)

// retentionQuery пара запросов для категории: подсчёт и применение. $1: граница cutoff.
type retentionQuery struct {
	count string
	apply string
}

var retentionQueries = map[string]retentionQuery{
	CategoryDownloadHistory: {
		count: `SELECT COUNT(*) FROM download_history WHERE downloaded_at < $1`,
		apply: `DELETE FROM download_history WHERE downloaded_at < $1`,
	},
	CategoryConsentAuditLogs: {
		count: `SELECT COUNT(*) FROM consent_audit_logs WHERE created_at < $1`,
		apply: `DELETE FROM consent_audit_logs WHERE created_at < $1`,
	},
	CategoryInactiveAccounts: {
		count: `SELECT COUNT(*) FROM users u
			  WHERE COALESCE(u.last_seen_at, u.created_at) < $1
			    AND u.external_id NOT LIKE 'anonymized:%'
			    AND NOT EXISTS (SELECT 1 FROM subscriptions s
			        WHERE s.user_uid = u.uid AND s.status IN ('active', 'trialing', 'past_due'))`,
		apply: `UPDATE users u
			  SET external_id = 'anonymized:' || u.uid::text,
			      email = 'anonymized-' || u.uid::text || '@invalid',
			      first_name = '', last_name = '', phone = '',
			      profession = '', organization = '',
			      updated_at = NOW()
			  WHERE COALESCE(u.last_seen_at, u.created_at) < $1
			    AND u.external_id NOT LIKE 'anonymized:%'
			    AND NOT EXISTS (SELECT 1 FROM subscriptions s
			        WHERE s.user_uid = u.uid AND s.status IN ('active', 'trialing', 'past_due'))`,
	},
	CategoryCanceledSubscriptions: {
		count: `SELECT COUNT(*) FROM subscriptions
			  WHERE status = 'canceled' AND updated_at < $1
			    AND (provider_customer_id <> '' OR provider_subscription_id <> '')`,
		apply: `UPDATE subscriptions
			  SET provider_customer_id = '', provider_subscription_id = ''
			  WHERE status = 'canceled' AND updated_at < $1
			    AND (provider_customer_id <> '' OR provider_subscription_id <> '')`,
	},
	CategoryRetentionLogs: {
		count: `SELECT COUNT(*) FROM data_retention_logs WHERE executed_at < $1`,
		apply: `DELETE FROM data_retention_logs WHERE executed_at < $1`,
	},
	CategoryPrivacyRequests: {
		count: `SELECT COUNT(*) FROM privacy_requests WHERE created_at < $1`,
		apply: `DELETE FROM privacy_requests WHERE created_at < $1`,
	},
}

// SupportsRetentionCategory сообщает, умеет ли хранилище обрабатывать категорию.
func SupportsRetentionCategory(category string) bool {
	_, ok := retentionQueries[category]
	return ok
}

// UpsertRetentionPolicies синхронизирует каталог политик с таблицей data_retention_policies.
func (s *Storage) UpsertRetentionPolicies(ctx context.Context, policies []models.DataRetentionPolicy) error {
	const op = "storage.UpsertRetentionPolicies"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, p := range policies {
			_, err := tx.ExecContext(ctx, `INSERT INTO data_retention_policies
				  (data_category, retention_days, action, legal_basis, description, updated_at)
				  VALUES ($1, $2, $3, $4, $5, NOW())
				  ON CONFLICT (data_category) DO UPDATE
				  SET retention_days = EXCLUDED.retention_days,
				      action = EXCLUDED.action,
				      legal_basis = EXCLUDED.legal_basis,
				      description = EXCLUDED.description,
				      updated_at = NOW()`,
				p.DataCategory, p.RetentionDays, p.Action, p.LegalBasis, p.Description)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListRetentionPolicies возвращает сохранённые политики.
func (s *Storage) ListRetentionPolicies(ctx context.Context) ([]models.DataRetentionPolicy, error) {
	const op = "storage.ListRetentionPolicies"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT data_category, retention_days, action, legal_basis, description
			  FROM data_retention_policies
			  ORDER BY data_category`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.DataRetentionPolicy, 0)
	for rows.Next() {
		var p models.DataRetentionPolicy
		if err := rows.Scan(&p.DataCategory, &p.RetentionDays, &p.Action, &p.LegalBasis, &p.Description); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ApplyRetention выполняет очистку категории и возвращает число затронутых записей.
func (s *Storage) ApplyRetention(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	const op = "storage.ApplyRetention"
	if err := checkCtx(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	q, ok := retentionQueries[category]
	if !ok {
		return 0, fmt.Errorf("%s: unknown data category %q", op, category)
	}
	res, err := s.DB.ExecContext(ctx, q.apply, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// CountRetention считает записи, которые были бы обработаны, ничего не меняя.
func (s *Storage) CountRetention(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	const op = "storage.CountRetention"
	if err := checkCtx(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	q, ok := retentionQueries[category]
	if !ok {
		return 0, fmt.Errorf("%s: unknown data category %q", op, category)
	}
	var n int64
	if err := s.DB.QueryRowContext(ctx, q.count, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// InsertRetentionLog сохраняет результат применения политики.
func (s *Storage) InsertRetentionLog(ctx context.Context, entry *models.DataRetentionLog) error {
	const op = "storage.InsertRetentionLog"
	if err := checkCtx(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := s.DB.QueryRowContext(ctx, `INSERT INTO data_retention_logs
			  (data_category, action, records_affected, status, error_message, executed_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING id`,
		entry.DataCategory, entry.Action, entry.RecordsAffected, entry.Status, entry.ErrorMessage, entry.ExecutedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListRetentionLogs возвращает последние записи журнала политик хранения.
func (s *Storage) ListRetentionLogs(ctx context.Context, limit int) ([]*models.DataRetentionLog, error) {
	const op = "storage.ListRetentionLogs"
	if err := checkCtx(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, data_category, action, records_affected, status,
			      error_message, executed_at
			  FROM data_retention_logs
			  ORDER BY executed_at DESC, id DESC
			  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.DataRetentionLog, 0)
	for rows.Next() {
		var item models.DataRetentionLog
		if err := rows.Scan(&item.ID, &item.DataCategory, &item.Action, &item.RecordsAffected,
			&item.Status, &item.ErrorMessage, &item.ExecutedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
