// Package retention применяет политики хранения персональных данных.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/lib/metrics"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
	"github.com/magabrotheeeer/fonoapp/internal/storage/repository"
)

var policies = []models.DataRetentionPolicy{
	{
		DataCategory:  repository.CategoryDownloadHistory,
		RetentionDays: 365,
		Action:        models.RetentionDelete,
		LegalBasis:    "art. 15 e 16 da LGPD",
		Description:   "Histórico de downloads de materiais",
	},
	{
		DataCategory:  repository.CategoryConsentAuditLogs,
		RetentionDays: 1825,
		Action:        models.RetentionDelete,
		LegalBasis:    "art. 8º, §2º e art. 37 da LGPD",
		Description:   "Registros de concessão e revogação de consentimentos",
	},
	{
		DataCategory:  repository.CategoryInactiveAccounts,
		RetentionDays: 730,
		Action:        models.RetentionAnonymize,
		LegalBasis:    "art. 16 da LGPD",
		Description:   "Contas sem acesso e sem assinatura ativa",
	},
	{
		DataCategory:  repository.CategoryCanceledSubscriptions,
		RetentionDays: 1825,
		Action:        models.RetentionAnonymize,
		LegalBasis:    "art. 16, I da LGPD e obrigações fiscais",
		Description:   "Identificadores de assinaturas canceladas no provedor de pagamento",
	},
	{
		DataCategory:  repository.CategoryRetentionLogs,
		RetentionDays: 1825,
		Action:        models.RetentionDelete,
		LegalBasis:    "art. 37 da LGPD",
		Description:   "Registros de execução das políticas de retenção",
	},
	{
		DataCategory:  repository.CategoryPrivacyRequests,
		RetentionDays: 1825,
		Action:        models.RetentionDelete,
		LegalBasis:    "art. 18 e 37 da LGPD",
		Description:   "Solicitações de titulares de dados",
	},
}

// Policies возвращает копию каталога политик.
func Policies() []models.DataRetentionPolicy {
	out := make([]models.DataRetentionPolicy, len(policies))
	copy(out, policies)
	return out
}

// Repository методы хранилища для политик хранения.
type Repository interface {
	UpsertRetentionPolicies(ctx context.Context, policies []models.DataRetentionPolicy) error
	ApplyRetention(ctx context.Context, category string, cutoff time.Time) (int64, error)
	CountRetention(ctx context.Context, category string, cutoff time.Time) (int64, error)
	InsertRetentionLog(ctx context.Context, entry *models.DataRetentionLog) error
	ListRetentionLogs(ctx context.Context, limit int) ([]*models.DataRetentionLog, error)
}

// Result итог обработки одной политики.
type Result struct {
	Policy  models.DataRetentionPolicy `json:"policy"`
	Cutoff  time.Time                  `json:"cutoff"`
	Records int64                      `json:"records"`
	Status  string                     `json:"status"`
	Error   string                     `json:"error,omitempty"`
}

// Summary итог прогона всех политик.
type Summary struct {
	ExecutedAt time.Time `json:"executed_at"`
	DryRun     bool      `json:"dry_run"`
	Results    []Result  `json:"results"`
}

// Service сервис политик хранения.
type Service struct {
	repo Repository
	log  *slog.Logger
}

// New создаёт сервис политик хранения.
func New(repo Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Policies возвращает каталог политик.
func (s *Service) Policies() []models.DataRetentionPolicy {
	return Policies()
}

// Sync сохраняет каталог политик в базе.
func (s *Service) Sync(ctx context.Context) error {
	const op = "retention.Sync"
	if err := s.repo.UpsertRetentionPolicies(ctx, policies); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Apply обрабатывает все политики с границей now минус срок хранения.
// Ошибка одной политики не останавливает остальные; все ошибки возвращаются вместе.
// В режиме dryRun записи только подсчитываются, журнал не пишется.
func (s *Service) Apply(ctx context.Context, now time.Time, dryRun bool) (*Summary, error) {
	const op = "retention.Apply"

	summary := &Summary{ExecutedAt: now, DryRun: dryRun}
	var errs []error

	for _, p := range policies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res := Result{Policy: p, Cutoff: p.Cutoff(now)}
		log := s.log.With(slog.String("policy", p.DataCategory), slog.String("action", p.Action))

		var err error
		if dryRun {
			res.Records, err = s.repo.CountRetention(ctx, p.DataCategory, res.Cutoff)
			res.Status = models.RetentionStatusDryRun
		} else {
			res.Records, err = s.repo.ApplyRetention(ctx, p.DataCategory, res.Cutoff)
			res.Status = models.RetentionStatusSuccess
		}
		if err != nil {
			res.Status = models.RetentionStatusFailed
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", p.DataCategory, err))
			log.Error("retention policy failed", sl.Err(err))
		} else {
			log.Info("retention policy processed", slog.Int64("records", res.Records), slog.Bool("dry_run", dryRun))
		}

		if !dryRun {
			metrics.RetentionProcessed(p.DataCategory, p.Action, res.Records)
			entry := &models.DataRetentionLog{
				DataCategory:    p.DataCategory,
				Action:          p.Action,
				RecordsAffected: res.Records,
				Status:          res.Status,
				ErrorMessage:    res.Error,
				ExecutedAt:      now,
			}
			if err := s.repo.InsertRetentionLog(ctx, entry); err != nil {
				log.Error("failed to write retention log", sl.Err(err))
				errs = append(errs, fmt.Errorf("%s: log: %w", p.DataCategory, err))
			}
		}
		summary.Results = append(summary.Results, res)
	}

	if err := errors.Join(errs...); err != nil {
		return summary, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

// Logs возвращает последние записи журнала.
func (s *Service) Logs(ctx context.Context, limit int) ([]*models.DataRetentionLog, error) {
	const op = "retention.Logs"
	if limit <= 0 {
		limit = 50
	}
	items, err := s.repo.ListRetentionLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}
