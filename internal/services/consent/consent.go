// Package consent ведёт реестр согласий пользователя на обработку персональных данных (LGPD)
// и журнал их изменений.
package consent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/lib/metrics"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// Цели обработки данных.
const (
	TypeEssential         = "essential"
	TypeAnalytics         = "analytics"
	TypeMarketingEmails   = "marketing_emails"
	TypePersonalization   = "personalization"
	TypeThirdPartySharing = "third_party_sharing"
)

const (
	catalogVersion = "1.0"
	historyLimit   = 100
)

var catalog = []models.ConsentType{
	{
		Type:        TypeEssential,
		Title:       "Funcionamento da plataforma",
		Description: "Dados necessários para criar a conta, autenticar o acesso e liberar os materiais.",
		LegalBasis:  "execução de contrato (art. 7º, V)",
		Required:    true,
		Version:     catalogVersion,
	},
	{
		Type:        TypeAnalytics,
		Title:       "Análise de uso",
		Description: "Estatísticas anônimas de navegação para melhorar os exercícios.",
		LegalBasis:  "consentimento (art. 7º, I)",
		Version:     catalogVersion,
	},
	{
		Type:        TypeMarketingEmails,
		Title:       "E-mails promocionais",
		Description: "Novidades, ofertas do plano Premium e conteúdos para fonoaudiólogos.",
		LegalBasis:  "consentimento (art. 7º, I)",
		Version:     catalogVersion,
	},
	{
		Type:        TypePersonalization,
		Title:       "Personalização",
		Description: "Recomendação de exercícios com base no histórico de downloads.",
		LegalBasis:  "consentimento (art. 7º, I)",
		Version:     catalogVersion,
	},
	{
		Type:        TypeThirdPartySharing,
		Title:       "Compartilhamento com parceiros",
		Description: "Compartilhamento de dados de contato com parceiros educacionais.",
		LegalBasis:  "consentimento (art. 7º, I)",
		Version:     catalogVersion,
	},
}

// Catalog возвращает копию каталога целей обработки.
func Catalog() []models.ConsentType {
	out := make([]models.ConsentType, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup ищет цель в каталоге.
func Lookup(consentType string) (models.ConsentType, bool) {
	for _, c := range catalog {
		if c.Type == consentType {
			return c, true
		}
	}
	return models.ConsentType{}, false
}

// Repository методы хранилища для согласий.
type Repository interface {
	ListConsentRecords(ctx context.Context, userUID string) ([]*models.ConsentRecord, error)
	SaveConsent(ctx context.Context, audit *models.ConsentAuditLog, now time.Time) error
	SaveConsents(ctx context.Context, audits []*models.ConsentAuditLog, now time.Time) error
	ListConsentAudit(ctx context.Context, userUID string, limit int) ([]*models.ConsentAuditLog, error)
}

// Hasher псевдонимизирует IP-адрес и User-Agent.
type Hasher interface {
	Hash(value string) string
}

// Service сервис согласий.
type Service struct {
	repo   Repository
	hasher Hasher
	log    *slog.Logger
	now    func() time.Time
}

// New создаёт сервис согласий.
func New(repo Repository, hasher Hasher, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		log:    log,
		now:    time.Now,
	}
}

// List возвращает все цели каталога с решением пользователя.
// Обязательные цели всегда считаются согласованными.
func (s *Service) List(ctx context.Context, userUID string) ([]models.UserConsent, error) {
	const op = "consent.List"

	records, err := s.repo.ListConsentRecords(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	byType := make(map[string]*models.ConsentRecord, len(records))
	for _, r := range records {
		byType[r.ConsentType] = r
	}

	result := make([]models.UserConsent, 0, len(catalog))
	for _, c := range catalog {
		uc := models.UserConsent{ConsentType: c, Granted: c.Required}
		if r, ok := byType[c.Type]; ok {
			uc.Granted = r.Granted || c.Required
			updated := r.UpdatedAt
			uc.UpdatedAt = &updated
		}
		result = append(result, uc)
	}
	return result, nil
}

// Update меняет одно согласие и пишет запись в журнал.
func (s *Service) Update(ctx context.Context, userUID string, change models.ConsentChange, meta models.RequestMeta) (*models.ConsentAuditLog, error) {
	const op = "consent.Update"

	if err := validate(change); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	audit, err := s.save(ctx, userUID, change, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return audit, nil
}

// UpdateBatch применяет несколько изменений атомарно. Все изменения проверяются до записи в хранилище.
func (s *Service) UpdateBatch(ctx context.Context, userUID string, changes []models.ConsentChange, meta models.RequestMeta) ([]*models.ConsentAuditLog, error) {
	const op = "consent.UpdateBatch"

	for _, c := range changes {
		if err := validate(c); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, c.ConsentType, err)
		}
	}

	audits := make([]*models.ConsentAuditLog, 0, len(changes))
	for _, c := range changes {
		audits = append(audits, s.newAudit(userUID, c, meta))
	}
	if err := s.repo.SaveConsents(ctx, audits, s.now()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, a := range audits {
		s.applied(a)
	}
	return audits, nil
}

// History возвращает журнал изменений согласий, новые записи первыми.
func (s *Service) History(ctx context.Context, userUID string) ([]*models.ConsentAuditLog, error) {
	const op = "consent.History"
	items, err := s.repo.ListConsentAudit(ctx, userUID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// HasConsent сообщает, дал ли пользователь согласие на цель.
func (s *Service) HasConsent(ctx context.Context, userUID, consentType string) (bool, error) {
	const op = "consent.HasConsent"

	c, ok := Lookup(consentType)
	if !ok {
		return false, fmt.Errorf("%s: %w", op, models.ErrUnknownConsentType)
	}
	if c.Required {
		return true, nil
	}
	records, err := s.repo.ListConsentRecords(ctx, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	for _, r := range records {
		if r.ConsentType == consentType {
			return r.Granted, nil
		}
	}
	return false, nil
}

func validate(change models.ConsentChange) error {
	c, ok := Lookup(change.ConsentType)
	if !ok {
		return models.ErrUnknownConsentType
	}
	if change.Granted == nil {
		return fmt.Errorf("granted is missing")
	}
	if c.Required && !*change.Granted {
		return models.ErrConsentRequired
	}
	return nil
}

func (s *Service) save(ctx context.Context, userUID string, change models.ConsentChange, meta models.RequestMeta) (*models.ConsentAuditLog, error) {
	audit := s.newAudit(userUID, change, meta)
	if err := s.repo.SaveConsent(ctx, audit, s.now()); err != nil {
		return nil, err
	}
	s.applied(audit)
	return audit, nil
}

func (s *Service) newAudit(userUID string, change models.ConsentChange, meta models.RequestMeta) *models.ConsentAuditLog {
	c, _ := Lookup(change.ConsentType)
	return &models.ConsentAuditLog{
		UserUID:       userUID,
		ConsentType:   c.Type,
		NewState:      *change.Granted,
		Version:       c.Version,
		IPHash:        s.hasher.Hash(meta.IP),
		UserAgentHash: s.hasher.Hash(meta.UserAgent),
	}
}

func (s *Service) applied(audit *models.ConsentAuditLog) {
	metrics.ConsentChanged(audit.ConsentType, audit.Action)
	s.log.Info("consent updated",
		slog.String("user_uid", audit.UserUID),
		slog.String("consent_type", audit.ConsentType),
		slog.String("action", audit.Action),
	)
}
