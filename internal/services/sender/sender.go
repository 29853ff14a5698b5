// Package sender формирует и отправляет письма по уведомлениям из брокера.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/magabrotheeeer/fonoapp/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/lib/smtp"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

const marketingConsent = "marketing_emails"

// ConsentChecker проверяет согласие пользователя на цель обработки.
type ConsentChecker interface {
	HasConsent(ctx context.Context, userUID, consentType string) (bool, error)
}

// Email готовое письмо.
type Email struct {
	To      string
	Subject string
	Body    string
}

type template struct {
	subject   string
	body      func(n models.Notification) string
	marketing bool
}

var templates = map[string]template{
	models.NotificationDownloadWarning: {
		subject: "Resta 1 download gratuito este mês",
		body: func(n models.Notification) string {
			return fmt.Sprintf("Olá, %s!\n\nVocê usou %s dos %s downloads gratuitos deste mês e tem apenas 1 restante.\n"+
				"O limite será renovado em %s.\n",
				greetingName(n), used(n), n.Data["limit"], formatDate(n.Data["reset_at"]))
		},
		marketing: true,
	},
	models.NotificationDownloadLimitReached: {
		subject: "Limite de downloads gratuitos atingido",
		body: func(n models.Notification) string {
			return fmt.Sprintf("Olá, %s!\n\nVocê atingiu o limite de %s downloads gratuitos deste mês.\n"+
				"Novos downloads estarão disponíveis em %s.\n",
				greetingName(n), n.Data["limit"], formatDate(n.Data["reset_at"]))
		},
		marketing: true,
	},
	models.NotificationPaymentFailed: {
		subject: "Não conseguimos processar seu pagamento",
		body: func(n models.Notification) string {
			return fmt.Sprintf("Olá, %s!\n\nO pagamento da sua assinatura Premium não foi aprovado.\n"+
				"Atualize a forma de pagamento no painel para manter o acesso ilimitado aos materiais.\n",
				greetingName(n))
		},
	},
	models.NotificationSubscriptionExpiring: {
		subject: "Sua assinatura Premium termina em breve",
		body: func(n models.Notification) string {
			return fmt.Sprintf("Olá, %s!\n\nSua assinatura Premium termina em %s e não será renovada.\n"+
				"Depois dessa data sua conta volta ao plano gratuito, com limite mensal de downloads.\n",
				greetingName(n), formatDate(n.Data["period_end"]))
		},
	},
	models.NotificationAccountDeleted: {
		subject: "Sua conta foi excluída",
		body: func(n models.Notification) string {
			return fmt.Sprintf("Olá, %s!\n\nConforme solicitado, excluímos sua conta e os dados pessoais associados a ela, "+
				"nos termos da Lei Geral de Proteção de Dados (LGPD).\n"+
				"Registros que a lei nos obriga a manter foram anonimizados.\n",
				greetingName(n))
		},
	},
}

const premiumOffer = "\nQuer downloads ilimitados? Conheça o plano Premium no seu painel.\n"

const signature = "\nEquipe fonoapp\n"

// Service сервис рассылки.
type Service struct {
	transport smtp.TransportInterface
	consents  ConsentChecker
	log       *slog.Logger
}

// New создаёт сервис рассылки.
func New(transport smtp.TransportInterface, consents ConsentChecker, log *slog.Logger) *Service {
	return &Service{
		transport: transport,
		consents:  consents,
		log:       log,
	}
}

// Handle обрабатывает сообщение из очереди. Нераспознанные сообщения отбрасываются.
func (s *Service) Handle(ctx context.Context, body []byte) error {
	const op = "sender.Handle"

	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDiscard, err)
	}
	email, err := s.Render(ctx, n)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrDiscard, err)
	}
	if err := s.sendEmail(email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("email sent", slog.String("kind", n.Kind), slog.String("notification_id", n.ID))
	return nil
}

// Render собирает письмо по уведомлению. Абзац о Premium добавляется
// только пользователям, согласившимся на рекламные письма.
func (s *Service) Render(ctx context.Context, n models.Notification) (*Email, error) {
	tpl, ok := templates[n.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	if n.Email == "" {
		return nil, fmt.Errorf("notification %s has no recipient", n.ID)
	}

	var b strings.Builder
	b.WriteString(tpl.body(n))
	if tpl.marketing && s.allowsMarketing(ctx, n.UserUID) {
		b.WriteString(premiumOffer)
	}
	b.WriteString(signature)

	return &Email{To: n.Email, Subject: tpl.subject, Body: b.String()}, nil
}

func (s *Service) allowsMarketing(ctx context.Context, userUID string) bool {
	if userUID == "" {
		return false
	}
	ok, err := s.consents.HasConsent(ctx, userUID, marketingConsent)
	if err != nil {
		s.log.Warn("failed to check marketing consent", slog.String("user_uid", userUID), sl.Err(err))
		return false
	}
	return ok
}

func (s *Service) sendEmail(e *Email) error {
	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + e.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", e.Subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		e.Body,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	if err := client.Rcpt(e.To); err != nil {
		s.log.Error("failed to set RCPT TO", sl.Err(err))
		return err
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err := wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	return client.Quit()
}

func greetingName(n models.Notification) string {
	if n.Name != "" {
		return n.Name
	}
	return "tudo bem"
}

func used(n models.Notification) string {
	var limit, remaining int
	_, errL := fmt.Sscan(n.Data["limit"], &limit)
	_, errR := fmt.Sscan(n.Data["remaining"], &remaining)
	if errL != nil || errR != nil {
		return "?"
	}
	return fmt.Sprint(limit - remaining)
}

func formatDate(rfc3339 string) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		return "breve"
	}
	return t.Format("02/01/2006")
}
