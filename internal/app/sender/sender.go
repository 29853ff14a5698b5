// Package sender собирает сервис рассылки: читает очереди уведомлений и отправляет письма.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fonoapp/internal/config"
	"github.com/magabrotheeeer/fonoapp/internal/lib/pseudonym"
	"github.com/magabrotheeeer/fonoapp/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/lib/smtp"
	consentservice "github.com/magabrotheeeer/fonoapp/internal/services/consent"
	senderservice "github.com/magabrotheeeer/fonoapp/internal/services/sender"
	"github.com/magabrotheeeer/fonoapp/internal/storage/repository"
)

// App сервис рассылки.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	db            *repository.Storage
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключает хранилище и брокер и создаёт сервис рассылки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"
	a := &App{logger: logger}

	var err error
	a.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = repository.WaitReady(ctx, a.db, 10, 3*time.Second); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hasher, err := pseudonym.New(cfg.PseudonymKey)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	consents := consentservice.New(a.db, hasher, logger)
	a.senderService = senderservice.New(smtp.NewTransport(cfg.SMTP, logger), consents, logger)

	return a, nil
}

// Run читает все очереди уведомлений до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	handle := func(body []byte) error {
		return a.senderService.Handle(ctx, body)
	}
	for _, q := range rabbitmq.GetNotificationQueues() {
		if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, q.QueueName, handle); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), sl.Err(err))
			a.close()
			return err
		}
		a.logger.Info("consumer started", slog.String("queue", q.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
