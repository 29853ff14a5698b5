// Package scheduler собирает планировщик фоновых задач: политики хранения и напоминания о подписке.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fonoapp/internal/config"
	"github.com/magabrotheeeer/fonoapp/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	retentionservice "github.com/magabrotheeeer/fonoapp/internal/services/retention"
	schedulerservice "github.com/magabrotheeeer/fonoapp/internal/services/scheduler"
	"github.com/magabrotheeeer/fonoapp/internal/storage/repository"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.Service
	retentionSpec    string
	expiringSpec     string
	db               *repository.Storage
	conn             *amqp.Connection
	ch               *amqp.Channel
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.scheduler.New"
	a := &App{
		retentionSpec: cfg.RetentionSpec,
		expiringSpec:  cfg.ExpiringSpec,
		logger:        logger,
	}

	var err error
	a.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	a.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}
	if err := repository.WaitReady(ctx, a.db, 10, 3*time.Second); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	retention := retentionservice.New(a.db, logger)
	a.schedulerService = schedulerservice.New(retention, a.db, rabbitmq.NewPublisher(a.ch), logger)

	return a, nil
}

// Run запускает задачи по расписанию и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	c, err := a.schedulerService.Start(ctx, a.retentionSpec, a.expiringSpec)
	if err != nil {
		a.close()
		return err
	}
	a.logger.Info("scheduler started",
		slog.String("retention_spec", a.retentionSpec),
		slog.String("expiring_spec", a.expiringSpec),
	)

	<-ctx.Done()
	a.logger.Info("shutting down scheduler service")

	// ждём завершения уже запущенных задач
	<-c.Stop().Done()
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
