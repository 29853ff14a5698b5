package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fonoapp/internal/cache"
	"github.com/magabrotheeeer/fonoapp/internal/config"
	"github.com/magabrotheeeer/fonoapp/internal/lib/pseudonym"
	"github.com/magabrotheeeer/fonoapp/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
	"github.com/magabrotheeeer/fonoapp/internal/paymentprovider"
	privacyservice "github.com/magabrotheeeer/fonoapp/internal/services/privacy"
	profileservice "github.com/magabrotheeeer/fonoapp/internal/services/profile"
	retentionservice "github.com/magabrotheeeer/fonoapp/internal/services/retention"
	subscriptionservice "github.com/magabrotheeeer/fonoapp/internal/services/subscription"
	"github.com/magabrotheeeer/fonoapp/internal/storage/repository"
)

// RetentionRunner операции над политиками хранения.
type RetentionRunner interface {
	Policies() []models.DataRetentionPolicy
	Apply(ctx context.Context, now time.Time, dryRun bool) (*retentionservice.Summary, error)
	Logs(ctx context.Context, limit int) ([]*models.DataRetentionLog, error)
}

// PrivacyRunner операции над данными субъекта.
type PrivacyRunner interface {
	Export(ctx context.Context, userUID, format string) (*privacyservice.Document, error)
	Delete(ctx context.Context, userUID string) error
}

// Backend сервисы, с которыми работают команды.
type Backend struct {
	Retention RetentionRunner
	Privacy   PrivacyRunner
	Close     func()
}

// Connector создаёт Backend для команды.
type Connector func(ctx context.Context, log *slog.Logger) (*Backend, error)

// connect подключается к тем же хранилищам, что и API, по конфигу из CONFIG_PATH.
func connect(ctx context.Context, log *slog.Logger) (*Backend, error) {
	const op = "lgpdctl.connect"

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var closers []io.Closer
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("failed to close resource", sl.Err(err))
			}
		}
	}
	fail := func(err error) (*Backend, error) {
		closeAll()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, db)
	if err := repository.CheckDatabaseReady(ctx, db); err != nil {
		return fail(err)
	}

	redisCache, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, redisCache)

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, 1, 0)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, conn)
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return fail(err)
	}
	closers = append(closers, channelCloser{ch})
	publisher := rabbitmq.NewPublisher(ch)

	hasher, err := pseudonym.New(cfg.PseudonymKey)
	if err != nil {
		return fail(err)
	}

	profiles := profileservice.New(db, redisCache, log)
	subscriptions := subscriptionservice.New(db, paymentprovider.NewClient(cfg.APIURL, cfg.APIKey),
		redisCache, publisher, subscriptionservice.CheckoutConfig{}, log)

	return &Backend{
		Retention: retentionservice.New(db, log),
		Privacy:   privacyservice.New(db, profiles, subscriptions, redisCache, publisher, hasher, log),
		Close:     closeAll,
	}, nil
}

type channelCloser struct {
	ch *amqp.Channel
}

func (c channelCloser) Close() error { return c.ch.Close() }
