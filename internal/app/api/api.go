// Package api собирает HTTP API fonoapp: хранилище, кэш, брокер, сервисы и маршруты.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/fonoapp/internal/cache"
	"github.com/magabrotheeeer/fonoapp/internal/config"
	grpcserver "github.com/magabrotheeeer/fonoapp/internal/grpc/server"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/health"
	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/lib/jwt"
	"github.com/magabrotheeeer/fonoapp/internal/lib/pseudonym"
	"github.com/magabrotheeeer/fonoapp/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/fonoapp/internal/lib/signature"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/migrations"
	"github.com/magabrotheeeer/fonoapp/internal/paymentprovider"
	consentservice "github.com/magabrotheeeer/fonoapp/internal/services/consent"
	downloadservice "github.com/magabrotheeeer/fonoapp/internal/services/download"
	identityservice "github.com/magabrotheeeer/fonoapp/internal/services/identity"
	privacyservice "github.com/magabrotheeeer/fonoapp/internal/services/privacy"
	profileservice "github.com/magabrotheeeer/fonoapp/internal/services/profile"
	retentionservice "github.com/magabrotheeeer/fonoapp/internal/services/retention"
	subscriptionservice "github.com/magabrotheeeer/fonoapp/internal/services/subscription"
	"github.com/magabrotheeeer/fonoapp/internal/storage/repository"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
	healthInterval  = 15 * time.Second
	shutdownTimeout = 15 * time.Second
)

// App HTTP API вместе с gRPC-сервером проверки здоровья.
type App struct {
	server   *http.Server
	health   *grpcserver.HealthServer
	grpcAddr string
	logger   *slog.Logger
	db       *repository.Storage
	cache    *cache.Cache
	conn     *amqp.Connection
	ch       *amqp.Channel
}

// New подключает зависимости, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.api.New"
	a := &App{logger: logger, grpcAddr: cfg.AddressGRPC}

	deps, err := a.setup(ctx, cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, deps)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}
	a.health = grpcserver.NewHealthServer(logger, map[string]grpcserver.Pinger{
		"database": a.db,
		"cache":    a.cache,
	}, healthInterval)

	return a, nil
}

func (a *App) setup(ctx context.Context, cfg *config.Config) (Deps, error) {
	var err error

	a.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		return Deps{}, err
	}
	if err = migrations.Run(a.db.DB, cfg.MigrationsPath); err != nil {
		return Deps{}, err
	}
	if err = repository.WaitReady(ctx, a.db, dbReadyAttempts, dbReadyDelay); err != nil {
		return Deps{}, err
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return Deps{}, err
	}

	a.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return Deps{}, err
	}
	a.logger.Info("connected to RabbitMQ")
	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return Deps{}, err
	}
	publisher := rabbitmq.NewPublisher(a.ch)

	hasher, err := pseudonym.New(cfg.PseudonymKey)
	if err != nil {
		return Deps{}, err
	}
	tokens, err := jwt.NewVerifier(cfg.JWTSecret, cfg.JWTPublicKeyPEM, cfg.Issuer)
	if err != nil {
		return Deps{}, err
	}
	identityVerifier, err := signature.NewSvixVerifier(cfg.IdentityWHSecret)
	if err != nil {
		return Deps{}, err
	}
	paymentVerifier := signature.NewTimestampedVerifier(cfg.PaymentSecret)
	provider := paymentprovider.NewClient(cfg.APIURL, cfg.APIKey)

	profileService := profileservice.New(a.db, a.cache, a.logger)
	subscriptionService := subscriptionservice.New(a.db, provider, a.cache, publisher, subscriptionservice.CheckoutConfig{
		PriceID:    cfg.PriceID,
		SuccessURL: cfg.SuccessURL,
		CancelURL:  cfg.CancelURL,
	}, a.logger)
	downloadService := downloadservice.New(a.db, subscriptionService, publisher, hasher, a.logger,
		cfg.MonthlyLimit, cfg.ResetPeriod)
	consentService := consentservice.New(a.db, hasher, a.logger)
	retentionService := retentionservice.New(a.db, a.logger)
	privacyService := privacyservice.New(a.db, profileService, subscriptionService, a.cache, publisher, hasher, a.logger)
	identityService := identityservice.New(a.db, privacyService, profileService, a.logger)

	if err := retentionService.Sync(ctx); err != nil {
		a.logger.Warn("failed to sync retention policies", sl.Err(err))
	}

	return Deps{
		Profile:          profileService,
		Subscription:     subscriptionService,
		Download:         downloadService,
		Consent:          consentService,
		Retention:        retentionService,
		Privacy:          privacyService,
		Identity:         identityService,
		Tokens:           tokens,
		Users:            a.db,
		Limiter:          middlewarectx.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		IdentityVerifier: identityVerifier,
		PaymentVerifier:  paymentVerifier,
		WebhookTimeout:   cfg.WebhookTimeout,
		Checks: map[string]health.Checker{
			"database": a.db,
			"cache":    a.cache,
		},
		CORSOrigins: cfg.CORSAllowedOrigins,
	}, nil
}

// Run обслуживает HTTP и gRPC до отмены ctx, затем останавливает их.
func (a *App) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		a.close()
		return fmt.Errorf("app.api.Run: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := a.health.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go a.health.Watch(watchCtx)

	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err = <-errCh:
		_ = a.server.Close()
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}

	stopWatch()
	a.health.Stop()
	a.close()
	return err
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
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
