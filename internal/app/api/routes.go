package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	consenthistory "github.com/magabrotheeeer/fonoapp/internal/http/handlers/consent/history"
	consentlist "github.com/magabrotheeeer/fonoapp/internal/http/handlers/consent/list"
	consentupdate "github.com/magabrotheeeer/fonoapp/internal/http/handlers/consent/update"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/download/check"
	downloadhistory "github.com/magabrotheeeer/fonoapp/internal/http/handlers/download/history"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/download/record"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/health"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/privacy/deletion"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/privacy/export"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/privacy/policies"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/privacy/rectification"
	profileget "github.com/magabrotheeeer/fonoapp/internal/http/handlers/profile/get"
	profileupdate "github.com/magabrotheeeer/fonoapp/internal/http/handlers/profile/update"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/subscription/checkout"
	"github.com/magabrotheeeer/fonoapp/internal/http/handlers/subscription/status"
	identitywebhook "github.com/magabrotheeeer/fonoapp/internal/http/handlers/webhook/identity"
	paymentwebhook "github.com/magabrotheeeer/fonoapp/internal/http/handlers/webhook/payment"
	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/lib/metrics"
	consentservice "github.com/magabrotheeeer/fonoapp/internal/services/consent"
	downloadservice "github.com/magabrotheeeer/fonoapp/internal/services/download"
	identityservice "github.com/magabrotheeeer/fonoapp/internal/services/identity"
	privacyservice "github.com/magabrotheeeer/fonoapp/internal/services/privacy"
	profileservice "github.com/magabrotheeeer/fonoapp/internal/services/profile"
	retentionservice "github.com/magabrotheeeer/fonoapp/internal/services/retention"
	subscriptionservice "github.com/magabrotheeeer/fonoapp/internal/services/subscription"
)

// Deps зависимости маршрутов API.
type Deps struct {
	Profile      *profileservice.Service
	Subscription *subscriptionservice.Service
	Download     *downloadservice.Service
	Consent      *consentservice.Service
	Retention    *retentionservice.Service
	Privacy      *privacyservice.Service
	Identity     *identityservice.Service

	Tokens           middlewarectx.TokenParser
	Users            middlewarectx.UserResolver
	Limiter          *middlewarectx.RateLimiter
	IdentityVerifier identitywebhook.Verifier
	PaymentVerifier  paymentwebhook.Verifier
	WebhookTimeout   time.Duration
	Checks           map[string]health.Checker
	CORSOrigins      []string
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		cors.New(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Disposition"},
			AllowCredentials: true,
		}).Handler,
		metrics.Middleware,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки, лимит по IP
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, d.Limiter))

			r.Get("/health", health.New(logger, d.Checks).ServeHTTP)
			r.Get("/privacy/retention-policies", policies.New(logger, d.Retention).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Tokens, d.Users, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger, d.Limiter))

			r.Get("/profile", profileget.New(logger, d.Profile).ServeHTTP)
			r.Put("/profile", profileupdate.New(logger, d.Profile).ServeHTTP)

			r.Get("/subscription", status.New(logger, d.Subscription).ServeHTTP)
			r.Post("/subscription/checkout", checkout.New(logger, d.Subscription).ServeHTTP)
			r.Post("/subscription/cancel", cancel.New(logger, d.Subscription).ServeHTTP)

			r.Get("/downloads/limit", check.New(logger, d.Download).ServeHTTP)
			r.Post("/downloads", record.New(logger, d.Download).ServeHTTP)
			r.Get("/downloads/history", downloadhistory.New(logger, d.Download).ServeHTTP)

			r.Get("/consents", consentlist.New(logger, d.Consent).ServeHTTP)
			r.Put("/consents", consentupdate.New(logger, d.Consent).ServeHTTP)
			r.Get("/consents/history", consenthistory.New(logger, d.Consent).ServeHTTP)

			r.Get("/privacy/export", export.New(logger, d.Privacy).ServeHTTP)
			r.Post("/privacy/deletion", deletion.New(logger, d.Privacy).ServeHTTP)
			r.Put("/privacy/rectification", rectification.New(logger, d.Privacy).ServeHTTP)
		})
	})

	// Webhook endpoints (без сессии, проверяется подпись)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/identity", identitywebhook.New(logger, d.Identity, d.IdentityVerifier).ServeHTTP)
		r.Post("/payment", paymentwebhook.New(logger, d.Subscription, d.PaymentVerifier, d.WebhookTimeout).ServeHTTP)
	})

	r.Handle("/metrics", metrics.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
