// Package identity принимает вебхуки провайдера аутентификации.
//
// Подпись проверяется по заголовкам svix-id, svix-timestamp и svix-signature.
// Ответ 2xx подтверждает доставку, на остальные ответы провайдер повторяет отправку.
package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fonoapp/internal/http/response"
	"github.com/magabrotheeeer/fonoapp/internal/lib/metrics"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	identitysvc "github.com/magabrotheeeer/fonoapp/internal/services/identity"
)

const (
	source       = "identity"
	maxBodyBytes = 1 << 20
)

type Handler struct {
	log      *slog.Logger
	service  Service
	verifier Verifier
}

type Service interface {
	HandleEvent(ctx context.Context, payload []byte) (string, error)
}

type Verifier interface {
	Verify(msgID, timestamp, signatures string, body []byte) error
}

func New(log *slog.Logger, service Service, verifier Verifier) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.identity"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("svix_id", r.Header.Get("svix-id")),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		metrics.WebhookEvent(source, "", "bad_request")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request"))
		return
	}

	err = h.verifier.Verify(r.Header.Get("svix-id"), r.Header.Get("svix-timestamp"), r.Header.Get("svix-signature"), body)
	if err != nil {
		log.Warn("invalid webhook signature", sl.Err(err))
		metrics.WebhookEvent(source, "", "invalid_signature")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	eventType, err := h.service.HandleEvent(r.Context(), body)
	switch {
	case errors.Is(err, identitysvc.ErrMalformedPayload):
		log.Error("malformed webhook payload", sl.Err(err))
		metrics.WebhookEvent(source, eventType, "bad_request")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("malformed payload"))
		return
	case err != nil:
		log.Error("failed to handle webhook event", slog.String("event", eventType), sl.Err(err))
		metrics.WebhookEvent(source, eventType, "error")
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	metrics.WebhookEvent(source, eventType, "ok")
	log.Info("webhook processed", slog.String("event", eventType))
	render.JSON(w, r, response.StatusOKWithData(map[string]string{
		"event": eventType,
	}))
}
