// Package payment принимает вебхуки платёжного провайдера.
//
// Подпись передаётся в заголовке X-Signature. Обработка события ограничена
// таймаутом: если он истекает раньше, провайдер получает 504 и повторит доставку.
package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fonoapp/internal/http/response"
	"github.com/magabrotheeeer/fonoapp/internal/lib/metrics"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/paymentprovider"
)

const (
	source          = "payment"
	signatureHeader = "X-Signature"
	maxBodyBytes    = 1 << 20
)

type Handler struct {
	log      *slog.Logger
	service  Service
	verifier Verifier
	timeout  time.Duration
}

type Service interface {
	HandleEvent(ctx context.Context, event paymentprovider.Event) error
}

type Verifier interface {
	Verify(header string, body []byte) error
}

func New(log *slog.Logger, service Service, verifier Verifier, timeout time.Duration) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		verifier: verifier,
		timeout:  timeout,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook.payment"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		metrics.WebhookEvent(source, "", "bad_request")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request"))
		return
	}

	if err := h.verifier.Verify(r.Header.Get(signatureHeader), body); err != nil {
		log.Warn("invalid webhook signature", sl.Err(err))
		metrics.WebhookEvent(source, "", "invalid_signature")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var event paymentprovider.Event
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		metrics.WebhookEvent(source, "", "bad_request")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("malformed payload"))
		return
	}
	if event.Type == "" {
		log.Warn("webhook payload without event type", slog.String("event_id", event.ID))
		metrics.WebhookEvent(source, "", "bad_request")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("malformed payload"))
		return
	}
	log = log.With(slog.String("event", event.Type), slog.String("event_id", event.ID))

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- h.service.HandleEvent(ctx, event)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Error("failed to handle webhook event", sl.Err(err))
			metrics.WebhookEvent(source, event.Type, "error")
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("internal error"))
			return
		}
	case <-ctx.Done():
		log.Error("webhook processing timed out", slog.Duration("timeout", h.timeout))
		metrics.WebhookEvent(source, event.Type, "timeout")
		w.WriteHeader(http.StatusGatewayTimeout)
		render.JSON(w, r, response.Error("processing timed out"))
		return
	}

	metrics.WebhookEvent(source, event.Type, "ok")
	log.Info("webhook processed")
	render.JSON(w, r, response.StatusOKWithData(map[string]string{
		"event": event.Type,
	}))
}
