// Package list отдаёт согласия пользователя по всем целям обработки данных.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/http/response"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	List(ctx context.Context, userUID string) ([]models.UserConsent, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Согласия пользователя
// @Tags Consents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /consents [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.consent.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	consents, err := h.service.List(r.Context(), userUID)
	if err != nil {
		log.Error("failed to list consents", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"consents": consents,
	}))
}
