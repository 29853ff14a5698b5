// Package update реализует HTTP-обработчик изменения согласий.
//
// Запрос содержит список изменений. Все изменения проверяются до записи,
// поэтому неизвестная цель или отзыв обязательного согласия отклоняют запрос целиком.
package update

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/http/response"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

type Service interface {
	UpdateBatch(ctx context.Context, userUID string, changes []models.ConsentChange, meta models.RequestMeta) ([]*models.ConsentAuditLog, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Изменить согласия
// @Tags Consents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ConsentBatch true "Изменения"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неизвестная цель или обязательное согласие"
// @Failure 422 {object} response.ErrorResponse
// @Router /consents [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.consent.update"

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

	var req models.ConsentBatch
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if !response.Validate(w, r, h.validate, req) {
		log.Warn("validation failed")
		return
	}

	meta := models.RequestMeta{
		IP:        middlewarectx.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	audit, err := h.service.UpdateBatch(r.Context(), userUID, req.Consents, meta)
	if err != nil {
		log.Error("failed to update consents", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("consents updated", slog.Int("count", len(audit)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"changes": audit,
	}))
}
