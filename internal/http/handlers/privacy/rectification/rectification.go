// Package rectification реализует запрос на исправление персональных данных.
package rectification

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
	Rectify(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, []string, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Исправить персональные данные
// @Tags Privacy
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ProfileUpdate true "Исправляемые поля"
// @Success 200 {object} response.Response
// @Router /privacy/rectification [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.privacy.rectification"

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

	var req models.ProfileUpdate
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

	u, changed, err := h.service.Rectify(r.Context(), userUID, req)
	if err != nil {
		log.Error("failed to rectify user data", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("user data rectified", slog.Any("fields", changed))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"profile":        u,
		"updated_fields": changed,
	}))
}
