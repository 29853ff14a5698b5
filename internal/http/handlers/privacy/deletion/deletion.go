// Package deletion реализует запрос на удаление аккаунта и всех данных пользователя.
//
// Запрос должен содержать явное подтверждение. После удаления сессия становится
// недействительной: следующий запрос с тем же токеном создаст пустой профиль.
package deletion

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
)

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

type Service interface {
	Delete(ctx context.Context, userUID string) error
}

// Request тело запроса на удаление.
type Request struct {
	Confirm bool `json:"confirm" validate:"required"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Удалить аккаунт
// @Tags Privacy
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body deletion.Request true "Подтверждение"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Нет подтверждения"
// @Router /privacy/deletion [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.privacy.deletion"

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

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to decode request"))
		return
	}
	if !response.Validate(w, r, h.validate, req) {
		log.Warn("deletion requested without confirmation")
		return
	}

	if err := h.service.Delete(r.Context(), userUID); err != nil {
		log.Error("failed to delete user data", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("account deleted")
	render.JSON(w, r, response.StatusOKWithData(map[string]string{
		"result": "deleted",
	}))
}
