// Package record реализует HTTP-обработчик регистрации скачивания упражнения.
//
// Для бесплатного тарифа каждое скачивание уменьшает остаток квоты ровно на единицу.
// Когда квота исчерпана, возвращается 403 вместе с текущим состоянием квоты.
package record

import (
	"context"
	"errors"
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
	Record(ctx context.Context, userUID string, req models.DownloadRequest, clientIP string) (*models.DownloadStatus, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Зарегистрировать скачивание
// @Tags Downloads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.DownloadRequest true "Упражнение"
// @Success 200 {object} response.Response{data=models.DownloadStatus}
// @Failure 403 {object} response.Response{data=models.DownloadStatus} "Квота исчерпана"
// @Failure 422 {object} response.ErrorResponse
// @Router /downloads [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.download.record"

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

	var req models.DownloadRequest
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

	st, err := h.service.Record(r.Context(), userUID, req, middlewarectx.ClientIP(r))
	if errors.Is(err, models.ErrDownloadLimitReached) {
		log.Info("download rejected, limit reached")
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Response{
			Status: response.StatusError,
			Error:  "download limit reached",
			Data:   st,
		})
		return
	}
	if err != nil {
		log.Error("failed to record download", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(st))
}
