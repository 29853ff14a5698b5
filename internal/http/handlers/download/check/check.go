// Package check отдаёт состояние квоты скачиваний пользователя.
package check

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
	Check(ctx context.Context, userUID string) (*models.DownloadStatus, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Квота скачиваний
// @Description Сколько упражнений ещё можно скачать в текущем периоде и когда квота обновится.
// @Tags Downloads
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.DownloadStatus}
// @Failure 401 {object} response.ErrorResponse
// @Router /downloads/limit [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.download.check"

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

	st, err := h.service.Check(r.Context(), userUID)
	if err != nil {
		log.Error("failed to check download limit", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	render.JSON(w, r, response.StatusOKWithData(st))
}
