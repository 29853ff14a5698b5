// Package export отдаёт выгрузку всех данных пользователя в JSON или CSV.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/http/response"
	"github.com/magabrotheeeer/fonoapp/internal/lib/sl"
	"github.com/magabrotheeeer/fonoapp/internal/services/privacy"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Export(ctx context.Context, userUID, format string) (*privacy.Document, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Выгрузка данных пользователя
// @Description Отдаёт файл со всеми данными пользователя. Обращение фиксируется в журнале.
// @Tags Privacy
// @Produce json
// @Produce text/csv
// @Security BearerAuth
// @Param format query string false "json или csv" Enums(json, csv)
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorResponse "Неподдерживаемый формат"
// @Router /privacy/export [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.privacy.export"

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

	doc, err := h.service.Export(r.Context(), userUID, r.URL.Query().Get("format"))
	if err != nil {
		log.Error("failed to export user data", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Body); err != nil {
		log.Error("failed to write export", sl.Err(err))
		return
	}
	log.Info("user data exported", slog.String("format", doc.Format))
}
