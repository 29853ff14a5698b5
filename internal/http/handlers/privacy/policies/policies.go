// Package policies отдаёт публичный перечень политик хранения данных.
package policies

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/fonoapp/internal/http/response"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Policies() []models.DataRetentionPolicy
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Политики хранения данных
// @Tags Privacy
// @Produce json
// @Success 200 {object} response.Response
// @Router /privacy/retention-policies [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"policies": h.service.Policies(),
	}))
}
