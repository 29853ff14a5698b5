package history

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) History(ctx context.Context, userUID string, limit, offset int) ([]*models.DownloadHistory, error) {
	args := m.Called(ctx, userUID, limit, offset)
	items, _ := args.Get(0).([]*models.DownloadHistory)
	return items, args.Error(1)
}

func TestHistoryHandler_Pagination(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{name: "по умолчанию", query: "", wantLimit: defaultLimit, wantOffset: 0},
		{name: "явные значения", query: "?limit=5&offset=10", wantLimit: 5, wantOffset: 10},
		{name: "лимит обрезается", query: "?limit=1000", wantLimit: maxLimit, wantOffset: 0},
		{name: "мусор в параметрах", query: "?limit=abc&offset=-3", wantLimit: defaultLimit, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("History", mock.Anything, "uid-1", tt.wantLimit, tt.wantOffset).
				Return([]*models.DownloadHistory{{ID: 1, ExerciseID: "ex-1", FileName: "a.pdf"}}, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/downloads/history"+tt.query, nil)
			req = req.WithContext(middlewarectx.WithUserUID(req.Context(), "uid-1"))
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), `"exercise_id":"ex-1"`)
			svc.AssertExpectations(t)
		})
	}
}
