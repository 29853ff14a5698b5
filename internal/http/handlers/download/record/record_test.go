package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/fonoapp/internal/http/middlewarectx"
	"github.com/magabrotheeeer/fonoapp/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Record(ctx context.Context, userUID string, req models.DownloadRequest, clientIP string) (*models.DownloadStatus, error) {
	args := m.Called(ctx, userUID, req, clientIP)
	st, _ := args.Get(0).(*models.DownloadStatus)
	return st, args.Error(1)
}

func TestRecordHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	valid := `{"exercise_id":"ex-42","file_name":"fonemas.pdf"}`
	validReq := models.DownloadRequest{ExerciseID: "ex-42", FileName: "fonemas.pdf"}

	tests := []struct {
		name           string
		body           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "скачивание учтено",
			body:    valid,
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Record", mock.Anything, "uid-1", validReq, "192.0.2.10").
					Return(&models.DownloadStatus{CanDownload: true, Limit: 5, Used: 1, Remaining: 4}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"remaining":4`,
		},
		{
			name:    "квота исчерпана",
			body:    valid,
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Record", mock.Anything, "uid-1", validReq, "192.0.2.10").
					Return(&models.DownloadStatus{Limit: 5, Used: 5, Remaining: 0},
						fmt.Errorf("download.Record: %w", models.ErrDownloadLimitReached))
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `"error":"download limit reached","data":{"can_download":false`,
		},
		{
			name:           "нет exercise_id",
			body:           `{"file_name":"fonemas.pdf"}`,
			userUID:        "uid-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field ExerciseID is a required field`,
		},
		{
			name:           "некорректный JSON",
			body:           `{`,
			userUID:        "uid-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `failed to decode request`,
		},
		{
			name:           "без сессии",
			body:           valid,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `unauthorized`,
		},
		{
			name:    "ошибка хранилища",
			body:    valid,
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Record", mock.Anything, "uid-1", validReq, "192.0.2.10").Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `internal error`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/downloads", strings.NewReader(tt.body))
			req.RemoteAddr = "192.0.2.10:53211"
			if tt.userUID != "" {
				req = req.WithContext(middlewarectx.WithUserUID(req.Context(), tt.userUID))
			}
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
