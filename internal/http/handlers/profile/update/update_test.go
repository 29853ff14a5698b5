package update

import (
	"context"
	"errors"
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

// MockService реализует интерфейс update.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Update(ctx context.Context, userUID string, upd models.ProfileUpdate) (*models.User, []string, error) {
	args := m.Called(ctx, userUID, upd)
	u, _ := args.Get(0).(*models.User)
	changed, _ := args.Get(1).([]string)
	return u, changed, args.Error(2)
}

func TestUpdateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "успешное обновление",
			body:    `{"first_name":"Ana","profession":"fonoaudióloga"}`,
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, "uid-1", mock.MatchedBy(func(u models.ProfileUpdate) bool {
					return u.FirstName != nil && *u.FirstName == "Ana" && u.LastName == nil
				})).Return(&models.User{UID: "uid-1", FirstName: "Ana"}, []string{"first_name", "profession"}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"updated_fields":["first_name","profession"]`,
		},
		{
			name:           "некорректный JSON",
			body:           `not a json`,
			userUID:        "uid-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"failed to decode request"}`,
		},
		{
			name:           "некорректный email",
			body:           `{"email":"not-an-email"}`,
			userUID:        "uid-1",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `{"status":"Error","error":"field Email must be a valid email"}`,
		},
		{
			name:           "отсутствует авторизация",
			body:           `{"first_name":"Ana"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"status":"Error","error":"unauthorized"}`,
		},
		{
			name:    "ошибка сервиса",
			body:    `{"first_name":"Ana"}`,
			userUID: "uid-1",
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, "uid-1", mock.Anything).Return(nil, nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"internal error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPut, "/api/v1/profile", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
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
