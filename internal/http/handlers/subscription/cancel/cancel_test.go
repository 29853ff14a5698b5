package cancel

import (
	"context"
	"fmt"
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

func (m *MockService) Cancel(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	sub, _ := args.Get(0).(*models.Subscription)
	return sub, args.Error(1)
}

func TestCancelHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "отмена в конце периода",
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, "uid-1").Return(&models.Subscription{
					UserUID: "uid-1", Plan: models.PlanPremium, Status: models.SubscriptionActive, CancelAtPeriodEnd: true,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"cancel_at_period_end":true`,
		},
		{
			name: "нет подписки",
			setupMock: func(m *MockService) {
				m.On("Cancel", mock.Anything, "uid-1").Return(nil, fmt.Errorf("subscription.Cancel: %w", models.ErrNoSubscription))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"no active subscription"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/subscription/cancel", nil)
			req = req.WithContext(middlewarectx.WithUserUID(req.Context(), "uid-1"))
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
