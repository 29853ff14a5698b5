package export

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
	"github.com/magabrotheeeer/fonoapp/internal/services/privacy"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Export(ctx context.Context, userUID, format string) (*privacy.Document, error) {
	args := m.Called(ctx, userUID, format)
	doc, _ := args.Get(0).(*privacy.Document)
	return doc, args.Error(1)
}

func TestExportHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		query          string
		setupMock      func(*MockService)
		expectedStatus int
		expectedType   string
		expectedBody   string
		expectedDisp   string
	}{
		{
			name:  "csv",
			query: "?format=csv",
			setupMock: func(m *MockService) {
				m.On("Export", mock.Anything, "uid-1", "csv").Return(&privacy.Document{
					Format: "csv", ContentType: "text/csv; charset=utf-8",
					FileName: "fonoapp-dados-20250310.csv", Body: []byte("section,record,field,value\n"),
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedType:   "text/csv; charset=utf-8",
			expectedBody:   "section,record,field,value\n",
			expectedDisp:   `attachment; filename="fonoapp-dados-20250310.csv"`,
		},
		{
			name:  "json по умолчанию",
			query: "",
			setupMock: func(m *MockService) {
				m.On("Export", mock.Anything, "uid-1", "").Return(&privacy.Document{
					Format: "json", ContentType: "application/json",
					FileName: "fonoapp-dados-20250310.json", Body: []byte(`{"profile":{}}`),
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedType:   "application/json",
			expectedBody:   `{"profile":{}}`,
			expectedDisp:   `attachment; filename="fonoapp-dados-20250310.json"`,
		},
		{
			name:  "неподдерживаемый формат",
			query: "?format=xml",
			setupMock: func(m *MockService) {
				m.On("Export", mock.Anything, "uid-1", "xml").
					Return(nil, fmt.Errorf("privacy.Export: %w", models.ErrUnsupportedFormat))
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"unsupported export format"}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/privacy/export"+tt.query, nil)
			req = req.WithContext(middlewarectx.WithUserUID(req.Context(), "uid-1"))
			rec := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedBody, rec.Body.String())
			if tt.expectedType != "" {
				assert.Equal(t, tt.expectedType, rec.Header().Get("Content-Type"))
				assert.Equal(t, tt.expectedDisp, rec.Header().Get("Content-Disposition"))
			}
			svc.AssertExpectations(t)
		})
	}
}
