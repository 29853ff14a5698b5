package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/v1/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/v1/items/{id}", "418"))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/items/42", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)

	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/v1/items/{id}", "418"))
	assert.Equal(t, before+1, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(retentionProcessed.WithLabelValues("download_history", "delete"))
	RetentionProcessed("download_history", "delete", 3)
	RetentionProcessed("download_history", "delete", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(retentionProcessed.WithLabelValues("download_history", "delete")))

	rej := testutil.ToFloat64(downloadRejections)
	DownloadRejected()
	assert.Equal(t, rej+1, testutil.ToFloat64(downloadRejections))

	wh := testutil.ToFloat64(webhookEvents.WithLabelValues("payment", "unknown", "ignored"))
	WebhookEvent("payment", "", "ignored")
	assert.Equal(t, wh+1, testutil.ToFloat64(webhookEvents.WithLabelValues("payment", "unknown", "ignored")))
}

func TestHandler_Exposes(t *testing.T) {
	DownloadRecorded("free")

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "downloads_recorded_total")
}
