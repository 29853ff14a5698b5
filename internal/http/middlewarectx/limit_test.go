package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_PerClient(t *testing.T) {
	l := NewRateLimiter(1, 2)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("uid-1"))
	assert.True(t, l.Allow("uid-1"))
	assert.False(t, l.Allow("uid-1"))

	// другой клиент не делит лимит
	assert.True(t, l.Allow("uid-2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("uid-1"))
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("uid-1")
	now = now.Add(idleLimiterTTL + time.Second)
	l.Allow("uid-2")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.clients["uid-1"]
	assert.False(t, ok)
	assert.Len(t, l.clients, 1)
}

func TestRateLimiter_SweepsOncePerTTL(t *testing.T) {
	l := NewRateLimiter(1, 1)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("uid-1")
	l.mu.Lock()
	l.clients["uid-1"].lastSeen = now.Add(-2 * idleLimiterTTL)
	l.mu.Unlock()

	// до истечения интервала очистка не запускается
	now = now.Add(time.Second)
	l.Allow("uid-2")
	l.mu.Lock()
	assert.Len(t, l.clients, 2)
	l.mu.Unlock()

	now = now.Add(idleLimiterTTL)
	l.Allow("uid-2")
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.clients["uid-1"]
	assert.False(t, ok)
	assert.Equal(t, now, l.lastSweep)
}

func TestRateLimitMiddleware(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := NewRateLimiter(0.001, 1)
	h := RateLimitMiddleware(log, l)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote, uid string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/downloads/limit", nil)
		req.RemoteAddr = remote
		if uid != "" {
			req = req.WithContext(WithUserUID(req.Context(), uid))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:5678", ""))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234", ""))
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234", "uid-1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.9:1234", "uid-1"))
}
