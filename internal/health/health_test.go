package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCounter int

func (c fixedCounter) Count() int { return int(c) }

func TestChecker_NothingConfigured(t *testing.T) {
	h := NewChecker("messaging", nil, nil, nil, fixedCounter(3))

	status := h.Check(context.Background())
	assert.Equal(t, "messaging", status.Service)
	assert.Equal(t, statusNotConfigured, status.NATS)
	assert.Equal(t, statusNotConfigured, status.Redis)
	assert.Equal(t, statusNotConfigured, status.Database)
	assert.Equal(t, 3, status.Connections)
	assert.True(t, h.IsHealthy(context.Background()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestChecker_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	h := NewChecker("messaging", nil, client, nil, nil)
	assert.False(t, h.IsHealthy(context.Background()))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var status Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, statusDisconnected, status.Redis)
}

func TestChecker_Live(t *testing.T) {
	h := NewChecker("messaging", nil, nil, nil, nil)

	w := httptest.NewRecorder()
	h.Live(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"service":"messaging","status":"ok"}`, w.Body.String())
}
