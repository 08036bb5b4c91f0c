package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readyStatus(t *testing.T, h *HealthHandler) (int, HealthStatus) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var body struct {
		Data HealthStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body.Data
}

func TestHealthHandler_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler(time.Second).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_Ready(t *testing.T) {
	ok := Check{Name: "database", Ping: func(context.Context) error { return nil }}
	down := Check{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	code, status := readyStatus(t, NewHealthHandler(time.Second, ok))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "ok", status.Checks["database"])

	code, status = readyStatus(t, NewHealthHandler(time.Second, ok, down))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "error", status.Status)
	assert.Equal(t, "failed: connection refused", status.Checks["redis"])
}

func TestHealthHandler_ReadyTimeout(t *testing.T) {
	slow := Check{Name: "database", Ping: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	code, status := readyStatus(t, NewHealthHandler(10*time.Millisecond, slow))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, status.Checks["database"], "deadline exceeded")
}
