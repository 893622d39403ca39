package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carecompanion/internal/api/handlers"
)

func ok(context.Context) error { return nil }

func down(context.Context) error { return errors.New("connection refused") }

func ready(t *testing.T, h *handlers.HealthHandler) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth_ReadyDegradedOnOptionalFailure(t *testing.T) {
	code, body := ready(t, handlers.NewHealthHandler(
		handlers.HealthCheck{Name: "redis", Probe: down},
		handlers.HealthCheck{Name: "seed", Critical: true, Probe: ok},
	))

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "connection refused", checks["redis"])
	assert.Equal(t, "ok", checks["seed"])
}

func TestHealth_ReadyUnavailableOnCriticalFailure(t *testing.T) {
	code, body := ready(t, handlers.NewHealthHandler(
		handlers.HealthCheck{Name: "redis", Critical: true, Probe: down},
	))

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestHealth_ReadyWithoutChecks(t *testing.T) {
	code, body := ready(t, handlers.NewHealthHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
