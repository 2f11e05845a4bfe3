package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthController_ReadinessWithoutStores(t *testing.T) {
	h := NewHealthController(nil, nil)

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)
}

func TestHealthController_ReadinessReportsFailingStore(t *testing.T) {
	h := &HealthController{checks: []readinessCheck{
		{name: "database", ping: func(context.Context) error { return nil }},
		{name: "redis", ping: func(context.Context) error { return errors.New("connection refused") }},
	}}

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis unavailable")
}

func TestHealthController_Liveness(t *testing.T) {
	h := NewHealthController(nil, nil)

	w := httptest.NewRecorder()
	h.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alive")
}
