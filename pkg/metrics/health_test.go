package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealth() {
	healthChecker = newHealthChecker()
}

func TestRegisterComponent(t *testing.T) {
	resetHealth()

	RegisterComponent("relay", false, true, "connected")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["relay"]
	assert.True(t, comp.Healthy)
	assert.False(t, comp.Critical)
	assert.Equal(t, "connected", comp.Message)

	UpdateComponent("relay", false, "connection closed")
	comp = healthChecker.components["relay"]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "connection closed", comp.Message)
}

func TestGetHealth(t *testing.T) {
	tests := []struct {
		name       string
		setup      func()
		wantStatus string
		wantComp   map[string]string
	}{
		{
			name: "all healthy",
			setup: func() {
				RegisterComponent("api", true, true, "")
				RegisterProbe("storage", true, func(ctx context.Context) error { return nil })
			},
			wantStatus: "healthy",
			wantComp:   map[string]string{"api": "healthy", "storage": "healthy"},
		},
		{
			name: "failing probe",
			setup: func() {
				RegisterComponent("api", true, true, "")
				RegisterProbe("storage", true, func(ctx context.Context) error { return errors.New("database closed") })
			},
			wantStatus: "unhealthy",
			wantComp:   map[string]string{"api": "healthy", "storage": "unhealthy: database closed"},
		},
		{
			name: "non critical component still counts for health",
			setup: func() {
				RegisterComponent("relay", false, false, "dial failed")
			},
			wantStatus: "unhealthy",
			wantComp:   map[string]string{"relay": "unhealthy: dial failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth()
			SetVersion("1.0.0")
			tt.setup()

			health := GetHealth(context.Background())
			assert.Equal(t, tt.wantStatus, health.Status)
			assert.Equal(t, tt.wantComp, health.Components)
			assert.Equal(t, "1.0.0", health.Version)
			assert.NotEmpty(t, health.Uptime)
		})
	}
}

func TestGetReadiness(t *testing.T) {
	resetHealth()
	readiness := GetReadiness(context.Background())
	assert.Equal(t, "not_ready", readiness.Status)
	assert.NotEmpty(t, readiness.Message)

	RegisterComponent("api", true, true, "")
	RegisterComponent("relay", false, false, "dial failed")
	readiness = GetReadiness(context.Background())
	assert.Equal(t, "ready", readiness.Status)
	assert.NotContains(t, readiness.Components, "relay")

	RegisterProbe("storage", true, func(ctx context.Context) error { return errors.New("timeout") })
	readiness = GetReadiness(context.Background())
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Equal(t, "waiting for storage", readiness.Message)
}

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name     string
		healthy  bool
		handler  http.HandlerFunc
		wantCode int
		wantBody string
	}{
		{name: "health ok", healthy: true, handler: HealthHandler(), wantCode: http.StatusOK, wantBody: "healthy"},
		{name: "health failing", healthy: false, handler: HealthHandler(), wantCode: http.StatusServiceUnavailable, wantBody: "unhealthy"},
		{name: "ready ok", healthy: true, handler: ReadyHandler(), wantCode: http.StatusOK, wantBody: "ready"},
		{name: "ready failing", healthy: false, handler: ReadyHandler(), wantCode: http.StatusServiceUnavailable, wantBody: "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetHealth()
			RegisterComponent("storage", true, tt.healthy, "broken")

			w := httptest.NewRecorder()
			tt.handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body.Status)
		})
	}
}
