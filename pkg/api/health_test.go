package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func healthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerHealth(r)
	return r
}

// TestHealthEndpoints tests the HTTP health surface
func TestHealthEndpoints(t *testing.T) {
	metrics.RegisterComponent("api-test-store", true, true, "ok")
	r := healthRouter()

	tests := []struct {
		path           string
		expectedStatus int
	}{
		{path: "/health", expectedStatus: http.StatusOK},
		{path: "/ready", expectedStatus: http.StatusOK},
		{path: "/metrics", expectedStatus: http.StatusOK},
		{path: "/nonexistent", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code, "Path: %s", tt.path)
		})
	}
}

// TestReadyReportsFailingProbe tests that a failing critical probe fails readiness
func TestReadyReportsFailingProbe(t *testing.T) {
	metrics.RegisterProbe("api-test-probe", true, func(context.Context) error {
		return errors.New("connection refused")
	})
	t.Cleanup(func() { metrics.RegisterProbe("api-test-probe", true, func(context.Context) error { return nil }) })

	w := httptest.NewRecorder()
	healthRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response metrics.HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "not_ready", response.Status)
	assert.Contains(t, response.Components["api-test-probe"], "connection refused")
}

// TestGRPCHealth tests the gRPC health service follows readiness
func TestGRPCHealth(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	metrics.RegisterProbe("api-test-grpc", true, func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	})
	t.Cleanup(func() { metrics.RegisterProbe("api-test-grpc", true, func(context.Context) error { return nil }) })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hs := NewHealthServer(time.Hour)
	go func() { _ = hs.Serve(ctx, lis) }()
	defer hs.Stop()

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	var resp *healthpb.HealthCheckResponse
	require.Eventually(t, func() bool {
		resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	healthy.Store(false)
	hs.Sync(ctx)
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func BenchmarkHealthHandler(b *testing.B) {
	r := healthRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
	}
}
