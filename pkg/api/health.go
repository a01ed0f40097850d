package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cuemby/brigade/pkg/log"
	"github.com/cuemby/brigade/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported for brigade
const ServiceName = "brigade"

// registerHealth mounts liveness, readiness and Prometheus endpoints
func registerHealth(r gin.IRoutes) {
	r.GET("/health", gin.WrapF(metrics.HealthHandler()))
	r.GET("/ready", gin.WrapF(metrics.ReadyHandler()))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// HealthServer exposes readiness over the standard gRPC health protocol so
// load balancers and orchestrators can probe without HTTP
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	interval time.Duration
	logger   zerolog.Logger
}

// NewHealthServer creates a gRPC health server that refreshes its status
// from the component registry every interval
func NewHealthServer(interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	logger := log.WithComponent("grpc")
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
	))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{grpc: srv, health: hs, interval: interval, logger: logger}
}

// Sync sets the serving status from the current readiness
func (h *HealthServer) Sync(ctx context.Context) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if metrics.GetReadiness(ctx).Status == "ready" {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

// Serve serves on lis and keeps the status fresh until ctx is done
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	h.Sync(ctx)
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.Sync(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	h.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health service listening")
	if err := h.grpc.Serve(lis); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}
	return nil
}

// Start listens on addr and serves until Stop
func (h *HealthServer) Start(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return h.Serve(ctx, lis)
}

// Stop marks every service as not serving and stops gracefully
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
