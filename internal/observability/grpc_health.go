package observability

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer exposes the readiness checks over the standard gRPC health protocol
type GRPCHealthServer struct {
	server *grpc.Server
	health *health.Server
	checks map[string]HealthCheckFunc
}

// NewGRPCHealthServer creates a gRPC server with only the health service registered
func NewGRPCHealthServer(checks map[string]HealthCheckFunc) *GRPCHealthServer {
	hs := health.NewServer()
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return &GRPCHealthServer{server: s, health: hs, checks: checks}
}

// Serve listens on the given port and blocks until Stop is called
func (g *GRPCHealthServer) Serve(port string) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC health: %w", err)
	}
	return g.server.Serve(lis)
}

// Refresh re-runs the readiness checks and publishes the overall and
// per-dependency serving status.
func (g *GRPCHealthServer) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	dependencies, allHealthy := RunChecks(ctx, g.checks)
	for name, dep := range dependencies {
		g.health.SetServingStatus(name, servingStatus(dep.Status == "healthy"))
	}
	g.health.SetServingStatus("", servingStatus(allHealthy))
}

// Stop gracefully stops the server
func (g *GRPCHealthServer) Stop() {
	g.health.Shutdown()
	g.server.GracefulStop()
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
