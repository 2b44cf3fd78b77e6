// Package server hosts the daemon's admin surface: gRPC health plus reflection, and an
// HTTP endpoint for Prometheus scrapes.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "loa.extract"

// Admin is a gRPC server exposing grpc.health.v1 and reflection for grpcurl.
type Admin struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	logger *slog.Logger

	mu      sync.Mutex
	serving bool
}

// NewAdmin listens on addr. The initial status is SERVING.
func NewAdmin(addr string, logger *slog.Logger) (*Admin, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)

	a := &Admin{grpc: grpcServer, health: hs, lis: lis, logger: logger}
	a.SetServing(true)
	return a, nil
}

// Addr is the bound listen address.
func (a *Admin) Addr() string { return a.lis.Addr().String() }

// SetServing flips both the overall and the named service status.
func (a *Admin) SetServing(serving bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", status)
	a.health.SetServingStatus(ServiceName, status)
	if a.serving != serving {
		a.logger.Info("admin.health.changed", "serving", serving)
	}
	a.serving = serving
}

// Serve blocks until ctx is done, then stops gracefully.
func (a *Admin) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("admin.grpc.listening", "addr", a.Addr())
		errCh <- a.grpc.Serve(a.lis)
	}()
	select {
	case <-ctx.Done():
		a.Stop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func (a *Admin) Stop() {
	a.health.Shutdown()
	a.grpc.GracefulStop()
	_ = a.lis.Close()
}
