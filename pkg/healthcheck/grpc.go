// Package healthcheck serves the standard gRPC health protocol and keeps its
// status in step with a probe of the backing store.
package healthcheck

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Probe reports whether a dependency is reachable.
type Probe func(ctx context.Context) error

type Server struct {
	log      *slog.Logger
	health   *health.Server
	probe    Probe
	interval time.Duration
	service  string
}

func NewServer(log *slog.Logger, service string, probe Probe) *Server {
	return &Server{
		log:      log,
		health:   health.NewServer(),
		probe:    probe,
		interval: 5 * time.Second,
		service:  service,
	}
}

// Check runs the probe once and records the result for both the overall
// status and the named service.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.probe(ctx); err != nil {
		s.log.Warn("health probe failed", "service", s.service, "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
	return status
}

// Watch probes on a ticker until ctx is done, then marks everything as not
// serving.
func (s *Server) Watch(ctx context.Context) {
	s.Check(ctx)
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

// Run listens on addr and serves the health service in the background.
func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return Serve(lis, srv), nil
}

func Serve(lis net.Listener, srv *Server) *grpc.Server {
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, srv.health)
	go func() {
		if err := gs.Serve(lis); err != nil {
			srv.log.Error("grpc server stopped", "err", err)
		}
	}()
	return gs
}
