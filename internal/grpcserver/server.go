// Package grpcserver runs the listing service's gRPC endpoint.
//
// It serves the standard grpc.health.v1 service, whose status follows the
// liveness of PostgreSQL and Redis. Listing operations are served over HTTP
// only.
package grpcserver

import (
	"context"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check name of the listing service.
const ServiceName = "automarket.listing.v1.ListingService"

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// Server wraps a grpc.Server with a dependency-driven health service.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	probes   map[string]Probe
	interval time.Duration

	mu      sync.Mutex
	failing map[string]error
}

// NewServer builds a Server that re-runs probes every interval.
func NewServer(probes map[string]Probe, interval time.Duration) *Server {
	s := &Server{
		health:   health.NewServer(),
		probes:   probes,
		interval: interval,
		failing:  make(map[string]error),
	}
	s.grpc = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// GRPC exposes the underlying server for Serve and GracefulStop.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// Health exposes the health service, mostly for tests.
func (s *Server) Health() healthpb.HealthServer { return s.health }

// Watch probes the dependencies until ctx is done, then marks the service as
// not serving.
func (s *Server) Watch(ctx context.Context) {
	s.Check(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Check(ctx)
		}
	}
}

// Check runs every probe once and publishes the combined status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	serving := healthpb.HealthCheckResponse_SERVING
	for name, probe := range s.probes {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := probe(pctx)
		cancel()

		_, wasFailing := s.failing[name]
		switch {
		case err != nil:
			if !wasFailing {
				log.Printf("[grpc] %s unhealthy: %v", name, err)
			}
			s.failing[name] = err
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		case wasFailing:
			log.Printf("[grpc] %s recovered", name)
			delete(s.failing, name)
		}
	}

	s.health.SetServingStatus("", serving)
	s.health.SetServingStatus(ServiceName, serving)
	return serving
}
