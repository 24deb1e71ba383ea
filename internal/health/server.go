// Package health maps circuit breaker state onto the standard gRPC health
// service so orchestrators can observe the guarded target's condition.
package health

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/auth-platform/platform/request-guard/internal/domain"
)

// StateFunc reports the current circuit state of a guarded target.
type StateFunc func() domain.CircuitState

// Server implements the gRPC health check service. An open circuit reports
// NOT_SERVING; closed and half-open report SERVING.
type Server struct {
	grpc_health_v1.UnimplementedHealthServer
	states map[string]StateFunc
}

// NewServer creates a health server over the given targets.
func NewServer(states map[string]StateFunc) *Server {
	if states == nil {
		states = make(map[string]StateFunc)
	}
	return &Server{states: states}
}

// Check performs a health check. An empty service name aggregates across all
// registered targets: any open circuit makes the whole service NOT_SERVING.
func (s *Server) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if req.GetService() == "" {
		return &grpc_health_v1.HealthCheckResponse{Status: s.aggregate()}, nil
	}

	stateFn, ok := s.states[req.GetService()]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}

	return &grpc_health_v1.HealthCheckResponse{Status: servingStatus(stateFn())}, nil
}

// Watch streams health updates by polling the circuit state.
func (s *Server) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last grpc_health_v1.HealthCheckResponse_ServingStatus = -1
	for {
		resp, err := s.Check(stream.Context(), req)
		if err != nil {
			return err
		}
		if resp.GetStatus() != last {
			last = resp.GetStatus()
			if err := stream.Send(resp); err != nil {
				return err
			}
		}

		select {
		case <-stream.Context().Done():
			return stream.Context().Err()
		case <-ticker.C:
		}
	}
}

func (s *Server) aggregate() grpc_health_v1.HealthCheckResponse_ServingStatus {
	for _, stateFn := range s.states {
		if servingStatus(stateFn()) == grpc_health_v1.HealthCheckResponse_NOT_SERVING {
			return grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

func servingStatus(state domain.CircuitState) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if state == domain.CircuitOpen {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}
