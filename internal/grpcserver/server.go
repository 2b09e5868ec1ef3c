// Package grpcserver exposes the standard gRPC health service for the offer
// service, so orchestrators can probe it the same way as the other gRPC
// services in the deployment. Serving status follows the scheduler's
// dependency probe.
package grpcserver

import (
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-check service key for offer operations.
const ServiceName = "offerdesk.offer.v1.OfferService"

// Server wraps a gRPC server carrying only the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// New builds the server. Both the overall and the offer service status
// start NOT_SERVING until the first successful probe.
func New(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, log: log}
	s.SetServing(false)
	return s
}

// SetServing flips the reported health of the service.
func (s *Server) SetServing(ok bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ok {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve blocks serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc health listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks the service down and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
