package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthService is the gRPC service name reported alongside the overall status.
const HealthService = "plates.v1.Recognition"

// NewGRPCServer returns a server exposing the standard health service and
// reflection for grpcurl. Both the overall and the recognition status start
// as SERVING.
func NewGRPCServer(opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)
	return srv, hs
}
