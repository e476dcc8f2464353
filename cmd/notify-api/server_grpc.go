package main

import (
	"net"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	config "github.com/NordCoder/Gorev/internal/config/notify-api"
	"github.com/NordCoder/Gorev/internal/obs"
)

// buildGRPCServer serves the internal health protocol for orchestrators.
func buildGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server, net.Listener, error) {
	grpcMetrics := grpcprometheus.NewServerMetrics()

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	s := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	grpcMetrics.InitializeMetrics(s)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return s, hs, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", ln.Addr().String()))
	return s.Serve(ln)
}
