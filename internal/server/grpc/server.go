package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/casadx/pedidos/internal/config"
	"github.com/casadx/pedidos/internal/database"
)

// ServiceName is the health service name reported for the pedidos API.
const ServiceName = "pedidos"

const probeInterval = 15 * time.Second

// Module exposes the gRPC health server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer),
	fx.Invoke(Run),
)

// Server bundles the gRPC server with its health registry.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer builds a gRPC server exposing grpc.health.v1 with a logging
// interceptor.
func NewServer(logger *zap.Logger) *Server {
	unary := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		duration := time.Since(start)
		if err != nil {
			logger.Warn("grpc unary call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration), zap.Error(err))
		} else {
			logger.Debug("grpc unary call finished", zap.String("method", info.FullMethod), zap.Duration("duration", duration))
		}
		return resp, err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unary))
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{Server: srv, Health: hs}
}

// Probe sets the serving status from a database ping.
func (s *Server) Probe(ctx context.Context, conns *database.Connections) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := conns.Ping(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.Health.SetServingStatus("", status)
	s.Health.SetServingStatus(ServiceName, status)
	return status
}

// Run binds the gRPC server when enabled and keeps the health status in line
// with database reachability.
func Run(lc fx.Lifecycle, cfg config.Config, server *Server, conns *database.Connections, logger *zap.Logger) {
	if !cfg.GRPC.Enabled {
		return
	}
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	var listener net.Listener
	probeCtx, stopProbe := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				stopProbe()
				return fmt.Errorf("listen grpc: %w", err)
			}
			listener = ln
			server.Probe(ctx, conns)
			logger.Info("starting gRPC health server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(listener); err != nil {
					logger.Fatal("grpc server failed", zap.Error(err))
				}
			}()
			go probeLoop(probeCtx, server, conns, logger)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			stopProbe()
			server.Health.Shutdown()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				if listener != nil {
					_ = listener.Close()
				}
				return nil
			}
		},
	})
}

func probeLoop(ctx context.Context, server *Server, conns *database.Connections, logger *zap.Logger) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()
	last := healthpb.HealthCheckResponse_SERVING
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			status := server.Probe(pingCtx, conns)
			cancel()
			if status != last {
				logger.Warn("grpc health status changed", zap.String("status", status.String()))
				last = status
			}
		}
	}
}
