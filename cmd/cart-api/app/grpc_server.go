package app

import (
	"context"
	"net"
	"time"

	grpcadapter "github.com/aq2208/gcart-api/internal/adapter/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// grpcServer hosts the health service next to the HTTP API.
type grpcServer struct {
	srv *grpc.Server
}

func newGRPCServer(health *grpcadapter.Health) *grpcServer {
	srv := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              2 * time.Minute,
			Timeout:           20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	health.Register(srv)
	return &grpcServer{srv: srv}
}

func (g *grpcServer) Serve(lis net.Listener) error {
	return g.srv.Serve(lis)
}

// Stop drains in-flight RPCs until ctx expires, then closes hard.
func (g *grpcServer) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.srv.Stop()
	}
}
