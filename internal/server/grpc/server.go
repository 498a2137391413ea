// Package grpc runs the gRPC endpoint of the server: the standard health
// service and the Bank service behind interceptors that authenticate, log
// and time every call.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophbank/internal/logging"
	"github.com/dmitrijs2005/gophbank/internal/server/auth"
	"github.com/dmitrijs2005/gophbank/internal/server/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Authenticator resolves an access token to its claims.
// *services.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

type GRPCServer struct {
	address       string
	logger        logging.Logger
	metrics       *metrics.Metrics
	authenticator Authenticator
	accounts      AccountReader
	publicMethods map[string]bool
	health        *health.Server
}

func NewGRPCServer(a string, l logging.Logger, authenticator Authenticator, accounts AccountReader, m *metrics.Metrics) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		metrics:       m,
		authenticator: authenticator,
		accounts:      accounts,
		publicMethods: map[string]bool{
			healthpb.Health_Check_FullMethodName: true,
			healthpb.Health_Watch_FullMethodName: true,
		},
		health: health.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.observeInterceptor, s.accessTokenInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&bankServiceDesc, s)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(BankServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
