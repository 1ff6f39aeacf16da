// Package grpc exposes the account flows over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
)

// AuthService is the part of services.AuthService the transport calls.
type AuthService interface {
	Register(ctx context.Context, email, password string, client services.ClientInfo) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string, client services.ClientInfo) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, accessToken string)
	ValidateAccessToken(ctx context.Context, token string) (auth.Claims, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ConfirmEmail(ctx context.Context, token string) error
	ResendConfirmation(ctx context.Context, email string) error
	RequireActiveAccount(ctx context.Context, userID string) error
	RequireVerifiedEmail(ctx context.Context, userID string) error
}

var _ AuthService = (*services.AuthService)(nil)

type GRPCServer struct {
	address string
	auth    AuthService
	limiter ratelimit.Limiter
	metrics metrics.Recorder
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, as AuthService, limiter ratelimit.Limiter, rec metrics.Recorder) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    as,
		limiter: limiter,
		metrics: rec,
	}
}

// newServer builds the gRPC server with the interceptor chain and the auth
// service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.rateLimitInterceptor, s.accessTokenInterceptor))
	authrpc.RegisterAuthServer(srv, &handler{s: s})
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
