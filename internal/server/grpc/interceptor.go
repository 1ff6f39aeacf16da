package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

type guard struct {
	activeAccount bool
	verifiedEmail bool
}

// guarded lists the methods that need a valid access token and the account
// checks run for the caller.
var guarded = map[string]guard{
	authrpc.MethodMe:             {activeAccount: true},
	authrpc.MethodChangePassword: {activeAccount: true, verifiedEmail: true},
}

// limited lists the methods counted per caller address.
var limited = map[string]bool{
	authrpc.MethodRegister:             true,
	authrpc.MethodLogin:                true,
	authrpc.MethodRequestPasswordReset: true,
	authrpc.MethodResendConfirmation:   true,
}

func claimsFromContext(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

func metadataValue(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(key)
		if len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

// peerAddress returns the caller host without the port.
func peerAddress(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	g, ok := guarded[info.FullMethod]
	if !ok {
		return handler(ctx, req)
	}

	accessToken := metadataValue(ctx, common.AccessTokenHeaderName)
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "access token is missing")
	}

	claims, err := s.auth.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		s.logger.Debug(ctx, "authentication failed", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "authentication failed")
	}

	if g.activeAccount {
		if err := s.auth.RequireActiveAccount(ctx, claims.UserID); err != nil {
			return nil, toStatus(err)
		}
	}
	if g.verifiedEmail {
		if err := s.auth.RequireVerifiedEmail(ctx, claims.UserID); err != nil {
			return nil, toStatus(err)
		}
	}

	ctx = context.WithValue(ctx, claimsKey, claims)
	return handler(ctx, req)
}

// rateLimitInterceptor rejects callers over the limit with
// ResourceExhausted. A failing limiter lets the request through.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if s.limiter == nil || !limited[info.FullMethod] {
		return handler(ctx, req)
	}

	allowed, err := s.limiter.Allow(ctx, ratelimit.Key(info.FullMethod, peerAddress(ctx)))
	if err != nil {
		s.logger.Warn(ctx, "rate limiter unavailable", "method", info.FullMethod, "error", err)
		return handler(ctx, req)
	}
	if !allowed {
		s.metrics.RecordRateLimited(info.FullMethod)
		return nil, status.Error(codes.ResourceExhausted, "too many requests")
	}
	return handler(ctx, req)
}
