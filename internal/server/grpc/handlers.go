package grpc

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// handler implements authrpc.AuthServer on top of the GRPCServer services.
type handler struct {
	s *GRPCServer
}

var _ authrpc.AuthServer = (*handler)(nil)

func clientInfo(ctx context.Context) services.ClientInfo {
	return services.ClientInfo{
		UserAgent: metadataValue(ctx, common.UserAgentHeaderName),
		IPAddress: peerAddress(ctx),
	}
}

func toUser(u *models.User) authrpc.User {
	return authrpc.User{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		Active:        u.Active,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
	}
}

func toTokens(p *services.TokenPair) authrpc.Tokens {
	return authrpc.Tokens{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		SessionID:    p.SessionID,
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
	}
}

func (h *handler) Register(ctx context.Context, req *authrpc.CredentialsRequest) (*authrpc.SessionResponse, error) {
	res, err := h.s.auth.Register(ctx, req.Email, req.Password, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &authrpc.SessionResponse{User: toUser(res.User), Tokens: toTokens(res.Tokens)}, nil
}

func (h *handler) Login(ctx context.Context, req *authrpc.CredentialsRequest) (*authrpc.SessionResponse, error) {
	res, err := h.s.auth.Login(ctx, req.Email, req.Password, clientInfo(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return &authrpc.SessionResponse{User: toUser(res.User), Tokens: toTokens(res.Tokens)}, nil
}

func (h *handler) Refresh(ctx context.Context, req *authrpc.RefreshRequest) (*authrpc.Tokens, error) {
	pair, err := h.s.auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	tokens := toTokens(pair)
	return &tokens, nil
}

// Logout always succeeds; a missing or stale token leaves nothing to close.
func (h *handler) Logout(ctx context.Context, _ *authrpc.Empty) (*authrpc.Empty, error) {
	if token := metadataValue(ctx, common.AccessTokenHeaderName); token != "" {
		h.s.auth.Logout(ctx, token)
	}
	return &authrpc.Empty{}, nil
}

func (h *handler) Me(ctx context.Context, _ *authrpc.Empty) (*authrpc.User, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	u, err := h.s.auth.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	user := toUser(u)
	return &user, nil
}

func (h *handler) ChangePassword(ctx context.Context, req *authrpc.ChangePasswordRequest) (*authrpc.Empty, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if err := h.s.auth.ChangePassword(ctx, claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return nil, toStatus(err)
	}
	return &authrpc.Empty{}, nil
}

func (h *handler) RequestPasswordReset(ctx context.Context, req *authrpc.EmailRequest) (*authrpc.Empty, error) {
	if err := h.s.auth.RequestPasswordReset(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return &authrpc.Empty{}, nil
}

func (h *handler) ResetPassword(ctx context.Context, req *authrpc.ResetPasswordRequest) (*authrpc.Empty, error) {
	if err := h.s.auth.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return nil, toStatus(err)
	}
	return &authrpc.Empty{}, nil
}

func (h *handler) ConfirmEmail(ctx context.Context, req *authrpc.TokenRequest) (*authrpc.Empty, error) {
	if err := h.s.auth.ConfirmEmail(ctx, req.Token); err != nil {
		return nil, toStatus(err)
	}
	return &authrpc.Empty{}, nil
}

func (h *handler) ResendConfirmation(ctx context.Context, req *authrpc.EmailRequest) (*authrpc.Empty, error) {
	if err := h.s.auth.ResendConfirmation(ctx, req.Email); err != nil {
		return nil, toStatus(err)
	}
	return &authrpc.Empty{}, nil
}
