// Package client is the gophauth gRPC client used by the CLI. GRPCClient
// keeps the token pair of the current login, attaches the access token to
// every call and refreshes it once when the server rejects it.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/authrpc"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// retried lists the calls repeated once after a successful refresh.
var retried = map[string]bool{
	authrpc.MethodMe:             true,
	authrpc.MethodChangePassword: true,
}

type GRPCClient struct {
	conn *grpc.ClientConn
	api  *authrpc.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

// NewGRPCClient prepares a client for endpoint. The connection is
// established lazily on the first call.
func NewGRPCClient(endpoint string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	c.api = authrpc.NewClient(conn)
	return c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) tokens() (string, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

func (c *GRPCClient) setTokens(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = access, refresh
}

func (c *GRPCClient) LoggedIn() bool {
	access, _ := c.tokens()
	return access != ""
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, refresh := c.tokens()
	if access != "" {
		ctx = withAccessToken(ctx, access)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil || !retried[method] || refresh == "" || status.Code(err) != codes.Unauthenticated {
		return err
	}

	if rerr := c.refresh(ctx, refresh); rerr != nil {
		return err
	}

	access, _ = c.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func (c *GRPCClient) refresh(ctx context.Context, refreshToken string) error {
	resp, err := c.api.Refresh(ctx, &authrpc.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

// mapError turns a gRPC status into an error the CLI can print.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	default:
		return errors.New(st.Message())
	}
}

func (c *GRPCClient) Register(ctx context.Context, email string, password []byte) (*authrpc.User, error) {
	resp, err := c.api.Register(ctx, &authrpc.CredentialsRequest{Email: email, Password: string(password)})
	if err != nil {
		return nil, mapError(err)
	}
	c.setTokens(resp.Tokens.AccessToken, resp.Tokens.RefreshToken)
	return &resp.User, nil
}

func (c *GRPCClient) Login(ctx context.Context, email string, password []byte) (*authrpc.User, error) {
	resp, err := c.api.Login(ctx, &authrpc.CredentialsRequest{Email: email, Password: string(password)})
	if err != nil {
		return nil, mapError(err)
	}
	c.setTokens(resp.Tokens.AccessToken, resp.Tokens.RefreshToken)
	return &resp.User, nil
}

// Refresh rotates the token pair explicitly.
func (c *GRPCClient) Refresh(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}
	return mapError(c.refresh(ctx, refresh))
}

// Logout closes the server session and forgets the tokens even when the
// server cannot be reached.
func (c *GRPCClient) Logout(ctx context.Context) error {
	defer c.setTokens("", "")
	return mapError(c.api.Logout(ctx))
}

func (c *GRPCClient) Me(ctx context.Context) (*authrpc.User, error) {
	u, err := c.api.Me(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// ChangePassword ends every session of the account, this one included.
func (c *GRPCClient) ChangePassword(ctx context.Context, current, next []byte) error {
	err := c.api.ChangePassword(ctx, &authrpc.ChangePasswordRequest{CurrentPassword: string(current), NewPassword: string(next)})
	if err != nil {
		return mapError(err)
	}
	c.setTokens("", "")
	return nil
}

func (c *GRPCClient) RequestPasswordReset(ctx context.Context, email string) error {
	return mapError(c.api.RequestPasswordReset(ctx, &authrpc.EmailRequest{Email: email}))
}

func (c *GRPCClient) ResetPassword(ctx context.Context, token string, password []byte) error {
	return mapError(c.api.ResetPassword(ctx, &authrpc.ResetPasswordRequest{Token: token, Password: string(password)}))
}

func (c *GRPCClient) ConfirmEmail(ctx context.Context, token string) error {
	return mapError(c.api.ConfirmEmail(ctx, &authrpc.TokenRequest{Token: token}))
}

func (c *GRPCClient) ResendConfirmation(ctx context.Context, email string) error {
	return mapError(c.api.ResendConfirmation(ctx, &authrpc.EmailRequest{Email: email}))
}
