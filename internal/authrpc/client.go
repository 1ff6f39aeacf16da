package authrpc

import (
	"context"

	"google.golang.org/grpc"
)

// Client calls the gophauth service over an established connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *Client) Register(ctx context.Context, in *CredentialsRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	out := new(SessionResponse)
	if err := c.invoke(ctx, MethodRegister, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, in *CredentialsRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	out := new(SessionResponse)
	if err := c.invoke(ctx, MethodLogin, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, in *RefreshRequest, opts ...grpc.CallOption) (*Tokens, error) {
	out := new(Tokens)
	if err := c.invoke(ctx, MethodRefresh, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodLogout, &Empty{}, &Empty{}, opts...)
}

func (c *Client) Me(ctx context.Context, opts ...grpc.CallOption) (*User, error) {
	out := new(User)
	if err := c.invoke(ctx, MethodMe, &Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodChangePassword, in, &Empty{}, opts...)
}

func (c *Client) RequestPasswordReset(ctx context.Context, in *EmailRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodRequestPasswordReset, in, &Empty{}, opts...)
}

func (c *Client) ResetPassword(ctx context.Context, in *ResetPasswordRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodResetPassword, in, &Empty{}, opts...)
}

func (c *Client) ConfirmEmail(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodConfirmEmail, in, &Empty{}, opts...)
}

func (c *Client) ResendConfirmation(ctx context.Context, in *EmailRequest, opts ...grpc.CallOption) error {
	return c.invoke(ctx, MethodResendConfirmation, in, &Empty{}, opts...)
}
