package authrpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gophauth.Auth"

// Full method names, as seen by interceptors in UnaryServerInfo.FullMethod.
const (
	MethodRegister             = "/" + ServiceName + "/Register"
	MethodLogin                = "/" + ServiceName + "/Login"
	MethodRefresh              = "/" + ServiceName + "/Refresh"
	MethodLogout               = "/" + ServiceName + "/Logout"
	MethodMe                   = "/" + ServiceName + "/Me"
	MethodChangePassword       = "/" + ServiceName + "/ChangePassword"
	MethodRequestPasswordReset = "/" + ServiceName + "/RequestPasswordReset"
	MethodResetPassword        = "/" + ServiceName + "/ResetPassword"
	MethodConfirmEmail         = "/" + ServiceName + "/ConfirmEmail"
	MethodResendConfirmation   = "/" + ServiceName + "/ResendConfirmation"
)

// AuthServer is implemented by the gophauth server. Methods that need a
// caller identity read the access token from the "access_token" metadata.
type AuthServer interface {
	Register(context.Context, *CredentialsRequest) (*SessionResponse, error)
	Login(context.Context, *CredentialsRequest) (*SessionResponse, error)
	Refresh(context.Context, *RefreshRequest) (*Tokens, error)
	Logout(context.Context, *Empty) (*Empty, error)
	Me(context.Context, *Empty) (*User, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*Empty, error)
	RequestPasswordReset(context.Context, *EmailRequest) (*Empty, error)
	ResetPassword(context.Context, *ResetPasswordRequest) (*Empty, error)
	ConfirmEmail(context.Context, *TokenRequest) (*Empty, error)
	ResendConfirmation(context.Context, *EmailRequest) (*Empty, error)
}

func RegisterAuthServer(r grpc.ServiceRegistrar, srv AuthServer) {
	r.RegisterService(&ServiceDesc, srv)
}

// unary builds a method handler that decodes Req, runs the interceptor
// chain and dispatches to call.
func unary[Req, Resp any](fullMethod string, call func(AuthServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(MethodRegister, AuthServer.Register)},
		{MethodName: "Login", Handler: unary(MethodLogin, AuthServer.Login)},
		{MethodName: "Refresh", Handler: unary(MethodRefresh, AuthServer.Refresh)},
		{MethodName: "Logout", Handler: unary(MethodLogout, AuthServer.Logout)},
		{MethodName: "Me", Handler: unary(MethodMe, AuthServer.Me)},
		{MethodName: "ChangePassword", Handler: unary(MethodChangePassword, AuthServer.ChangePassword)},
		{MethodName: "RequestPasswordReset", Handler: unary(MethodRequestPasswordReset, AuthServer.RequestPasswordReset)},
		{MethodName: "ResetPassword", Handler: unary(MethodResetPassword, AuthServer.ResetPassword)},
		{MethodName: "ConfirmEmail", Handler: unary(MethodConfirmEmail, AuthServer.ConfirmEmail)},
		{MethodName: "ResendConfirmation", Handler: unary(MethodResendConfirmation, AuthServer.ResendConfirmation)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/auth",
}
