package grpc

import (
	"errors"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps a service error onto a gRPC status. Internal failures never
// leak their cause to the caller.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	kind := common.KindOf(err)
	var code codes.Code
	switch {
	case errors.Is(kind, common.ErrorConflict):
		code = codes.AlreadyExists
	case errors.Is(kind, common.ErrorUnauthorized), errors.Is(kind, common.ErrInvalidToken):
		code = codes.Unauthenticated
	case errors.Is(kind, common.ErrorForbidden):
		code = codes.PermissionDenied
	case errors.Is(kind, common.ErrorNotFound):
		code = codes.NotFound
	case errors.Is(kind, common.ErrorBadRequest):
		code = codes.InvalidArgument
	case errors.Is(kind, common.ErrorTooManyRequests):
		code = codes.ResourceExhausted
	default:
		return status.Error(codes.Internal, common.ErrorInternal.Error())
	}
	return status.Error(code, common.Message(err))
}
