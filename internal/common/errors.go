// Package common defines shared constants, helpers and the error taxonomy used
// across client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level errors.
	ErrorInternal        = errors.New("internal error")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorForbidden       = errors.New("forbidden")
	ErrorBadRequest      = errors.New("bad request")
	ErrorTooManyRequests = errors.New("too many requests")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
)

var kinds = []error{
	ErrorConflict,
	ErrorUnauthorized,
	ErrorForbidden,
	ErrorNotFound,
	ErrorBadRequest,
	ErrorTooManyRequests,
	ErrInvalidToken,
	ErrorInternal,
}

// OpError tags a taxonomy kind with the operation that produced it and an
// optional human readable message and underlying cause.
//
//	return common.E("auth.Login", common.ErrorForbidden, "account is deactivated")
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e *OpError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// E builds an *OpError without a cause.
func E(op string, kind error, msg string) error {
	return &OpError{Op: op, Kind: kind, Msg: msg}
}

// Wrap builds an *OpError around cause. A nil cause yields nil.
func Wrap(op string, kind error, cause error) error {
	if cause == nil {
		return nil
	}
	return &OpError{Op: op, Kind: kind, Err: cause}
}

// KindOf returns the taxonomy kind carried by err, ErrorInternal for anything
// unclassified and nil for a nil error.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var op *OpError
	if errors.As(err, &op) && op.Kind != nil {
		err = op.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrorInternal
}

// Message returns the caller-facing message of err: the OpError message when
// one was set, otherwise the text of its kind.
func Message(err error) string {
	var op *OpError
	if errors.As(err, &op) && op.Msg != "" {
		return op.Msg
	}
	return KindOf(err).Error()
}
