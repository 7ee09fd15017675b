package flight

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrNoAddress is returned when Config.Address is empty.
	ErrNoAddress = errors.New("flight sql address is required")
	// ErrUnauthenticated matches StatusErrors with code Unauthenticated.
	ErrUnauthenticated = errors.New("flight sql: unauthenticated")
	// ErrNotFound matches StatusErrors with code NotFound.
	ErrNotFound = errors.New("flight sql: not found")
	// ErrUnavailable matches StatusErrors with code Unavailable.
	ErrUnavailable = errors.New("flight sql: backend unavailable")
)

// StatusError is a backend failure reported over Flight SQL.
// Message is the backend's text, unchanged.
type StatusError struct {
	Code    codes.Code
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("flight sql %s: %s", e.Code, e.Message)
}

// GRPCStatus lets status.FromError recover the original status.
func (e *StatusError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

// Is matches the package sentinels by status code.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Code == codes.Unauthenticated
	case ErrNotFound:
		return e.Code == codes.NotFound
	case ErrUnavailable:
		return e.Code == codes.Unavailable
	default:
		return false
	}
}

// mapError converts gRPC failures into StatusErrors. Cancellation of ctx
// takes precedence so callers can match context.Canceled.
func mapError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	return &StatusError{Code: st.Code(), Message: st.Message()}
}
