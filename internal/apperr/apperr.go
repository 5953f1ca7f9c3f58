// Package apperr holds the error kinds shared by the repositories, services and handlers.
// Errors are wrapped with fmt.Errorf("%w: ...") and classified with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation      = errors.New("validation")            // 400
	ErrPrecondition    = errors.New("precondition failed")   // 409
	ErrUnauthorized    = errors.New("unauthorized")          // 403
	ErrUnauthenticated = errors.New("unauthenticated")       // 401
	ErrNotFound        = errors.New("not found")             // 404
	ErrGateway         = errors.New("payment gateway error") // 502
	ErrConsistency     = errors.New("consistency violation") // 500

	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrPrecondition)
	ErrEmptyCart         = fmt.Errorf("%w: cart is empty", ErrPrecondition)
)

// Kind returns the stable, client visible name of an error's kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrUnauthorized):
		return "authorization"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGateway):
		return "gateway"
	case errors.Is(err, ErrConsistency):
		return "consistency"
	default:
		return "internal"
	}
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func Precondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Consistency(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

// Gateway wraps a transport or API error returned by the payment gateway.
func Gateway(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGateway, op, err)
}
