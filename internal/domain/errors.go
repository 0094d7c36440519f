package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness violation.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnauthorized means no authenticated identity is available.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the entity belongs to another account.
	ErrForbidden = errors.New("forbidden")
	// ErrCartNotFound is returned when the user has no open cart. It matches ErrNotFound.
	ErrCartNotFound = fmt.Errorf("cart %w", ErrNotFound)
	ErrEmptyCart    = errors.New("cart is empty")
	// ErrMissingShippingAddress blocks finalization of a cart without an address.
	ErrMissingShippingAddress = errors.New("shipping address missing")
	// ErrTransactionFailed wraps any failure of the underlying store. Callers may retry.
	ErrTransactionFailed = errors.New("transaction failed")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	// ErrValidation marks input rejected by service-level validation.
	ErrValidation = errors.New("validation failed")
)

// Validationf returns an error matching ErrValidation with a readable message.
func Validationf(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrValidation }

var taxonomy = []error{
	ErrNotFound,
	ErrAlreadyExists,
	ErrUnauthorized,
	ErrForbidden,
	ErrEmptyCart,
	ErrMissingShippingAddress,
	ErrTransactionFailed,
	ErrInvalidQuantity,
	ErrValidation,
}

// AsTransactionFailure returns err unchanged when it already belongs to the
// error taxonomy and wraps anything else in ErrTransactionFailed.
func AsTransactionFailure(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range taxonomy {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
}
