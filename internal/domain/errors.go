package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrDuplicatePeriod means the distribution for that period already exists.
	// Callers treat it as a successful no-op.
	ErrDuplicatePeriod = errors.New("distribution already recorded for period")
	ErrStorage         = errors.New("storage failure")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Storage wraps a driver error so callers can match ErrStorage while keeping the cause.
func Storage(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
