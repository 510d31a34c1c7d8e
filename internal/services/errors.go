package services

import (
	"errors"
	"fmt"

	"github.com/nimasrn/statement-ledger/internal/model"
	"github.com/nimasrn/statement-ledger/internal/repository"
)

var (
	// ErrValidation wraps every rejected input. Nothing has been written
	// when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is deliberately the same for missing rows and rows owned by
	// someone else.
	ErrNotFound = errors.New("transaction not found or unauthorized")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// classify maps lower-layer errors onto the service sentinels and leaves
// everything else untouched.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrInvalidFilter),
		errors.Is(err, model.ErrInvalidLinkage),
		errors.Is(err, model.ErrInvalidTransaction):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return err
}
