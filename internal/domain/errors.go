package domain

import (
	"errors"
	"fmt"
)

// Tipos de erro. As razões específicas embrulham um tipo com %w,
// então o chamador testa com errors.Is(err, ErrConflict) etc.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflict")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrPersistence         = errors.New("persistence failure")
)

var (
	ErrMissingField      = fmt.Errorf("%w: missing field", ErrInvalidInput)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be a positive number with at most 2 decimal places", ErrInvalidInput)
	ErrInvalidSide       = fmt.Errorf("%w: bet must be home or away", ErrInvalidInput)
	ErrGameNotFound      = fmt.Errorf("%w: game not found", ErrNotFound)
	ErrUserNotFound      = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrGameClosed        = fmt.Errorf("%w: game already started or finished", ErrConflict)
	ErrOddsUnavailable   = fmt.Errorf("%w: odds not available for this side", ErrConflict)
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrConflict)
	ErrAlreadyProcessed  = fmt.Errorf("%w: bet already processed", ErrConflict)
)

// Kind devolve o nome do tipo de erro, usado nas respostas HTTP.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	default:
		return "internal"
	}
}

// Persistence embrulha um erro de armazenamento com ErrPersistence.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
