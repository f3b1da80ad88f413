package recognizer

import (
	"errors"

	"micscribe/internal/domain"
)

var (
	ErrAlreadyStarted = errors.New("recognition session already started")
	ErrNoListener     = errors.New("recognition listener is not set")
	errNoSpeech       = errors.New("no speech detected before timeout")
)

// Error carries a provider error code alongside the underlying failure.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func codeFor(err error, fallback string) string {
	var coded *Error
	switch {
	case errors.As(err, &coded) && coded.Code != "":
		return coded.Code
	case errors.Is(err, domain.ErrPermissionDenied):
		return domain.ErrorCodePermissionDenied
	case errors.Is(err, domain.ErrProviderUnauthorized):
		return domain.ErrorCodeServiceNotAllowed
	default:
		return fallback
	}
}
