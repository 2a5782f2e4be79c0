package errs

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalid            = errors.New("invalid")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal")
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrEmptyContent       = errors.New("no content extracted from document")
	ErrGeneration         = errors.New("model generation failed")
	ErrGenerationTimeout  = errors.New("model generation timed out")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
