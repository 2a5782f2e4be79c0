package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrInternal
	ErrInsufficientTokens
	ErrInvalidFile
	ErrUnsupportedFormat
	ErrEmptyContent
	ErrGenerationFailed
	ErrGenerationTimeout
	ErrNotImplemented
)
