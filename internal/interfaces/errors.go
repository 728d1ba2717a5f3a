package interfaces

import "errors"

// Sentinel errors shared across storage and orchestration layers.
// HTTP status mapping for these lives only in the handlers package.
var (
	// ErrKeyNotFound indicates a cache or store key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrStale indicates a stored value exists but exceeded its max age.
	ErrStale = errors.New("cached value is stale")

	// ErrCacheMiss indicates a cached-only request found no fresh bundle.
	ErrCacheMiss = errors.New("cached result unavailable")

	// ErrInvalidOutput indicates the LLM returned output that failed
	// validation after repair and fallback.
	ErrInvalidOutput = errors.New("invalid llm output")

	// ErrLLMDisabled indicates an operation required an LLM provider but
	// no API key is configured.
	ErrLLMDisabled = errors.New("llm provider not configured")
)

// ValidationError marks bad request input (ticker, date, mode). Handlers
// map it to HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
