package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file extension no normaliser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the text-generation provider is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured
	// or cannot be reached.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// Provider errors.

	// ErrTransport indicates a network or authentication failure reaching a provider.
	// Retryable.
	ErrTransport = errors.New("provider transport failure")

	// ErrRateLimited indicates the API rate limit was exceeded.
	// Retryable with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout indicates a provider call exceeded its deadline.
	ErrTimeout = errors.New("provider timeout")

	// ErrProviderLogic indicates the provider answered with a malformed or
	// rejected response. Not retryable.
	ErrProviderLogic = errors.New("provider logic error")

	// Local errors.

	// ErrManifestCorrupt indicates the persisted manifest could not be decoded.
	// Ingestion treats it as empty.
	ErrManifestCorrupt = errors.New("manifest corrupt")

	// ErrLocalIO indicates a source file could not be read or parsed.
	ErrLocalIO = errors.New("local I/O failure")
)

// ErrorKind classifies provider and local failures.
type ErrorKind string

// Error kinds carried in query metadata and ingestion errors.
const (
	ErrorKindNone          ErrorKind = ""
	ErrorKindTransport     ErrorKind = "transport"
	ErrorKindRateLimit     ErrorKind = "rate_limit"
	ErrorKindTimeout       ErrorKind = "timeout"
	ErrorKindProviderLogic ErrorKind = "provider_logic"
	ErrorKindManifest      ErrorKind = "manifest_corruption"
	ErrorKindLocalIO       ErrorKind = "local_io"
	ErrorKindCanceled      ErrorKind = "canceled"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// String returns the string representation.
func (k ErrorKind) String() string {
	return string(k)
}

// Retryable reports whether a retry policy should try again.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindTransport, ErrorKindRateLimit, ErrorKindTimeout:
		return true
	default:
		return false
	}
}

// sentinel returns the package error matching the kind.
func (k ErrorKind) sentinel() error {
	switch k {
	case ErrorKindTransport:
		return ErrTransport
	case ErrorKindRateLimit:
		return ErrRateLimited
	case ErrorKindTimeout:
		return ErrTimeout
	case ErrorKindProviderLogic:
		return ErrProviderLogic
	case ErrorKindManifest:
		return ErrManifestCorrupt
	case ErrorKindLocalIO:
		return ErrLocalIO
	default:
		return nil
	}
}

// ProviderError is returned by every adapter that talks to an external
// embedding, vector index or text-generation service.
type ProviderError struct {
	// Provider names the service, e.g. "openai" or "qdrant".
	Provider string

	// Op is the operation that failed, e.g. "embed" or "search".
	Op string

	// Kind classifies the failure.
	Kind ErrorKind

	// StatusCode is the HTTP status when one was received.
	StatusCode int

	// RetryAfter is the server-suggested wait for rate-limit responses.
	RetryAfter time.Duration

	// Err is the underlying cause.
	Err error
}

// NewProviderError builds a ProviderError.
func NewProviderError(provider, op string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the failure kind, so callers can write
// errors.Is(err, domain.ErrRateLimited).
func (e *ProviderError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// Retryable reports whether the failure is transient.
func (e *ProviderError) Retryable() bool {
	return e.Kind.Retryable()
}

// KindOf classifies any error. A nil error has no kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return ErrorKindCanceled
	case errors.Is(err, ErrRateLimited):
		return ErrorKindRateLimit
	case errors.Is(err, ErrTransport):
		return ErrorKindTransport
	case errors.Is(err, ErrProviderLogic):
		return ErrorKindProviderLogic
	case errors.Is(err, ErrManifestCorrupt):
		return ErrorKindManifest
	case errors.Is(err, ErrLocalIO):
		return ErrorKindLocalIO
	default:
		return ErrorKindUnknown
	}
}
