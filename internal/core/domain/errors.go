package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrInvalidInput indicates the query text was rejected before any upstream call
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the caller exceeded its request budget
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstreamQuotaExceeded indicates a provider rejected the call for quota, billing or credentials.
	// Not retried automatically.
	ErrUpstreamQuotaExceeded = errors.New("upstream quota exceeded")

	// ErrUpstreamTransient indicates a network error, timeout, 5xx or a plain 429 from a provider
	ErrUpstreamTransient = errors.New("upstream transient failure")

	// ErrUpstreamMalformed indicates a provider response did not match the expected shape
	ErrUpstreamMalformed = errors.New("upstream malformed response")

	// ErrIndexBuildFailure indicates the embedding index could not be built.
	// The underlying upstream error is preserved in the chain.
	ErrIndexBuildFailure = errors.New("index build failure")

	// ErrDimensionMismatch indicates two vectors of different length were compared
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates a required AI service is not configured
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ErrorKind classifies upstream failures.
type ErrorKind string

const (
	KindQuotaExceeded ErrorKind = "quota_exceeded"
	KindTransient     ErrorKind = "transient"
	KindMalformed     ErrorKind = "malformed"
)

// sentinel returns the package-level error matching the kind.
func (k ErrorKind) sentinel() error {
	switch k {
	case KindQuotaExceeded:
		return ErrUpstreamQuotaExceeded
	case KindTransient:
		return ErrUpstreamTransient
	default:
		return ErrUpstreamMalformed
	}
}

// Retryable reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

// UpstreamError is a classified failure from an embedding or generation provider.
// Raw holds the provider response body for server-side logs; it must never be
// returned to API clients.
type UpstreamError struct {
	Kind       ErrorKind
	Provider   string
	Op         string
	StatusCode int
	Raw        string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *UpstreamError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewUpstreamError builds an UpstreamError without an HTTP status.
func NewUpstreamError(kind ErrorKind, provider, op string, err error) *UpstreamError {
	return &UpstreamError{Kind: kind, Provider: provider, Op: op, Err: err}
}

// KindOf returns the upstream kind carried anywhere in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Kind, true
	}
	switch {
	case errors.Is(err, ErrUpstreamQuotaExceeded):
		return KindQuotaExceeded, true
	case errors.Is(err, ErrUpstreamTransient):
		return KindTransient, true
	case errors.Is(err, ErrUpstreamMalformed):
		return KindMalformed, true
	}
	return "", false
}

// ValidationError is a field-level input rejection.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IndexBuildError wraps the failure that aborted an index build.
type IndexBuildError struct {
	Err error
}

func (e *IndexBuildError) Error() string {
	return "build embedding index: " + e.Err.Error()
}

func (e *IndexBuildError) Unwrap() error { return e.Err }

func (e *IndexBuildError) Is(target error) bool {
	return target == ErrIndexBuildFailure
}

// ErrorCode is the stable, client-facing identifier for a failure.
type ErrorCode string

const (
	CodeInvalidInput          ErrorCode = "invalid_input"
	CodeRateLimited           ErrorCode = "rate_limited"
	CodeUpstreamQuotaExceeded ErrorCode = "upstream_quota_exceeded"
	CodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	CodeUpstreamMalformed     ErrorCode = "upstream_malformed"
	CodeIndexBuildFailed      ErrorCode = "index_build_failed"
	CodeServiceUnavailable    ErrorCode = "service_unavailable"
	CodeInternal              ErrorCode = "internal_error"
)

// CodeOf maps an error to its stable code. Quota failures and a missing
// provider win over index build failures so callers always see the actionable message.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrUpstreamQuotaExceeded):
		return CodeUpstreamQuotaExceeded
	case errors.Is(err, ErrServiceUnavailable):
		return CodeServiceUnavailable
	case errors.Is(err, ErrIndexBuildFailure):
		return CodeIndexBuildFailed
	case errors.Is(err, ErrUpstreamTransient):
		return CodeUpstreamUnavailable
	case errors.Is(err, ErrUpstreamMalformed):
		return CodeUpstreamMalformed
	default:
		return CodeInternal
	}
}

// PublicMessage returns the message shown to API clients for err.
// Provider text is never included.
func PublicMessage(err error) string {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Error()
	}
	switch CodeOf(err) {
	case CodeInvalidInput:
		return "invalid query"
	case CodeRateLimited:
		return "too many requests, slow down"
	case CodeUpstreamQuotaExceeded:
		return "service temporarily unavailable due to quota limits"
	case CodeUpstreamUnavailable:
		return "upstream service temporarily unavailable, try again shortly"
	case CodeUpstreamMalformed:
		return "upstream service returned an unexpected response"
	case CodeIndexBuildFailed:
		return "failed to build embedding index"
	case CodeServiceUnavailable:
		return "answering service is not configured"
	default:
		return "internal server error"
	}
}
