package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrRateLimited", ErrRateLimited, "rate limited"},
		{"ErrUpstreamQuotaExceeded", ErrUpstreamQuotaExceeded, "upstream quota exceeded"},
		{"ErrUpstreamTransient", ErrUpstreamTransient, "upstream transient failure"},
		{"ErrUpstreamMalformed", ErrUpstreamMalformed, "upstream malformed response"},
		{"ErrIndexBuildFailure", ErrIndexBuildFailure, "index build failure"},
		{"ErrDimensionMismatch", ErrDimensionMismatch, "embedding dimension mismatch"},
		{"ErrInvalidProvider", ErrInvalidProvider, "invalid provider"},
		{"ErrServiceUnavailable", ErrServiceUnavailable, "service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrInvalidInput,
		ErrRateLimited,
		ErrUpstreamQuotaExceeded,
		ErrUpstreamTransient,
		ErrUpstreamMalformed,
		ErrIndexBuildFailure,
		ErrDimensionMismatch,
		ErrInvalidProvider,
		ErrServiceUnavailable,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors %v and %v should be distinct", err1, err2)
			}
		}
	}
}

func TestUpstreamError_IsMatchesKind(t *testing.T) {
	tests := []struct {
		kind     ErrorKind
		sentinel error
		others   []error
	}{
		{KindQuotaExceeded, ErrUpstreamQuotaExceeded, []error{ErrUpstreamTransient, ErrUpstreamMalformed}},
		{KindTransient, ErrUpstreamTransient, []error{ErrUpstreamQuotaExceeded, ErrUpstreamMalformed}},
		{KindMalformed, ErrUpstreamMalformed, []error{ErrUpstreamQuotaExceeded, ErrUpstreamTransient}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", NewUpstreamError(tt.kind, "openai", "embed", errors.New("boom")))
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("expected %v to match %v", err, tt.sentinel)
			}
			for _, other := range tt.others {
				if errors.Is(err, other) {
					t.Errorf("expected %v not to match %v", err, other)
				}
			}
			kind, ok := KindOf(err)
			if !ok || kind != tt.kind {
				t.Errorf("expected kind %s, got %s (ok=%v)", tt.kind, kind, ok)
			}
		})
	}
}

func TestUpstreamError_Message(t *testing.T) {
	err := &UpstreamError{
		Kind:       KindQuotaExceeded,
		Provider:   "openai",
		Op:         "embed",
		StatusCode: 429,
		Raw:        `{"error":{"code":"insufficient_quota"}}`,
		Err:        errors.New("insufficient_quota"),
	}

	msg := err.Error()
	if !strings.Contains(msg, "openai embed: quota_exceeded (status 429)") {
		t.Errorf("unexpected message %q", msg)
	}
	if strings.Contains(msg, "{") {
		t.Error("raw body must not appear in the error message")
	}
}

func TestUpstreamError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewUpstreamError(KindTransient, "ollama", "generate", inner)
	if !errors.Is(err, inner) {
		t.Error("expected inner error to be reachable")
	}
}

func TestErrorKind_Retryable(t *testing.T) {
	if !KindTransient.Retryable() {
		t.Error("transient should be retryable")
	}
	if KindQuotaExceeded.Retryable() || KindMalformed.Retryable() {
		t.Error("quota and malformed must not be retryable")
	}
}

func TestKindOf_Sentinels(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("x: %w", ErrUpstreamTransient))
	if !ok || kind != KindTransient {
		t.Errorf("expected transient, got %s", kind)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("plain error has no kind")
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "query", Message: "query is required"}

	if err.Error() != "query: query is required" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("expected ValidationError to match ErrInvalidInput")
	}
}

func TestIndexBuildError_PreservesKind(t *testing.T) {
	cause := NewUpstreamError(KindTransient, "openai", "embed", errors.New("503"))
	err := &IndexBuildError{Err: cause}

	if !errors.Is(err, ErrIndexBuildFailure) {
		t.Error("expected ErrIndexBuildFailure")
	}
	if !errors.Is(err, ErrUpstreamTransient) {
		t.Error("expected upstream kind to be preserved")
	}
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: StageGenerate, Err: ErrUpstreamTransient}

	if err.Error() != "generate: upstream transient failure" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrUpstreamTransient) {
		t.Error("expected wrapped error to be reachable")
	}
}

func TestCodeOf(t *testing.T) {
	quota := NewUpstreamError(KindQuotaExceeded, "openai", "embed", nil)

	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"validation", &ValidationError{Field: "query", Message: "bad"}, CodeInvalidInput},
		{"rate limited", ErrRateLimited, CodeRateLimited},
		{"quota", quota, CodeUpstreamQuotaExceeded},
		{"quota inside index build", &StageError{Stage: StageIndex, Err: &IndexBuildError{Err: quota}}, CodeUpstreamQuotaExceeded},
		{"transient inside index build", &IndexBuildError{Err: NewUpstreamError(KindTransient, "openai", "embed", nil)}, CodeIndexBuildFailed},
		{"transient", NewUpstreamError(KindTransient, "groq", "generate", nil), CodeUpstreamUnavailable},
		{"malformed", NewUpstreamError(KindMalformed, "groq", "generate", nil), CodeUpstreamMalformed},
		{"service unavailable", fmt.Errorf("%w: no llm", ErrServiceUnavailable), CodeServiceUnavailable},
		{"no embedding inside index build", &IndexBuildError{Err: ErrServiceUnavailable}, CodeServiceUnavailable},
		{"unknown", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestPublicMessage(t *testing.T) {
	quota := &UpstreamError{Kind: KindQuotaExceeded, Provider: "openai", Op: "generate", Raw: "secret billing detail"}
	if got := PublicMessage(quota); got != "service temporarily unavailable due to quota limits" {
		t.Errorf("unexpected quota message %q", got)
	}

	vErr := &ValidationError{Field: "query", Message: "query is required"}
	if got := PublicMessage(&StageError{Stage: StageValidate, Err: vErr}); got != "query: query is required" {
		t.Errorf("unexpected validation message %q", got)
	}

	malformed := NewUpstreamError(KindMalformed, "anthropic", "generate", errors.New("unexpected token <"))
	if got := PublicMessage(malformed); strings.Contains(got, "token") {
		t.Errorf("provider text leaked: %q", got)
	}
}
