package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   domain.ErrorKind
	}{
		{http.StatusUnauthorized, "", domain.KindQuotaExceeded},
		{http.StatusPaymentRequired, "", domain.KindQuotaExceeded},
		{http.StatusForbidden, "", domain.KindQuotaExceeded},
		{http.StatusTooManyRequests, "insufficient_quota", domain.KindQuotaExceeded},
		{http.StatusBadRequest, "Check your BILLING details", domain.KindQuotaExceeded},
		{http.StatusTooManyRequests, "rate limited", domain.KindTransient},
		{http.StatusRequestTimeout, "", domain.KindTransient},
		{http.StatusInternalServerError, "", domain.KindTransient},
		{http.StatusServiceUnavailable, "", domain.KindTransient},
		{http.StatusBadRequest, "bad input", domain.KindMalformed},
		{http.StatusNotFound, "", domain.KindMalformed},
	}

	for _, tt := range tests {
		if got := kindForStatus(tt.status, tt.body); got != tt.want {
			t.Errorf("kindForStatus(%d, %q) = %s, want %s", tt.status, tt.body, got, tt.want)
		}
	}
}

func TestStatusError_TruncatesRaw(t *testing.T) {
	body := []byte(strings.Repeat("x", maxRawBody+500))

	err := statusError("openai", "embed", http.StatusBadGateway, body)

	if len(err.Raw) != maxRawBody {
		t.Errorf("expected raw truncated to %d, got %d", maxRawBody, len(err.Raw))
	}
	if strings.Contains(err.Error(), "xxxx") {
		t.Error("raw body must not appear in the error message")
	}
	if !errors.Is(err, domain.ErrUpstreamTransient) {
		t.Errorf("expected transient, got %v", err)
	}
}

func TestTransportError(t *testing.T) {
	if err := transportError("openai", "embed", context.Canceled); err != context.Canceled {
		t.Errorf("expected cancellation unchanged, got %v", err)
	}

	err := transportError("openai", "embed", context.DeadlineExceeded)
	if !errors.Is(err, domain.ErrUpstreamTransient) {
		t.Errorf("expected deadline classified transient, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected the cause to stay reachable")
	}
}

func TestDecodeError(t *testing.T) {
	err := decodeError("local", "embed", []byte("<html>"), errors.New("invalid character"))
	if !errors.Is(err, domain.ErrUpstreamMalformed) {
		t.Errorf("expected malformed, got %v", err)
	}
	if err.Raw != "<html>" {
		t.Errorf("expected raw kept, got %q", err.Raw)
	}
}
