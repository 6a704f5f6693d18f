package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// maxRawBody caps how much of a provider response is kept for logs
const maxRawBody = 2048

// quotaMarkers identify quota and billing failures in provider bodies,
// whatever status code they arrive with.
var quotaMarkers = []string{"insufficient_quota", "quota", "billing", "credit balance"}

func mentionsQuota(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range quotaMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// kindForStatus classifies a non-2xx provider response
func kindForStatus(status int, body string) domain.ErrorKind {
	switch {
	case status == http.StatusUnauthorized,
		status == http.StatusPaymentRequired,
		status == http.StatusForbidden:
		return domain.KindQuotaExceeded
	case mentionsQuota(body):
		return domain.KindQuotaExceeded
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return domain.KindTransient
	default:
		return domain.KindMalformed
	}
}

// statusError builds the classified error for a non-2xx response
func statusError(provider, op string, status int, body []byte) *domain.UpstreamError {
	raw := truncate(string(body), maxRawBody)
	kind := kindForStatus(status, raw)
	return &domain.UpstreamError{
		Kind:       kind,
		Provider:   provider,
		Op:         op,
		StatusCode: status,
		Raw:        raw,
		Err:        fmt.Errorf("%s returned status %d", provider, status),
	}
}

// transportError classifies a failure to reach the provider at all: network
// errors and deadlines are transient. Caller cancellation is returned unchanged.
func transportError(provider, op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewUpstreamError(domain.KindTransient, provider, op, err)
}

// decodeError marks a response body that did not match the expected shape
func decodeError(provider, op string, body []byte, err error) *domain.UpstreamError {
	return &domain.UpstreamError{
		Kind:     domain.KindMalformed,
		Provider: provider,
		Op:       op,
		Raw:      truncate(string(body), maxRawBody),
		Err:      fmt.Errorf("decode response: %w", err),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
