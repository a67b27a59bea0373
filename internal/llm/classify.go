package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ClassifyCommon handles failures whose meaning does not depend on the
// backend: cancellation, deadlines, network timeouts and empty responses.
// ErrMissingKey aborts because it is only returned when the key slot is
// empty, which leaves no other candidate to rotate to. It returns false
// when the provider must decide.
func ClassifyCommon(err error) (ErrorAction, bool) {
	switch {
	case err == nil:
		return ActionRetry, false
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled),
		errors.Is(err, ErrMissingKey):
		return ActionAbort, true
	case errors.Is(err, ErrEmptyResponse), errors.Is(err, context.DeadlineExceeded):
		return ActionRetry, true
	case errors.Is(err, syscall.ECONNRESET):
		return ActionRetry, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ActionRetry, true
	}
	return ActionRetry, false
}

// ClassifyStatus maps an HTTP status code onto an action. Unknown codes
// return false so the caller can fall back to message inspection.
func ClassifyStatus(code int) (ErrorAction, bool) {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code >= http.StatusInternalServerError:
		return ActionRetry, true
	case code == http.StatusUnauthorized, code == http.StatusForbidden,
		code == http.StatusNotFound:
		// A rejected key only rules out this candidate; the next key may work.
		return ActionPermanent, true
	default:
		return ActionRetry, false
	}
}

// ClassifyMessage is the last-resort classification from the error text.
// Anything unrecognised is treated as transient.
func ClassifyMessage(msg string) ErrorAction {
	switch {
	case IsAuthMessage(msg), IsNotFoundMessage(msg), IsZeroQuotaMessage(msg):
		return ActionPermanent
	default:
		return ActionRetry
	}
}

// IsRateLimitMessage reports whether msg describes rate limiting or
// temporary quota exhaustion.
func IsRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "rate_limit") ||
		strings.Contains(lower, "resource_exhausted") ||
		strings.Contains(lower, "too many requests")
}

// IsOverloadedMessage reports whether msg describes an overloaded backend.
func IsOverloadedMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "overloaded") ||
		strings.Contains(lower, "529") ||
		strings.Contains(lower, "service unavailable")
}

// IsAuthMessage reports whether msg describes an invalid or revoked key.
func IsAuthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "api key not valid") ||
		strings.Contains(lower, "invalid_api_key") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "incorrect api key") ||
		strings.Contains(lower, "authentication_error") ||
		strings.Contains(lower, "authentication failed") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "401")
}

// IsNotFoundMessage reports whether msg describes an unknown model.
func IsNotFoundMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "404") ||
		strings.Contains(lower, "not_found") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "model_not_found") ||
		strings.Contains(lower, "does not exist")
}

// IsZeroQuotaMessage reports whether msg describes a quota that will not
// recover during this run, such as a free tier with no allowance.
func IsZeroQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "limit: 0") ||
		strings.Contains(lower, "insufficient_quota")
}

// IsTimeoutMessage reports whether msg describes a timeout.
func IsTimeoutMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "deadline exceeded")
}

// IsConnectionMessage reports whether msg describes a backend that cannot be
// reached at all.
func IsConnectionMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connect: ") ||
		strings.Contains(lower, "dial tcp")
}

// IsContentFilterMessage reports whether the backend refused the output.
func IsContentFilterMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "content_filter") ||
		strings.Contains(lower, "content filter") ||
		strings.Contains(lower, "safety") ||
		strings.Contains(lower, "blocked")
}
