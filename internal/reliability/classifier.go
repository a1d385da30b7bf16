package reliability

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// Error classes reported for failed model calls.
const (
	CodeCanceled      = "canceled"
	CodeTimeout       = "timeout"
	CodeAuth          = "auth"
	CodeQuota         = "quota"
	CodeUnavailable   = "unavailable"
	CodeProviderError = "provider_error"
)

// Class is the outcome of classifying a provider error.
type Class struct {
	Code      string
	Retryable bool
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

var statusPattern = regexp.MustCompile(`\b(4\d\d|5\d\d)\b`)

var (
	authMarkers = []string{
		"invalid api key", "incorrect api key", "invalid_api_key",
		"authentication", "unauthorized", "permission denied", "forbidden",
	}
	quotaMarkers = []string{
		"rate limit", "rate_limit", "quota", "insufficient_quota",
		"billing", "credit balance", "too many requests",
	}
	unavailableMarkers = []string{
		"connection refused", "connection reset", "no such host",
		"server misbehaving", "eof", "overloaded", "service unavailable",
		"bad gateway",
	}
)

// ClassifyProviderError maps an error from a model call to a stable code.
// The retryable flag is a hint for the learner; callers never retry on their own.
func ClassifyProviderError(err error) Class {
	if err == nil {
		return Class{}
	}
	if errors.Is(err, context.Canceled) {
		return Class{Code: CodeCanceled}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Class{Code: CodeTimeout, Retryable: true}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Class{Code: CodeTimeout, Retryable: true}
	}

	msg := strings.ToLower(err.Error())
	if status, ok := findStatus(msg); ok {
		switch {
		case status == 401 || status == 403:
			return Class{Code: CodeAuth}
		case status == 429:
			return Class{Code: CodeQuota, Retryable: true}
		case IsRetryableHTTPStatus(status):
			return Class{Code: CodeUnavailable, Retryable: true}
		}
	}

	switch {
	case containsAny(msg, authMarkers):
		return Class{Code: CodeAuth}
	case containsAny(msg, quotaMarkers):
		return Class{Code: CodeQuota, Retryable: true}
	case containsAny(msg, unavailableMarkers):
		return Class{Code: CodeUnavailable, Retryable: true}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Class{Code: CodeUnavailable, Retryable: true}
	}
	return Class{Code: CodeProviderError}
}

func findStatus(msg string) (int, bool) {
	for _, m := range statusPattern.FindAllString(msg, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n == 401 || n == 403 || n == 429 || IsRetryableHTTPStatus(n) {
			return n, true
		}
	}
	return 0, false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
