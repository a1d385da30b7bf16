package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{401, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestClassifyProviderError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		code      string
		retryable bool
	}{
		{"nil", nil, "", false},
		{"canceled", fmt.Errorf("openai generate: %w", context.Canceled), CodeCanceled, false},
		{"deadline", fmt.Errorf("openai generate: %w", context.DeadlineExceeded), CodeTimeout, true},
		{"401 status", errors.New("API returned unexpected status code: 401: Incorrect API key provided"), CodeAuth, false},
		{"403 status", errors.New("HTTP 403: forbidden"), CodeAuth, false},
		{"invalid key text", errors.New("invalid api key"), CodeAuth, false},
		{"429 status", errors.New("API returned unexpected status code: 429"), CodeQuota, true},
		{"quota text", errors.New("You exceeded your current quota"), CodeQuota, true},
		{"credit balance", errors.New("credit balance is too low"), CodeQuota, true},
		{"503 status", errors.New("status 503 service unavailable"), CodeUnavailable, true},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), CodeUnavailable, true},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("boom")}, CodeUnavailable, true},
		{"404 not special", errors.New("HTTP 404: model not found"), CodeProviderError, false},
		{"generic", errors.New("something odd"), CodeProviderError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyProviderError(tc.err)
			if got.Code != tc.code || got.Retryable != tc.retryable {
				t.Fatalf("ClassifyProviderError(%v) = %+v, want {%s %v}", tc.err, got, tc.code, tc.retryable)
			}
		})
	}
}
