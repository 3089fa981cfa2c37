package client

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

// Error category constants used as the weatherApiErrorsTotal label.
const (
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryInvalidAPIKey ErrorCategory = "invalid_api_key"
	ErrorCategoryRateLimited   ErrorCategory = "rate_limited"
	ErrorCategoryUpstream4xx   ErrorCategory = "upstream_4xx"
	ErrorCategoryUpstream5xx   ErrorCategory = "upstream_5xx"
	ErrorCategoryParsing       ErrorCategory = "parsing"
	ErrorCategoryIncomplete    ErrorCategory = "incomplete"
	ErrorCategoryCircuitOpen   ErrorCategory = "circuit_open"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metrics.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorCategoryTimeout
	}

	if errors.Is(err, ErrCircuitOpen) {
		return ErrorCategoryCircuitOpen
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		switch {
		case ue.StatusCode == http.StatusUnauthorized:
			return ErrorCategoryInvalidAPIKey
		case ue.StatusCode == http.StatusTooManyRequests:
			return ErrorCategoryRateLimited
		case ue.StatusCode >= 500:
			return ErrorCategoryUpstream5xx
		default:
			return ErrorCategoryUpstream4xx
		}
	}

	if errors.Is(err, ErrUpstreamUnreachable) {
		return ErrorCategoryNetwork
	}
	if errors.Is(err, ErrMalformedResponse) {
		return ErrorCategoryParsing
	}
	if errors.Is(err, ErrIncompleteResponse) {
		return ErrorCategoryIncomplete
	}

	return ErrorCategoryUnknown
}
