package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

// ErrorCode is the machine-readable taxonomy code attached to every
// classified API failure.
type ErrorCode string

const (
	CodeAccountNotFound      ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeTransactionNotFound  ErrorCode = "TRANSACTION_NOT_FOUND"
	CodeRequisitionNotFound  ErrorCode = "REQUISITION_NOT_FOUND"
	CodeAgreementNotFound    ErrorCode = "AGREEMENT_NOT_FOUND"
	CodeNotFound             ErrorCode = "NOT_FOUND"
	CodeRateLimitExceeded    ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	CodePaymentRequired      ErrorCode = "PAYMENT_REQUIRED"
	CodeIPNotWhitelisted     ErrorCode = "IP_NOT_WHITELISTED"
	CodeForbidden            ErrorCode = "FORBIDDEN"
	CodeConflict             ErrorCode = "CONFLICT"
	CodeValidationError      ErrorCode = "VALIDATION_ERROR"
	CodeInternalServerError  ErrorCode = "INTERNAL_SERVER_ERROR"
	CodeBadGateway           ErrorCode = "BAD_GATEWAY"
	CodeServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	CodeGatewayTimeout       ErrorCode = "GATEWAY_TIMEOUT"
	CodeUnknown              ErrorCode = "UNKNOWN_ERROR"
)

// MetaRetryAfter is the Meta key under which the server-suggested retry
// delay (in seconds) is stored for rate-limited responses.
const MetaRetryAfter = "retryAfter"

const (
	defaultSummary = "API Error"
	defaultDetail  = "An error occurred"
)

// APIError is the unified error shape for every API-level failure. It is
// immutable once constructed; callers discriminate with errors.As and the
// Code field.
type APIError struct {
	StatusCode int
	Code       ErrorCode
	Summary    string
	Detail     string
	RateLimit  *RateLimitInfo
	Meta       map[string]any
}

// Error implements the error interface as "summary: detail".
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Summary, e.Detail)
}

// retryAfterPattern matches the server's throttling hint, e.g.
// "Rate limit exceeded. Please try again in 42 seconds".
var retryAfterPattern = regexp.MustCompile(`(?i)try again in (\d+) second`)

// RetryAfter returns the server-suggested delay in seconds for
// rate-limited responses. The second return value is false unless the
// error is a RATE_LIMIT_EXCEEDED and the detail text carries a hint.
func (e *APIError) RetryAfter() (int, bool) {
	if e.Code != CodeRateLimitExceeded {
		return 0, false
	}
	return retryAfterSeconds(e.Detail)
}

func retryAfterSeconds(detail string) (int, bool) {
	m := retryAfterPattern.FindStringSubmatch(detail)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// errorBody is the wire shape of API error payloads.
type errorBody struct {
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

// FromResponse classifies a failed API response into an APIError. The body
// is the raw response payload; a body that fails to parse as JSON is
// treated as empty, letting the status-based mapping apply with default
// summary and detail text.
func FromResponse(statusCode int, body []byte, rateLimit *RateLimitInfo) *APIError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	summary := eb.Summary
	if summary == "" {
		summary = defaultSummary
	}
	detail := eb.Detail
	if detail == "" {
		detail = defaultDetail
	}

	apiErr := &APIError{
		StatusCode: statusCode,
		Code:       classify(statusCode, summary),
		Summary:    summary,
		Detail:     detail,
		RateLimit:  rateLimit,
	}

	if statusCode == http.StatusTooManyRequests {
		if seconds, ok := retryAfterSeconds(detail); ok {
			apiErr.Meta = map[string]any{MetaRetryAfter: seconds}
		}
	}

	return apiErr
}

// classify maps a status code and summary text onto the error taxonomy.
// The 404 sub-checks run before the generic fallback, in fixed priority
// order; the summary scan is case-insensitive.
func classify(statusCode int, summary string) ErrorCode {
	lower := strings.ToLower(summary)

	switch statusCode {
	case http.StatusNotFound:
		switch {
		case strings.Contains(lower, "account"):
			return CodeAccountNotFound
		case strings.Contains(lower, "transaction"):
			return CodeTransactionNotFound
		case strings.Contains(lower, "requisition"):
			return CodeRequisitionNotFound
		case strings.Contains(lower, "agreement"):
			return CodeAgreementNotFound
		default:
			return CodeNotFound
		}
	case http.StatusTooManyRequests:
		return CodeRateLimitExceeded
	case http.StatusUnauthorized:
		return CodeAuthenticationFailed
	case http.StatusPaymentRequired:
		return CodePaymentRequired
	case http.StatusForbidden:
		if strings.Contains(lower, "ip") {
			return CodeIPNotWhitelisted
		}
		return CodeForbidden
	case http.StatusConflict:
		return CodeConflict
	case http.StatusBadRequest:
		return CodeValidationError
	case http.StatusInternalServerError:
		return CodeInternalServerError
	case http.StatusBadGateway:
		return CodeBadGateway
	case http.StatusServiceUnavailable:
		return CodeServiceUnavailable
	case http.StatusGatewayTimeout:
		return CodeGatewayTimeout
	default:
		return CodeUnknown
	}
}
