package httpclient

import (
	"net/http"
	"strconv"
)

// Rate-limit response header names. Header lookups go through
// http.Header.Get, so matching is case-insensitive.
const (
	HeaderRateLimitLimit     = "X-Ratelimit-Limit"
	HeaderRateLimitRemaining = "X-Ratelimit-Remaining"
	HeaderRateLimitReset     = "X-Ratelimit-Reset"

	HeaderAccountSuccessLimit     = "X-Ratelimit-Account-Success-Limit"
	HeaderAccountSuccessRemaining = "X-Ratelimit-Account-Success-Remaining"
	HeaderAccountSuccessReset     = "X-Ratelimit-Account-Success-Reset"
)

// RateLimitWindow holds the quota counters for a single rate-limit group.
// Each field is nil when the corresponding header was missing or not an
// integer; nil means "no signal", not zero quota.
type RateLimitWindow struct {
	Limit     *int
	Remaining *int
	Reset     *int
}

// RateLimitInfo is a snapshot of the quota counters reported by the most
// recent API exchange. A group is nil when none of its headers were present.
type RateLimitInfo struct {
	General        *RateLimitWindow
	AccountSuccess *RateLimitWindow
}

// ParseRateLimit extracts the rate-limit snapshot from response headers.
// It returns nil when no rate-limit header was present at all, so callers
// can distinguish "no signal" from an exhausted quota.
func ParseRateLimit(h http.Header) *RateLimitInfo {
	general := parseWindow(h, HeaderRateLimitLimit, HeaderRateLimitRemaining, HeaderRateLimitReset)
	account := parseWindow(h, HeaderAccountSuccessLimit, HeaderAccountSuccessRemaining, HeaderAccountSuccessReset)

	if general == nil && account == nil {
		return nil
	}
	return &RateLimitInfo{General: general, AccountSuccess: account}
}

func parseWindow(h http.Header, limitKey, remainingKey, resetKey string) *RateLimitWindow {
	limit := headerInt(h, limitKey)
	remaining := headerInt(h, remainingKey)
	reset := headerInt(h, resetKey)

	if limit == nil && remaining == nil && reset == nil {
		return nil
	}
	return &RateLimitWindow{Limit: limit, Remaining: remaining, Reset: reset}
}

// headerInt parses a header value as a base-10 integer. Missing or
// non-numeric values yield nil rather than an error.
func headerInt(h http.Header, key string) *int {
	raw := h.Get(key)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &n
}
