package httpclient

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	bankdatatrace "github.com/gaborage/go-bankdata/trace"
)

const (
	// HeaderXRequestID is the standard header name for request tracing
	HeaderXRequestID = bankdatatrace.HeaderXRequestID
	// HeaderTraceParent is the W3C trace context header name
	HeaderTraceParent = bankdatatrace.HeaderTraceParent
)

// TokenSource supplies a valid bearer token for outgoing requests.
// Implementations are expected to mint or refresh credentials on demand;
// the auth package provides the production implementation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// RequestInterceptor is called before sending the request. Interceptors
// run strictly in registration order and may mutate the request in place;
// an error aborts the call without retrying.
type RequestInterceptor func(ctx context.Context, req *nethttp.Request) error

// ResponseInterceptor is called after a successful exchange, before the
// body is returned to the caller.
type ResponseInterceptor func(ctx context.Context, req *nethttp.Request, resp *nethttp.Response) error

// Retry policy defaults.
const (
	DefaultMaxRetries   = 2
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// RetryConfig controls the executor's retry loop.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt; zero
	// means every failure surfaces immediately.
	MaxRetries int
	// RetryableStatusCodes lists the HTTP statuses eligible for retry.
	RetryableStatusCodes []int
	// Backoff selects linear or exponential growth between attempts.
	Backoff BackoffStrategy
	// InitialDelay seeds the backoff calculation.
	InitialDelay time.Duration
	// MaxDelay caps every computed delay, including server hints.
	MaxDelay time.Duration
	// RespectRetryAfter honors the server's "try again in N seconds"
	// hint on 429 responses instead of the computed backoff.
	RespectRetryAfter bool
}

// DefaultRetryConfig returns the stock retry policy: up to two retries of
// 429 responses with linear backoff and server hints honored.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:           DefaultMaxRetries,
		RetryableStatusCodes: []int{nethttp.StatusTooManyRequests},
		Backoff:              BackoffLinear,
		InitialDelay:         DefaultInitialDelay,
		MaxDelay:             DefaultMaxDelay,
		RespectRetryAfter:    true,
	}
}

// normalize fills the fields a partial override left unset. MaxRetries,
// InitialDelay and RespectRetryAfter keep their zero values when given
// explicitly; zero is meaningful for all three.
func (r RetryConfig) normalize() RetryConfig {
	if r.RetryableStatusCodes == nil {
		r.RetryableStatusCodes = []int{nethttp.StatusTooManyRequests}
	}
	if r.Backoff == "" {
		r.Backoff = BackoffLinear
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = DefaultMaxDelay
	}
	return r
}

// Config holds the REST client configuration. The zero value of every
// optional field selects a sensible default; only BaseURL is required.
type Config struct {
	// BaseURL is the API origin, e.g. "https://bankaccountdata.gocardless.com".
	BaseURL string
	// Timeout bounds each HTTP exchange end to end.
	Timeout time.Duration
	// UserAgent overrides the default product identifier header.
	UserAgent string
	// DefaultHeaders are attached to every outgoing request before the
	// interceptor chain runs.
	DefaultHeaders map[string]string
	// Tokens supplies bearer credentials; nil sends unauthenticated requests.
	Tokens TokenSource
	// RequestInterceptors run in order on every outgoing request.
	RequestInterceptors []RequestInterceptor
	// ResponseInterceptors run in order on every successful response.
	ResponseInterceptors []ResponseInterceptor
	// Retry overrides the default retry policy; nil selects DefaultRetryConfig.
	Retry *RetryConfig
	// Limiter optionally throttles outgoing attempts client-side.
	Limiter *rate.Limiter
	// OnRateLimit is invoked synchronously once per exchange whenever the
	// response carried rate-limit headers, on success and failure alike.
	OnRateLimit func(RateLimitInfo)
	// HTTPClient overrides the owned transport; each Client instance gets
	// its own configured *http.Client, never a process-wide singleton.
	HTTPClient *nethttp.Client
	// Logger receives structured request/response logs; nil disables logging.
	Logger *zerolog.Logger
	// LogPayloads enables debug-level logging of request and response bodies.
	LogPayloads bool
	// MaxPayloadLogBytes caps the body bytes logged when LogPayloads is on.
	MaxPayloadLogBytes int
}

// NewRequestIDInterceptor creates a request interceptor that propagates the
// request ID from context, generating one when absent.
func NewRequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(HeaderXRequestID) == "" {
			req.Header.Set(HeaderXRequestID, bankdatatrace.EnsureRequestID(ctx))
		}
		return nil
	}
}

// NewTraceParentInterceptor creates a request interceptor that attaches a
// W3C traceparent header, preferring a value already carried by the context.
func NewTraceParentInterceptor() RequestInterceptor {
	return func(ctx context.Context, req *nethttp.Request) error {
		if req.Header.Get(HeaderTraceParent) != "" {
			return nil
		}
		if tp, ok := bankdatatrace.ParentFromContext(ctx); ok {
			req.Header.Set(HeaderTraceParent, tp)
			return nil
		}
		req.Header.Set(HeaderTraceParent, bankdatatrace.GenerateTraceParent())
		return nil
	}
}
