// Package httpclient implements the resilient request core for the
// Bank Account Data API: bearer-token attachment, ordered interceptor
// chains, failure classification, retry with configurable backoff honoring
// server throttling hints, and rate-limit telemetry.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "go-bankdata"

	defaultMaxPayloadLogBytes = 2048
)

// Client executes authenticated requests against the API. Each instance
// owns its configured transport; there is no process-wide shared client.
type Client struct {
	baseURL              string
	httpClient           *nethttp.Client
	tokens               TokenSource
	retry                RetryConfig
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	defaultHeaders       map[string]string
	userAgent            string
	limiter              *rate.Limiter
	onRateLimit          func(RateLimitInfo)
	log                  zerolog.Logger
	logPayloads          bool
	maxPayloadLogBytes   int

	mu       sync.Mutex
	lastRate *RateLimitInfo
}

// New creates a Client from cfg. BaseURL is required; every other field
// falls back to a default.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("httpclient: base URL is required")
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = cfg.Retry.normalize()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &nethttp.Client{Timeout: timeout}
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	maxPayload := cfg.MaxPayloadLogBytes
	if maxPayload <= 0 {
		maxPayload = defaultMaxPayloadLogBytes
	}

	return &Client{
		baseURL:              strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:           httpClient,
		tokens:               cfg.Tokens,
		retry:                retry,
		requestInterceptors:  cfg.RequestInterceptors,
		responseInterceptors: cfg.ResponseInterceptors,
		defaultHeaders:       cfg.DefaultHeaders,
		userAgent:            userAgent,
		limiter:              cfg.Limiter,
		onRateLimit:          cfg.OnRateLimit,
		log:                  log,
		logPayloads:          cfg.LogPayloads,
		maxPayloadLogBytes:   maxPayload,
	}, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, nethttp.MethodGet, path, query, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, nethttp.MethodPost, path, nil, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, nethttp.MethodPut, path, nil, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, nethttp.MethodDelete, path, query, nil)
}

// LastRateLimit returns the rate-limit snapshot observed on the most
// recent exchange, successful or failed, or nil if none has completed.
// The snapshot is overwritten on every exchange, never merged.
func (c *Client) LastRateLimit() *RateLimitInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRate
}

// do runs the retry loop described by the client's retry policy. API-level
// failures (an HTTP response was received) are classified into APIError and
// retried when the status is in the retryable set; transport failures
// propagate unmodified and are never retried.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	target, err := c.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		result, apiErr, err := c.attempt(ctx, method, target, payload, attempt)
		if err != nil {
			return nil, err
		}
		if apiErr == nil {
			return result, nil
		}

		if attempt < c.retry.MaxRetries && c.retryable(apiErr.StatusCode) {
			delay := c.retryDelay(apiErr, attempt)
			c.log.Warn().
				Str("method", method).
				Str("url", target).
				Int("status", apiErr.StatusCode).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("retrying request")
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return nil, apiErr
	}
}

// attempt performs one exchange. It distinguishes three outcomes: decoded
// body on success, *APIError on an API-level failure, and a bare error for
// transport and local failures that must not enter the retry loop.
func (c *Client) attempt(ctx context.Context, method, target string, payload []byte, attempt int) (json.RawMessage, *APIError, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	for _, interceptor := range c.requestInterceptors {
		if err := interceptor(ctx, req); err != nil {
			return nil, nil, fmt.Errorf("request interceptor: %w", err)
		}
	}

	c.logRequest(req, attempt, payload)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Pure transport failure: no response to classify, no retry.
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read response body: %w", err)
	}

	elapsed := time.Since(start)
	c.logResponse(req, resp.StatusCode, elapsed, respBody)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		resp.Body = io.NopCloser(bytes.NewReader(respBody))
		for _, interceptor := range c.responseInterceptors {
			if err := interceptor(ctx, req, resp); err != nil {
				return nil, nil, fmt.Errorf("response interceptor: %w", err)
			}
		}
		c.recordRateLimit(resp.Header)
		return respBody, nil, nil
	}

	info := c.recordRateLimit(resp.Header)
	return nil, FromResponse(resp.StatusCode, respBody, info), nil
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := c.baseURL + path
	if _, err := url.Parse(target); err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", target, err)
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target, nil
}

func (c *Client) retryable(statusCode int) bool {
	for _, code := range c.retry.RetryableStatusCodes {
		if code == statusCode {
			return true
		}
	}
	return false
}

// retryDelay computes the sleep before the next attempt, preferring the
// server hint on throttled responses when the policy allows it. The hint
// is capped at MaxDelay like every computed delay.
func (c *Client) retryDelay(apiErr *APIError, attempt int) time.Duration {
	if c.retry.RespectRetryAfter && apiErr.StatusCode == nethttp.StatusTooManyRequests {
		if seconds, ok := apiErr.RetryAfter(); ok {
			hint := time.Duration(seconds) * time.Second
			if hint > c.retry.MaxDelay {
				hint = c.retry.MaxDelay
			}
			return hint
		}
	}
	return Backoff(attempt+1, c.retry.Backoff, c.retry.InitialDelay, c.retry.MaxDelay)
}

// recordRateLimit stores the snapshot parsed from the exchange, overwriting
// the previous one, and fires the configured callback when headers were
// present. Mirrors last-write-wins telemetry semantics.
func (c *Client) recordRateLimit(h nethttp.Header) *RateLimitInfo {
	info := ParseRateLimit(h)
	c.mu.Lock()
	c.lastRate = info
	c.mu.Unlock()
	if info != nil && c.onRateLimit != nil {
		c.onRateLimit(*info)
	}
	return info
}
