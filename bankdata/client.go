// Package bankdata is the SDK facade for the GoCardless Bank Account Data
// API. It wires configuration, the credential manager and the resilient
// request executor together and exposes the typed resource surface.
package bankdata

import (
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gaborage/go-bankdata/auth"
	"github.com/gaborage/go-bankdata/config"
	"github.com/gaborage/go-bankdata/httpclient"
)

// Client is the entry point of the SDK. All resource methods delegate to
// the shared executor, which owns authentication, retries and rate-limit
// telemetry.
type Client struct {
	http   *httpclient.Client
	tokens *auth.TokenManager
	log    zerolog.Logger

	Institutions *InstitutionsService
	Agreements   *AgreementsService
	Requisitions *RequisitionsService
	Accounts     *AccountsService
}

// Option customizes client construction beyond what the config file
// carries.
type Option func(*options)

type options struct {
	logger               *zerolog.Logger
	httpClient           *nethttp.Client
	requestInterceptors  []httpclient.RequestInterceptor
	responseInterceptors []httpclient.ResponseInterceptor
	limiter              *rate.Limiter
	onRateLimit          func(httpclient.RateLimitInfo)
}

// WithLogger replaces the logger built from the config's log section.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.logger = &log }
}

// WithHTTPClient substitutes the transport used by the executor and the
// credential manager.
func WithHTTPClient(hc *nethttp.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithRequestInterceptor appends a request interceptor; interceptors run
// in registration order.
func WithRequestInterceptor(ri httpclient.RequestInterceptor) Option {
	return func(o *options) { o.requestInterceptors = append(o.requestInterceptors, ri) }
}

// WithResponseInterceptor appends a response interceptor.
func WithResponseInterceptor(ri httpclient.ResponseInterceptor) Option {
	return func(o *options) { o.responseInterceptors = append(o.responseInterceptors, ri) }
}

// WithRateLimiter throttles outgoing attempts client-side.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithRateLimitCallback registers a callback fired once per exchange that
// carried rate-limit headers.
func WithRateLimitCallback(fn func(httpclient.RateLimitInfo)) Option {
	return func(o *options) { o.onRateLimit = fn }
}

// New builds a Client from cfg.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bankdata: config is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := newLogger(cfg.Log)
	if o.logger != nil {
		log = *o.logger
	}

	tokens, err := auth.NewTokenManager(auth.Config{
		BaseURL:    cfg.API.BaseURL,
		SecretID:   cfg.API.SecretID,
		SecretKey:  cfg.API.SecretKey,
		HTTPClient: o.httpClient,
		Logger:     &log,
	})
	if err != nil {
		return nil, err
	}

	retry := httpclient.RetryConfig{
		MaxRetries:           cfg.Retry.MaxRetries,
		RetryableStatusCodes: cfg.Retry.RetryableStatusCodes,
		Backoff:              httpclient.BackoffStrategy(cfg.Retry.Backoff),
		InitialDelay:         cfg.Retry.InitialDelay,
		MaxDelay:             cfg.Retry.MaxDelay,
		RespectRetryAfter:    cfg.Retry.RespectRetryAfter,
	}

	executor, err := httpclient.New(httpclient.Config{
		BaseURL:              cfg.API.BaseURL,
		Timeout:              cfg.API.Timeout,
		UserAgent:            cfg.API.UserAgent,
		Tokens:               tokens,
		RequestInterceptors:  o.requestInterceptors,
		ResponseInterceptors: o.responseInterceptors,
		Retry:                &retry,
		Limiter:              o.limiter,
		OnRateLimit:          o.onRateLimit,
		HTTPClient:           o.httpClient,
		Logger:               &log,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		http:   executor,
		tokens: tokens,
		log:    log,
	}
	c.Institutions = &InstitutionsService{http: executor}
	c.Agreements = &AgreementsService{http: executor}
	c.Requisitions = &RequisitionsService{http: executor}
	c.Accounts = &AccountsService{http: executor}

	return c, nil
}

// LastRateLimit exposes the executor's most recent rate-limit snapshot.
func (c *Client) LastRateLimit() *httpclient.RateLimitInfo {
	return c.http.LastRateLimit()
}

// ClearCredentials drops the stored token pair; the next request mints a
// fresh one.
func (c *Client) ClearCredentials() {
	c.tokens.Clear()
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger().Level(level)
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}

// decode unmarshals a raw API payload into T.
func decode[T any](raw json.RawMessage) (*T, error) {
	var out T
	if len(raw) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}
