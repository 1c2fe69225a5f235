package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testToken = "test-access-token"

// staticTokens is a TokenSource returning a fixed token.
type staticTokens string

func (s staticTokens) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// failingTokens is a TokenSource that always fails.
type failingTokens struct{}

func (failingTokens) Token(_ context.Context) (string, error) {
	return "", errors.New("no credentials")
}

// scripted is one canned response served in sequence.
type scripted struct {
	status  int
	body    string
	headers map[string]string
}

// newScriptedServer serves the given responses in order, repeating the
// last one, and counts the calls it received.
func newScriptedServer(t *testing.T, script []scripted) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(calls.Add(1)) - 1
		if idx >= len(script) {
			idx = len(script) - 1
		}
		resp := script[idx]
		for k, v := range resp.headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.status)
		fmt.Fprint(w, resp.body)
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func newTestClient(t *testing.T, baseURL string, retry *RetryConfig, opts ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL: baseURL,
		Tokens:  staticTokens(testToken),
		Retry:   retry,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := New(cfg)
	require.NoError(t, err)
	return client
}

func fastRetry(maxRetries int, codes ...int) *RetryConfig {
	if codes == nil {
		codes = []int{http.StatusTooManyRequests}
	}
	return &RetryConfig{
		MaxRetries:           maxRetries,
		RetryableStatusCodes: codes,
		Backoff:              BackoffLinear,
		InitialDelay:         time.Millisecond,
		MaxDelay:             50 * time.Millisecond,
		RespectRetryAfter:    true,
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{
		{status: 429, body: `{"summary":"Rate limit exceeded","detail":"slow down"}`},
		{status: 429, body: `{"summary":"Rate limit exceeded","detail":"slow down"}`},
		{status: 200, body: `{"id":"acc-1"}`},
	})

	client := newTestClient(t, srv.URL, fastRetry(2))

	raw, err := client.Get(context.Background(), "/api/v2/accounts/acc-1/", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"acc-1"}`, string(raw))
	assert.Equal(t, int64(3), calls.Load())
}

func TestClientDoesNotRetryNonRetryable(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{
		{status: 404, body: `{"summary":"Account ID not found","detail":"nope"}`},
	})

	client := newTestClient(t, srv.URL, fastRetry(2))

	_, err := client.Get(context.Background(), "/api/v2/accounts/missing/", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
	assert.Equal(t, CodeAccountNotFound, apiErr.Code)
	assert.Equal(t, int64(1), calls.Load())
}

func TestClientExhaustsRetries(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{
		{status: 429, body: `{"summary":"Rate limit exceeded","detail":"slow down"}`},
	})

	client := newTestClient(t, srv.URL, fastRetry(2))

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeRateLimitExceeded, apiErr.Code)
	assert.Equal(t, int64(3), calls.Load(), "maxRetries=2 means three total attempts")
}

func TestClientZeroMaxRetriesFailsImmediately(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{
		{status: 429, body: `{"summary":"Rate limit exceeded","detail":"try again in 60 seconds"}`},
	})

	client := newTestClient(t, srv.URL, fastRetry(0))

	start := time.Now()
	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, int64(1), calls.Load())
	assert.Less(t, time.Since(start), time.Second, "no sleep before surfacing the error")
}

func TestClientRespectsRetryAfterCappedAtMaxDelay(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{
		{status: 429, body: `{"summary":"Rate limit exceeded","detail":"Please try again in 60 seconds"}`},
		{status: 200, body: `{}`},
	})

	retry := fastRetry(1)
	retry.MaxDelay = 50 * time.Millisecond
	client := newTestClient(t, srv.URL, retry)

	start := time.Now()
	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 5*time.Second, "hint must be capped, not honored verbatim")
}

func TestClientIgnoresRetryAfterWhenDisabled(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{
		{status: 429, body: `{"summary":"Rate limit exceeded","detail":"Please try again in 60 seconds"}`},
		{status: 200, body: `{}`},
	})

	retry := fastRetry(1)
	retry.RespectRetryAfter = false
	client := newTestClient(t, srv.URL, retry)

	start := time.Now()
	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.Less(t, time.Since(start), time.Second, "computed backoff applies, not the 60s hint")
}

func TestClientTransportErrorPropagatesUnclassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from now on

	client := newTestClient(t, srv.URL, fastRetry(2))

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.Error(t, err)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures must not be classified")
}

func TestClientTokenSourceErrorPropagates(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{{status: 200, body: `{}`}})

	client := newTestClient(t, srv.URL, fastRetry(2), func(cfg *Config) {
		cfg.Tokens = failingTokens{}
	})

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.Error(t, err)
	assert.Equal(t, int64(0), calls.Load())
}

func TestClientAttachesBearerAndDefaultHeaders(t *testing.T) {
	var gotAuth, gotUA, gotCustom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		gotCustom = r.Header.Get("X-Custom")
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, nil, func(cfg *Config) {
		cfg.DefaultHeaders = map[string]string{"X-Custom": "yes"}
		cfg.UserAgent = "bankdata-test/1.0"
	})

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+testToken, gotAuth)
	assert.Equal(t, "bankdata-test/1.0", gotUA)
	assert.Equal(t, "yes", gotCustom)
}

func TestRequestInterceptorsRunInOrder(t *testing.T) {
	srv, _ := newScriptedServer(t, []scripted{{status: 200, body: `{}`}})

	var order []string
	client := newTestClient(t, srv.URL, nil, func(cfg *Config) {
		cfg.RequestInterceptors = []RequestInterceptor{
			func(_ context.Context, req *http.Request) error {
				order = append(order, "first")
				req.Header.Set("X-Stage", "first")
				return nil
			},
			func(_ context.Context, req *http.Request) error {
				order = append(order, "second")
				// Sees the previous interceptor's mutation.
				assert.Equal(t, "first", req.Header.Get("X-Stage"))
				return nil
			},
		}
	})

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRequestInterceptorErrorAbortsWithoutRetry(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{{status: 200, body: `{}`}})

	client := newTestClient(t, srv.URL, fastRetry(2), func(cfg *Config) {
		cfg.RequestInterceptors = []RequestInterceptor{
			func(_ context.Context, _ *http.Request) error {
				return errors.New("interceptor exploded")
			},
		}
	})

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interceptor exploded")
	assert.Equal(t, int64(0), calls.Load())
}

func TestResponseInterceptorSeesSuccessfulResponse(t *testing.T) {
	srv, _ := newScriptedServer(t, []scripted{{status: 200, body: `{"ok":true}`}})

	var seenStatus int
	client := newTestClient(t, srv.URL, nil, func(cfg *Config) {
		cfg.ResponseInterceptors = []ResponseInterceptor{
			func(_ context.Context, _ *http.Request, resp *http.Response) error {
				seenStatus = resp.StatusCode
				return nil
			},
		}
	})

	raw, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.NoError(t, err)
	assert.Equal(t, 200, seenStatus)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestRequestIDInterceptorAttachesHeader(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(HeaderXRequestID)
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, nil, func(cfg *Config) {
		cfg.RequestInterceptors = []RequestInterceptor{NewRequestIDInterceptor()}
	})

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, gotID)
}

func TestLastRateLimit(t *testing.T) {
	srv, _ := newScriptedServer(t, []scripted{
		{
			status: 429,
			body:   `{"summary":"Rate limit exceeded","detail":"slow down"}`,
			headers: map[string]string{
				"x-ratelimit-limit":     "1000",
				"x-ratelimit-remaining": "0",
			},
		},
	})

	client := newTestClient(t, srv.URL, fastRetry(0))

	assert.Nil(t, client.LastRateLimit(), "no snapshot before any call")

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.Error(t, err)

	info := client.LastRateLimit()
	require.NotNil(t, info, "failed exchanges still record telemetry")
	require.NotNil(t, info.General)
	assert.Equal(t, 1000, *info.General.Limit)
	assert.Equal(t, 0, *info.General.Remaining)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.NotNil(t, apiErr.RateLimit)
	assert.Equal(t, 0, *apiErr.RateLimit.General.Remaining)
}

func TestRateLimitCallback(t *testing.T) {
	srv, _ := newScriptedServer(t, []scripted{
		{status: 200, body: `{}`, headers: map[string]string{"x-ratelimit-remaining": "95"}},
		{status: 200, body: `{}`},
	})

	var snapshots []RateLimitInfo
	client := newTestClient(t, srv.URL, nil, func(cfg *Config) {
		cfg.OnRateLimit = func(info RateLimitInfo) {
			snapshots = append(snapshots, info)
		}
	})

	_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.NoError(t, err)
	_, err = client.Get(context.Background(), "/api/v2/accounts/", nil)
	require.NoError(t, err)

	require.Len(t, snapshots, 1, "callback fires only when headers were present")
	assert.Equal(t, 95, *snapshots[0].General.Remaining)
}

func TestClientContextCancelDuringBackoff(t *testing.T) {
	srv, _ := newScriptedServer(t, []scripted{
		{status: 429, body: `{"summary":"Rate limit exceeded","detail":"slow down"}`},
	})

	retry := fastRetry(2)
	retry.InitialDelay = 5 * time.Second
	retry.MaxDelay = 10 * time.Second
	client := newTestClient(t, srv.URL, retry)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Get(ctx, "/api/v2/accounts/", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientPostSendsJSONBody(t *testing.T) {
	var gotBody map[string]any
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"req-1"}`)
	}))
	t.Cleanup(srv.Close)

	client := newTestClient(t, srv.URL, nil)

	raw, err := client.Post(context.Background(), "/api/v2/requisitions/", map[string]string{"redirect": "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "https://example.com", gotBody["redirect"])
	assert.JSONEq(t, `{"id":"req-1"}`, string(raw))
}

func TestClientConcurrentRequests(t *testing.T) {
	srv, calls := newScriptedServer(t, []scripted{{status: 200, body: `{}`}})

	client := newTestClient(t, srv.URL, nil)

	var g errgroup.Group
	for range 10 {
		g.Go(func() error {
			_, err := client.Get(context.Background(), "/api/v2/accounts/", nil)
			return err
		})
	}

	require.NoError(t, g.Wait())
	assert.Equal(t, int64(10), calls.Load())
}
