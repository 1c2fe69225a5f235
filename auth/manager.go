// Package auth owns the access/refresh credential pair for the Bank
// Account Data API. A single TokenManager decides when to mint a brand-new
// pair from secret credentials and when to exchange the refresh token for
// a fresh access token, coalescing concurrent callers into one in-flight
// network operation.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaborage/go-bankdata/httpclient"
)

const (
	tokenNewPath     = "/api/v2/token/new/"
	tokenRefreshPath = "/api/v2/token/refresh/"

	// defaultRefreshMargin is how long before access-token expiry a
	// refresh is triggered, so callers never receive a token about to die.
	defaultRefreshMargin = 60 * time.Second

	defaultTimeout = 30 * time.Second
)

// Config configures a TokenManager.
type Config struct {
	// BaseURL is the API origin hosting the token endpoints.
	BaseURL string
	// SecretID and SecretKey are the portal-issued secret pair used to
	// mint new credentials.
	SecretID  string
	SecretKey string
	// HTTPClient overrides the transport used for token calls. Token
	// endpoints are unauthenticated, so this is a plain client, not the
	// executor.
	HTTPClient *nethttp.Client
	// Logger receives token lifecycle events; nil disables logging.
	Logger *zerolog.Logger
	// RefreshMargin overrides the early-refresh window; zero keeps 60s.
	RefreshMargin time.Duration
}

// tokenPair is the stored credential pair with absolute expiry times.
type tokenPair struct {
	access           string
	accessExpiresAt  time.Time
	refresh          string
	refreshExpiresAt time.Time
}

// inflight is the single shared future for a mint or refresh that is
// currently executing. Waiters block on done; at most one inflight exists
// per manager at any time.
type inflight struct {
	done  chan struct{}
	token string
	err   error
}

func newInflight() *inflight {
	return &inflight{done: make(chan struct{})}
}

// settle publishes the result and releases every waiter. Must be called
// exactly once.
func (f *inflight) settle(token string, err error) {
	f.token = token
	f.err = err
	close(f.done)
}

// wait blocks until the operation settles or the caller's context ends.
// The underlying network call keeps running on cancellation; only this
// waiter gives up.
func (f *inflight) wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.token, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// TokenManager exclusively owns one credential pair. It implements
// httpclient.TokenSource.
type TokenManager struct {
	baseURL       string
	secretID      string
	secretKey     string
	httpClient    *nethttp.Client
	log           zerolog.Logger
	refreshMargin time.Duration
	now           func() time.Time

	mu     sync.Mutex
	tokens *tokenPair
	flight *inflight
}

// NewTokenManager creates a TokenManager from cfg.
func NewTokenManager(cfg Config) (*TokenManager, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("auth: base URL is required")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("auth: secret ID and secret key are required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &nethttp.Client{Timeout: defaultTimeout}
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}

	margin := cfg.RefreshMargin
	if margin == 0 {
		margin = defaultRefreshMargin
	}

	return &TokenManager{
		baseURL:       cfg.BaseURL,
		secretID:      cfg.SecretID,
		secretKey:     cfg.SecretKey,
		httpClient:    httpClient,
		log:           log,
		refreshMargin: margin,
		now:           time.Now,
	}, nil
}

// Token returns a valid access token, minting or refreshing as needed.
// Any number of concurrent callers that all require a mint or refresh
// share exactly one network call and receive the same result.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()

	if f := m.flight; f != nil {
		m.mu.Unlock()
		return f.wait(ctx)
	}

	now := m.now()
	switch {
	case m.tokens == nil:
		return m.mintLocked(ctx)
	case !now.Before(m.tokens.refreshExpiresAt):
		// Refresh token itself expired: discard the pair and start over.
		m.tokens = nil
		return m.mintLocked(ctx)
	case !now.Before(m.tokens.accessExpiresAt.Add(-m.refreshMargin)):
		return m.refreshLocked(ctx)
	default:
		token := m.tokens.access
		m.mu.Unlock()
		return token, nil
	}
}

// Clear unconditionally drops the stored pair and the in-flight marker.
// A network operation already underway is not cancelled; callers already
// awaiting it still receive its result when it settles.
func (m *TokenManager) Clear() {
	m.mu.Lock()
	m.tokens = nil
	m.flight = nil
	m.mu.Unlock()
}

func (m *TokenManager) mint(ctx context.Context) (string, error) {
	m.mu.Lock()
	return m.mintLocked(ctx)
}

// mintLocked issues a brand-new credential pair. The caller must hold
// m.mu; the lock is released before the network call.
func (m *TokenManager) mintLocked(ctx context.Context) (string, error) {
	if f := m.flight; f != nil {
		m.mu.Unlock()
		return f.wait(ctx)
	}

	f := newInflight()
	m.flight = f
	m.mu.Unlock()

	pair, err := m.issueTokens(ctx)

	m.mu.Lock()
	if err == nil {
		m.tokens = pair
	}
	if m.flight == f {
		m.flight = nil
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Debug().Err(err).Msg("token mint failed")
		f.settle("", err)
		return "", err
	}

	m.log.Debug().Time("access_expires_at", pair.accessExpiresAt).Msg("minted new token pair")
	f.settle(pair.access, nil)
	return pair.access, nil
}

// refreshLocked exchanges the stored refresh token for a new access token,
// leaving the refresh token untouched. On a 401 the refresh token is
// treated as dead and a full mint runs as fallback; the in-flight marker
// is cleared before re-entering mint, otherwise the fallback would await
// its own unresolved predecessor. The caller must hold m.mu.
func (m *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	if f := m.flight; f != nil {
		m.mu.Unlock()
		return f.wait(ctx)
	}
	if m.tokens == nil {
		return m.mintLocked(ctx)
	}

	refreshToken := m.tokens.refresh
	f := newInflight()
	m.flight = f
	m.mu.Unlock()

	access, expiresAt, err := m.refreshAccess(ctx, refreshToken)

	m.mu.Lock()
	if err == nil && m.tokens != nil {
		m.tokens.access = access
		m.tokens.accessExpiresAt = expiresAt
	}
	if m.flight == f {
		m.flight = nil
	}
	m.mu.Unlock()

	var apiErr *httpclient.APIError
	if err != nil && errors.As(err, &apiErr) && apiErr.StatusCode == nethttp.StatusUnauthorized {
		m.log.Debug().Msg("refresh token rejected, minting a new pair")
		token, mintErr := m.mint(ctx)
		f.settle(token, mintErr)
		return token, mintErr
	}

	if err != nil {
		m.log.Debug().Err(err).Msg("token refresh failed")
		f.settle("", err)
		return "", err
	}

	m.log.Debug().Time("access_expires_at", expiresAt).Msg("refreshed access token")
	f.settle(access, nil)
	return access, nil
}

// issueTokens POSTs the secret pair to the token-issue endpoint and
// converts the relative expiries into absolute timestamps.
func (m *TokenManager) issueTokens(ctx context.Context) (*tokenPair, error) {
	body := map[string]string{
		"secret_id":  m.secretID,
		"secret_key": m.secretKey,
	}

	var resp struct {
		Access         string  `json:"access"`
		AccessExpires  float64 `json:"access_expires"`
		Refresh        string  `json:"refresh"`
		RefreshExpires float64 `json:"refresh_expires"`
	}
	if err := m.postJSON(ctx, tokenNewPath, body, &resp); err != nil {
		return nil, err
	}

	now := m.now()
	return &tokenPair{
		access:           resp.Access,
		accessExpiresAt:  now.Add(secondsToDuration(resp.AccessExpires)),
		refresh:          resp.Refresh,
		refreshExpiresAt: now.Add(secondsToDuration(resp.RefreshExpires)),
	}, nil
}

// refreshAccess POSTs the refresh token and returns the new access token
// and its absolute expiry.
func (m *TokenManager) refreshAccess(ctx context.Context, refreshToken string) (string, time.Time, error) {
	body := map[string]string{"refresh": refreshToken}

	var resp struct {
		Access        string  `json:"access"`
		AccessExpires float64 `json:"access_expires"`
	}
	if err := m.postJSON(ctx, tokenRefreshPath, body, &resp); err != nil {
		return "", time.Time{}, err
	}

	return resp.Access, m.now().Add(secondsToDuration(resp.AccessExpires)), nil
}

// postJSON performs one unauthenticated POST against a token endpoint.
// Non-2xx responses are classified into *httpclient.APIError; transport
// failures propagate unmodified.
func (m *TokenManager) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal token request: %w", err)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, m.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.FromResponse(resp.StatusCode, respBody, httpclient.ParseRateLimit(resp.Header))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
