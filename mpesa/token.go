package mpesa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const defaultTokenSkew = 100 * time.Second

type cachedToken struct {
	value     string
	expiresAt time.Time
}

// TokenCache hands out Daraja OAuth tokens, fetching a new one only after the
// cached one has expired. The cached value and its expiry are swapped together.
type TokenCache struct {
	url    string
	key    string
	secret string
	client *http.Client
	skew   time.Duration
	now    func() time.Time

	current atomic.Pointer[cachedToken]
}

func NewTokenCache(baseURL, consumerKey, consumerSecret string, opts ...Option) *TokenCache {
	o := newOptions(opts)
	return &TokenCache{
		url:    strings.TrimRight(baseURL, "/") + "/oauth/v1/generate?grant_type=client_credentials",
		key:    consumerKey,
		secret: consumerSecret,
		client: o.httpClient,
		skew:   o.tokenSkew,
		now:    o.now,
	}
}

func (tc *TokenCache) Token(ctx context.Context) (string, error) {
	if t := tc.current.Load(); t != nil && tc.now().Before(t.expiresAt) {
		return t.value, nil
	}

	value, lifetime, err := tc.exchange(ctx)
	if err != nil {
		return "", err
	}

	if ttl := lifetime - tc.skew; ttl > 0 {
		tc.current.Store(&cachedToken{value: value, expiresAt: tc.now().Add(ttl)})
	}
	return value, nil
}

// Valid reports whether a token is cached and unexpired.
func (tc *TokenCache) Valid() bool {
	t := tc.current.Load()
	return t != nil && tc.now().Before(t.expiresAt)
}

type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   seconds `json:"expires_in"`
}

// seconds accepts both "3599" and 3599.
type seconds int64

func (s *seconds) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expires_in %q", raw)
	}
	*s = seconds(n)
	return nil
}

func (tc *TokenCache) exchange(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}
	req.SetBasicAuth(tc.key, tc.secret)

	resp, err := tc.client.Do(req)
	if err != nil {
		return "", 0, transportError(ErrUpstreamAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", 0, transportError(ErrUpstreamAuth, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("%w: http %d", ErrUpstreamAuth, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("%w: malformed body: %v", ErrUpstreamAuth, err)
	}
	if tr.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access_token", ErrUpstreamAuth)
	}

	return tr.AccessToken, time.Duration(tr.ExpiresIn) * time.Second, nil
}
