package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func tokenServer(t *testing.T, calls *int32, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenCache_ReusesTokenWithinLifetime(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"tok-1","expires_in":"3600"}`)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	tc := NewTokenCache(srv.URL, "key", "secret", WithClock(clock.Now))

	tok, err := tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	clock.Advance(3499 * time.Second)
	tok, err = tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, tc.Valid())
}

func TestTokenCache_RefreshesAfterExpiry(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"tok","expires_in":3600}`)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	tc := NewTokenCache(srv.URL, "key", "secret", WithClock(clock.Now))

	_, err := tc.Token(context.Background())
	require.NoError(t, err)

	clock.Advance(3500 * time.Second)
	assert.False(t, tc.Valid())

	_, err = tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_ShortLifetimeIsNotCached(t *testing.T) {
	var calls int32
	srv := tokenServer(t, &calls, http.StatusOK, `{"access_token":"tok","expires_in":"60"}`)
	tc := NewTokenCache(srv.URL, "key", "secret")

	for i := 0; i < 2; i++ {
		_, err := tc.Token(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"non 2xx", http.StatusUnauthorized, `{"errorMessage":"Invalid credentials"}`},
		{"malformed body", http.StatusOK, `not json`},
		{"missing token", http.StatusOK, `{"expires_in":"3599"}`},
		{"bad lifetime", http.StatusOK, `{"access_token":"tok","expires_in":"soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := tokenServer(t, &calls, tt.status, tt.body)
			tc := NewTokenCache(srv.URL, "key", "secret")

			_, err := tc.Token(context.Background())
			assert.ErrorIs(t, err, ErrUpstreamAuth)
			assert.False(t, tc.Valid())
		})
	}
}

func TestTokenCache_FailureKeepsStaleEntry(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3600"})
	}))
	defer srv.Close()

	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	tc := NewTokenCache(srv.URL, "key", "secret", WithClock(clock.Now))
	_, err := tc.Token(context.Background())
	require.NoError(t, err)
	stale := tc.current.Load()

	clock.Advance(time.Hour)
	fail.Store(true)
	_, err = tc.Token(context.Background())
	require.ErrorIs(t, err, ErrUpstreamAuth)
	assert.Same(t, stale, tc.current.Load())

	fail.Store(false)
	tok, err := tc.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
}

func TestTokenCache_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tc := NewTokenCache(srv.URL, "key", "secret", WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := tc.Token(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
}
