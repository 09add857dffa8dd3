package mpesa

import (
	"net/http"
	"time"
)

type Option func(*options)

type options struct {
	httpClient *http.Client
	tokenSkew  time.Duration
	now        func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokenSkew:  defaultTokenSkew,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTokenSkew sets how much earlier than advertised a token is treated as expired.
func WithTokenSkew(d time.Duration) Option {
	return func(o *options) { o.tokenSkew = d }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
