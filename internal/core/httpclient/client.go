// Package httpclient configures the HTTP client used for GeoServer WFS and
// legend requests.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const defaultUserAgent = "geoview"

type options struct {
	timeout   time.Duration
	userAgent string
	maxIdle   int
}

type Option func(*options)

// WithTimeout sets the overall per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent sent upstream.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithMaxIdlePerHost sizes the keep-alive pool. Query fan-out opens one
// connection per layer page in flight.
func WithMaxIdlePerHost(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIdle = n
		}
	}
}

// NewOutbound returns a pooled client for upstream map services.
func NewOutbound(opts ...Option) *http.Client {
	o := options{timeout: 30 * time.Second, userAgent: defaultUserAgent, maxIdle: 64}
	for _, fn := range opts {
		fn(&o)
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          o.maxIdle * 2,
		MaxIdleConnsPerHost:   o.maxIdle,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: &userAgentTransport{next: transport, ua: o.userAgent},
		Timeout:   o.timeout,
	}
}

type userAgentTransport struct {
	next http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(r)
	}
	r2 := r.Clone(r.Context())
	r2.Header.Set("User-Agent", t.ua)
	return t.next.RoundTrip(r2)
}
