package httpx

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 2 << 20

	maxRedirects = 10
)

// DefaultUserAgents is the rotation pool used when Config.UserAgents is empty.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0",
}

type Config struct {
	Timeout      time.Duration
	UserAgents   []string
	MaxBodyBytes int64

	// RequestsPerSecond caps outbound requests across all callers of the
	// Fetcher. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Location returns the redirect target, if any.
func (r *Response) Location() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Location")
}

type Option func(*fetchOptions)

type fetchOptions struct {
	method string
	header http.Header
	follow bool
}

// WithMethod overrides GET. An empty method is ignored.
func WithMethod(method string) Option {
	return func(o *fetchOptions) {
		if method != "" {
			o.method = method
		}
	}
}

func WithHeader(key, value string) Option {
	return func(o *fetchOptions) { o.header.Set(key, value) }
}

func WithFollowRedirects() Option {
	return func(o *fetchOptions) { o.follow = true }
}

// Fetcher performs single bounded HTTP requests. It holds no per-request state.
type Fetcher struct {
	client  Doer
	cfg     Config
	limiter *rate.Limiter
	pick    func(n int) int
}

func NewFetcher(client Doer, cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	cfg.UserAgents = append([]string(nil), cfg.UserAgents...)

	f := &Fetcher{
		client: client,
		cfg:    cfg,
		pick:   rand.IntN,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return f
}

func (f *Fetcher) Timeout() time.Duration {
	return f.cfg.Timeout
}

func (f *Fetcher) userAgent() string {
	return f.cfg.UserAgents[f.pick(len(f.cfg.UserAgents))]
}

// Fetch issues one request bounded by the configured timeout. Errors are
// always *TimeoutError or *NetworkError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts ...Option) (*Response, error) {
	o := fetchOptions{method: http.MethodGet, header: http.Header{}}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			// Wait fails up front when the next token would land past the
			// deadline; the context itself is still live then.
			if ctx.Err() == nil {
				return nil, &TimeoutError{URL: rawURL, Err: err}
			}
			return nil, wrapErr(rawURL, err)
		}
	}

	target := rawURL
	for hop := 0; ; hop++ {
		resp, err := f.do(ctx, o, target)
		if err != nil {
			return nil, err
		}
		if !o.follow || resp.StatusCode < 300 || resp.StatusCode >= 400 || resp.Location() == "" {
			return resp, nil
		}
		if hop >= maxRedirects {
			return nil, &NetworkError{URL: rawURL, Err: fmt.Errorf("stopped after %d redirects", maxRedirects)}
		}
		next, err := resolveLocation(target, resp.Location())
		if err != nil {
			return nil, &NetworkError{URL: rawURL, Err: err}
		}
		target = next
	}
}

func (f *Fetcher) do(ctx context.Context, o fetchOptions, rawURL string) (*Response, error) {
	req, err := NewRequest(ctx, o.method, rawURL, nil, f.userAgent())
	if err != nil {
		return nil, &NetworkError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	for k, vs := range o.header {
		req.Header[k] = vs
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, wrapErr(rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, wrapErr(rawURL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        rawURL,
	}, nil
}

func resolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(l).String(), nil
}
