// Package http provides an HTTP-based implementation of docsrs.Fetcher
// for fetching documentation pages, plus retry and rate-limit helpers.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fwojciec/docsrs"
)

// DefaultFetchTimeout is the default timeout for HTTP requests.
const DefaultFetchTimeout = 10 * time.Second

// DefaultMaxBodySize is the default response body ceiling (10 MiB).
const DefaultMaxBodySize int64 = 10 << 20

// DefaultUserAgent identifies the fetcher to the documentation site.
const DefaultUserAgent = "docsrs-mcp (+https://github.com/fwojciec/docsrs)"

// Ensure Fetcher implements docsrs.Fetcher and docsrs.Resolver at compile time.
var (
	_ docsrs.Fetcher  = (*Fetcher)(nil)
	_ docsrs.Resolver = (*Fetcher)(nil)
)

// Fetcher retrieves documentation pages using HTTP requests.
// Each call makes a single attempt; see RetryFetcher for retries.
type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
	limiter     docsrs.DomainLimiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for HTTP requests.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize sets the largest response body the fetcher accepts.
// Defaults to DefaultMaxBodySize if not specified.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithRateLimiter makes the fetcher wait on limiter before each request.
func WithRateLimiter(l docsrs.DomainLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		maxBodySize: DefaultMaxBodySize,
		userAgent:   DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{
		Timeout: f.timeout,
	}

	return f
}

// Fetch retrieves the body of the page at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Read one byte past the ceiling to tell "exactly at" from "over".
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &docsrs.FetchError{Kind: docsrs.FetchNetwork, URL: rawURL, Err: unwrapURLError(err)}
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, &docsrs.FetchError{Kind: docsrs.FetchTooLarge, URL: rawURL, Limit: f.maxBodySize}
	}

	return body, nil
}

// Resolve follows redirects from rawURL and returns the URL of the page
// that was finally served. The body is discarded.
func (f *Fetcher) Resolve(ctx context.Context, rawURL string) (string, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resp.Request.URL.String(), nil
}

// get issues a GET for rawURL and returns a 2xx response whose body the
// caller must close.
func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &docsrs.FetchError{Kind: docsrs.FetchNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, req.URL.Host); err != nil {
			return nil, &docsrs.FetchError{Kind: docsrs.FetchNetwork, URL: rawURL, Err: err}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &docsrs.FetchError{Kind: docsrs.FetchNetwork, URL: rawURL, Err: unwrapURLError(err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &docsrs.FetchError{Kind: docsrs.FetchStatus, URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// unwrapURLError strips the *url.Error wrapper added by http.Client so the
// FetchError message does not repeat the URL.
func unwrapURLError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
