package docsrs

import (
	"context"
	"fmt"
	"net/http"
)

// Fetcher retrieves raw page bytes from a URL.
// Implementations make exactly one attempt per call; retries are layered
// on top by decorators.
type Fetcher interface {
	// Fetch issues a GET for url and returns the response body.
	// Failures are reported as *FetchError.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver finds where a URL redirects to.
type Resolver interface {
	// Resolve issues a GET for url, follows redirects and returns the URL
	// the final response came from. Failures are reported as *FetchError.
	Resolve(ctx context.Context, url string) (string, error)
}

// DomainLimiter provides per-domain rate limiting for fetches.
type DomainLimiter interface {
	// Wait blocks until a request to domain is allowed.
	Wait(ctx context.Context, domain string) error
}

// FetchErrorKind classifies fetch failures.
type FetchErrorKind int

// Fetch failure kinds.
const (
	FetchNetwork FetchErrorKind = iota + 1
	FetchStatus
	FetchTooLarge
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchNetwork:
		return "network"
	case FetchStatus:
		return "status"
	case FetchTooLarge:
		return "too_large"
	}
	return "unknown"
}

// FetchError reports why a single fetch attempt failed.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int   // set for FetchStatus
	Limit      int64 // set for FetchTooLarge
	Err        error // set for FetchNetwork
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchStatus:
		return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
	case FetchTooLarge:
		return fmt.Sprintf("response body for %s exceeds %d bytes", e.URL, e.Limit)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether a later attempt may succeed: network failures,
// 5xx responses and 429 Too Many Requests.
func (e *FetchError) Temporary() bool {
	switch e.Kind {
	case FetchNetwork:
		return true
	case FetchStatus:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
