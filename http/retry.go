package http

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fwojciec/docsrs"
)

// Ensure RetryFetcher implements docsrs.Fetcher at compile time.
var _ docsrs.Fetcher = (*RetryFetcher)(nil)

// DefaultRetryDelays returns the backoff delays for fetch retries: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

// RetryFetcher wraps a Fetcher and retries temporary failures.
// Only *docsrs.FetchError values whose Temporary method reports true are
// retried; everything else is returned after the first attempt.
type RetryFetcher struct {
	next   docsrs.Fetcher
	delays []time.Duration
	logger *slog.Logger
}

// NewRetryFetcher creates a RetryFetcher making len(delays)+1 attempts,
// sleeping delays[i] before retry i+1. A nil delays slice uses
// DefaultRetryDelays. The logger, if non-nil, records each retry.
func NewRetryFetcher(next docsrs.Fetcher, delays []time.Duration, logger *slog.Logger) *RetryFetcher {
	if delays == nil {
		delays = DefaultRetryDelays()
	}
	return &RetryFetcher{next: next, delays: delays, logger: logger}
}

// Fetch calls the wrapped fetcher until it succeeds, fails permanently,
// the delays are exhausted or ctx is done.
func (f *RetryFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	maxAttempts := len(f.delays) + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		body, err := f.next.Fetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if !isTemporary(err) || attempt >= maxAttempts-1 {
			break
		}

		// Check context before sleeping
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if f.logger != nil {
			f.logger.Warn("fetch retry",
				"url", url,
				"attempt", attempt+2,
				"delay", f.delays[attempt],
				"err", err,
			)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delays[attempt]):
		}
	}

	return nil, lastErr
}

func isTemporary(err error) bool {
	var ferr *docsrs.FetchError
	if !errors.As(err, &ferr) {
		return false
	}
	if errors.Is(ferr, context.Canceled) {
		return false
	}
	return ferr.Temporary()
}
