package mock

import (
	"context"

	"github.com/fwojciec/docsrs"
)

var _ docsrs.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of docsrs.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) ([]byte, error)
}

func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.FetchFn(ctx, url)
}

var _ docsrs.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of docsrs.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}

var _ docsrs.Resolver = (*Resolver)(nil)

// Resolver is a mock implementation of docsrs.Resolver.
type Resolver struct {
	ResolveFn func(ctx context.Context, url string) (string, error)
}

func (r *Resolver) Resolve(ctx context.Context, url string) (string, error) {
	return r.ResolveFn(ctx, url)
}
