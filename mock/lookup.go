package mock

import (
	"context"

	"github.com/fwojciec/docsrs"
)

var _ docsrs.LookupService = (*LookupService)(nil)

// LookupService is a mock implementation of docsrs.LookupService.
type LookupService struct {
	LookupFn func(ctx context.Context, req docsrs.LookupRequest) (*docsrs.LookupResult, error)
}

func (s *LookupService) Lookup(ctx context.Context, req docsrs.LookupRequest) (*docsrs.LookupResult, error) {
	return s.LookupFn(ctx, req)
}

var _ docsrs.LookupCache = (*LookupCache)(nil)

// LookupCache is a mock implementation of docsrs.LookupCache.
type LookupCache struct {
	GetOrRefreshFn func(ctx context.Context, id docsrs.PackageIdentifier, refresh docsrs.RefreshFunc) (*docsrs.LookupResult, error)
	InvalidateFn   func(id docsrs.PackageIdentifier) bool
}

func (c *LookupCache) GetOrRefresh(ctx context.Context, id docsrs.PackageIdentifier, refresh docsrs.RefreshFunc) (*docsrs.LookupResult, error) {
	return c.GetOrRefreshFn(ctx, id, refresh)
}

func (c *LookupCache) Invalidate(id docsrs.PackageIdentifier) bool {
	return c.InvalidateFn(id)
}

var _ docsrs.ResultStore = (*ResultStore)(nil)

// ResultStore is a mock implementation of docsrs.ResultStore.
type ResultStore struct {
	SaveResultFn   func(ctx context.Context, result *docsrs.LookupResult) error
	FindResultsFn  func(ctx context.Context) ([]*docsrs.LookupResult, error)
	DeleteResultFn func(ctx context.Context, id docsrs.PackageIdentifier) error
}

func (s *ResultStore) SaveResult(ctx context.Context, result *docsrs.LookupResult) error {
	return s.SaveResultFn(ctx, result)
}

func (s *ResultStore) FindResults(ctx context.Context) ([]*docsrs.LookupResult, error) {
	return s.FindResultsFn(ctx)
}

func (s *ResultStore) DeleteResult(ctx context.Context, id docsrs.PackageIdentifier) error {
	return s.DeleteResultFn(ctx, id)
}
