// Package lookup implements docsrs.LookupService by composing a fetcher,
// a page parser, the normalizer and a cache.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/fwojciec/docsrs"
)

// DefaultBaseURL is the documentation site packages are looked up on.
const DefaultBaseURL = "https://docs.rs"

// Ensure Service implements docsrs.LookupService at compile time.
var _ docsrs.LookupService = (*Service)(nil)

// Service answers lookups from the cache, fetching and parsing the
// package's documentation root when the cache has nothing fresh.
type Service struct {
	Fetcher  docsrs.Fetcher
	Resolver docsrs.Resolver    // optional; finds roots of libraries not named after their package
	Parser   docsrs.PageParser
	Cache    docsrs.LookupCache // nil disables caching
	Store    docsrs.ResultStore // optional snapshot persistence
	BaseURL  string             // defaults to DefaultBaseURL
	Logger   *slog.Logger       // optional
	Now      func() time.Time   // defaults to time.Now
}

// Lookup returns the resources documented for the requested package,
// optionally narrowed to one kind.
func (s *Service) Lookup(ctx context.Context, req docsrs.LookupRequest) (*docsrs.LookupResult, error) {
	id, err := docsrs.NewPackageIdentifier(req.Name, req.Version)
	if err != nil {
		return nil, err
	}
	if req.Kind != "" && !slices.Contains(docsrs.Kinds(), req.Kind) {
		return nil, docsrs.Errorf(docsrs.EINVALID, "unknown kind %q", req.Kind)
	}

	refresh := func(ctx context.Context) (*docsrs.LookupResult, error) {
		return s.fetch(ctx, id)
	}

	var result *docsrs.LookupResult
	if s.Cache == nil {
		result, err = refresh(ctx)
	} else {
		if req.Refresh {
			s.Cache.Invalidate(id)
		}
		result, err = s.Cache.GetOrRefresh(ctx, id, refresh)
	}
	if err != nil {
		return nil, err
	}

	// The cache holds unfiltered results so one entry serves every kind.
	return result.Filter(req.Kind), nil
}

// fetch builds a fresh result for id. Errors are mapped to application
// errors here so the cache and the transports only ever see those.
func (s *Service) fetch(ctx context.Context, id docsrs.PackageIdentifier) (*docsrs.LookupResult, error) {
	result, err := s.build(ctx, id)
	if err != nil {
		err = lookupError(ctx, id, err)
		if docsrs.ErrorCode(err) == docsrs.ENOTFOUND {
			s.forget(ctx, id)
		}
		return nil, err
	}

	if s.Store != nil {
		if err := s.Store.SaveResult(ctx, result); err != nil {
			s.logger().Warn("failed to save lookup snapshot", "package", id.String(), "err", err)
		}
	}
	return result, nil
}

func (s *Service) build(ctx context.Context, id docsrs.PackageIdentifier) (*docsrs.LookupResult, error) {
	docRoot, err := id.DocRoot(s.baseURL())
	if err != nil {
		return nil, err
	}

	page, err := s.Fetcher.Fetch(ctx, docRoot)
	if isNotFound(err) && s.Resolver != nil {
		docRoot, page, err = s.fetchRedirected(ctx, id, docRoot, err)
	}
	if err != nil {
		return nil, err
	}

	entries, err := s.Parser.Parse(page)
	if err != nil {
		return nil, err
	}

	resources, dropped := docsrs.Normalize(docRoot, entries)
	if dropped > 0 {
		s.logger().Debug("dropped documentation entries", "package", id.String(), "dropped", dropped)
	}

	return &docsrs.LookupResult{
		Package:   id,
		Resources: resources,
		SourceURL: docRoot,
		FetchedAt: s.now(),
		Dropped:   dropped,
	}, nil
}

// fetchRedirected retries a package whose library target is not named
// after it. docs.rs redirects the version URL to the real documentation
// root, which relative item links must be resolved against. notFound is
// returned when the redirect leads back to the root that was missing.
func (s *Service) fetchRedirected(ctx context.Context, id docsrs.PackageIdentifier, docRoot string, notFound error) (string, []byte, error) {
	crateURL, err := id.CrateURL(s.baseURL())
	if err != nil {
		return "", nil, err
	}
	root, err := s.Resolver.Resolve(ctx, crateURL)
	if err != nil {
		return "", nil, err
	}
	if root == docRoot || root == crateURL {
		return "", nil, notFound
	}

	s.logger().Debug("documentation root redirected", "package", id.String(), "root", root)
	page, err := s.Fetcher.Fetch(ctx, root)
	return root, page, err
}

// forget drops the snapshot of a package that no longer exists so a
// restart does not serve it again.
func (s *Service) forget(ctx context.Context, id docsrs.PackageIdentifier) {
	if s.Store == nil {
		return
	}
	err := s.Store.DeleteResult(ctx, id)
	if err != nil && docsrs.ErrorCode(err) != docsrs.ENOTFOUND {
		s.logger().Warn("failed to delete lookup snapshot", "package", id.String(), "err", err)
	}
}

func isNotFound(err error) bool {
	var ferr *docsrs.FetchError
	return errors.As(err, &ferr) && ferr.Kind == docsrs.FetchStatus && ferr.StatusCode == http.StatusNotFound
}

// lookupError collapses component failures into the application error
// codes callers branch on.
func lookupError(ctx context.Context, id docsrs.PackageIdentifier, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var appErr *docsrs.Error
	if errors.As(err, &appErr) {
		return err
	}

	var ferr *docsrs.FetchError
	if errors.As(err, &ferr) {
		switch {
		case ferr.Kind == docsrs.FetchTooLarge:
			return docsrs.Errorf(docsrs.ETOOLARGE, "documentation page for %s exceeds %d bytes", id, ferr.Limit)
		case ferr.Kind == docsrs.FetchStatus && (ferr.StatusCode == http.StatusNotFound || ferr.StatusCode == http.StatusGone):
			return docsrs.Errorf(docsrs.ENOTFOUND, "package %s not found", id)
		case ferr.Kind == docsrs.FetchStatus:
			return docsrs.Errorf(docsrs.EUNAVAILABLE, "documentation for %s unavailable: HTTP %d", id, ferr.StatusCode)
		case errors.Is(ferr, context.Canceled):
			return context.Canceled
		default:
			return docsrs.Errorf(docsrs.EUNAVAILABLE, "documentation for %s unavailable: %v", id, ferr.Err)
		}
	}

	var perr *docsrs.ParseError
	if errors.As(err, &perr) {
		if perr.Kind == docsrs.ParseNotFound {
			return docsrs.Errorf(docsrs.ENOTFOUND, "package %s not found", id)
		}
		return docsrs.Errorf(docsrs.ESTRUCTURE, "unexpected documentation page structure for %s: %s", id, perr.Message)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return docsrs.Errorf(docsrs.EINTERNAL, "lookup %s: %v", id, err)
}

func (s *Service) baseURL() string {
	if s.BaseURL == "" {
		return DefaultBaseURL
	}
	return s.BaseURL
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
