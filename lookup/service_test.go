package lookup_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/docsrs"
	"github.com/fwojciec/docsrs/cache"
	"github.com/fwojciec/docsrs/goquery"
	"github.com/fwojciec/docsrs/lookup"
	"github.com/fwojciec/docsrs/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const pkgPage = `<html><body>
<h2 id="structs">Structs</h2>
<dl class="item-table"><dt><a class="struct" href="struct.Foo.html">Foo</a></dt><dd>The foo.</dd></dl>
<h2 id="traits">Traits</h2>
<dl class="item-table"><dt><a class="trait" href="trait.Bar.html">Bar</a></dt><dd>The bar.</dd></dl>
<h2 id="enums">Enums</h2>
<dl class="item-table"><dt><a class="enum" href="enum.Baz.html">Baz</a></dt><dd>The baz.</dd></dl>
</body></html>`

func pageFetcher(page string, calls *atomic.Int32) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(ctx context.Context, url string) ([]byte, error) {
			calls.Add(1)
			return []byte(page), nil
		},
	}
}

func errFetcher(err error) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(ctx context.Context, url string) ([]byte, error) {
			return nil, err
		},
	}
}

func newService(f docsrs.Fetcher) *lookup.Service {
	return &lookup.Service{
		Fetcher: f,
		Parser:  goquery.NewParser(),
		Cache:   cache.New(),
		Now:     func() time.Time { return fixedNow },
	}
}

func TestService_Lookup(t *testing.T) {
	t.Parallel()

	t.Run("returns not found for missing package", func(t *testing.T) {
		t.Parallel()

		svc := newService(errFetcher(&docsrs.FetchError{Kind: docsrs.FetchStatus, URL: "https://docs.rs/nonexistent-pkg/latest/nonexistent_pkg/", StatusCode: 404}))

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "nonexistent-pkg"})

		assert.Equal(t, docsrs.ENOTFOUND, docsrs.ErrorCode(err))
	})

	t.Run("returns resources in document order", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		var fetched string
		svc := newService(&mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) ([]byte, error) {
				calls.Add(1)
				fetched = url
				return []byte(pkgPage), nil
			},
		})

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		require.NoError(t, err)
		assert.Equal(t, "https://docs.rs/pkg/latest/pkg/", fetched)
		assert.Equal(t, &docsrs.LookupResult{
			Package: docsrs.PackageIdentifier{Name: "pkg", Version: docsrs.LatestVersion},
			Resources: []docsrs.Resource{
				{Name: "Foo", Kind: docsrs.KindStruct, URL: "https://docs.rs/pkg/latest/pkg/struct.Foo.html", Description: "The foo."},
				{Name: "Bar", Kind: docsrs.KindTrait, URL: "https://docs.rs/pkg/latest/pkg/trait.Bar.html", Description: "The bar."},
				{Name: "Baz", Kind: docsrs.KindEnum, URL: "https://docs.rs/pkg/latest/pkg/enum.Baz.html", Description: "The baz."},
			},
			SourceURL: "https://docs.rs/pkg/latest/pkg/",
			FetchedAt: fixedNow,
		}, got)
	})

	t.Run("returns structural mismatch for page without entries", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := newService(pageFetcher(`<html><body><p>Nothing here</p></body></html>`, &calls))

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		assert.Nil(t, got)
		assert.Equal(t, docsrs.ESTRUCTURE, docsrs.ErrorCode(err))
	})

	t.Run("filters by kind", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := newService(pageFetcher(pkgPage, &calls))

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg", Kind: docsrs.KindTrait})

		require.NoError(t, err)
		require.Len(t, got.Resources, 1)
		assert.Equal(t, "Bar", got.Resources[0].Name)
	})

	t.Run("serves different kinds from one cached fetch", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := newService(pageFetcher(pkgPage, &calls))

		traits, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg", Kind: docsrs.KindTrait})
		require.NoError(t, err)
		all, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})
		require.NoError(t, err)
		fns, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg", Kind: docsrs.KindFunction})
		require.NoError(t, err)

		assert.Len(t, traits.Resources, 1)
		assert.Len(t, all.Resources, 3)
		assert.NotNil(t, fns.Resources)
		assert.Empty(t, fns.Resources)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("refetches when refresh is requested", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := newService(pageFetcher(pkgPage, &calls))

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})
		require.NoError(t, err)
		_, err = svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg", Refresh: true})
		require.NoError(t, err)

		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("looks up pinned versions with crate identifier", func(t *testing.T) {
		t.Parallel()

		var fetched string
		svc := newService(&mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) ([]byte, error) {
				fetched = url
				return []byte(pkgPage), nil
			},
		})
		svc.BaseURL = "http://localhost:8080"

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "serde-json", Version: "1.0.0"})

		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080/serde-json/1.0.0/serde_json/", fetched)
		assert.Equal(t, "http://localhost:8080/serde-json/1.0.0/serde_json/struct.Foo.html", got.Resources[0].URL)
	})

	t.Run("counts dropped entries", func(t *testing.T) {
		t.Parallel()

		svc := &lookup.Service{
			Fetcher: errFetcher(nil),
			Parser: &mock.PageParser{
				ParseFn: func(page []byte) ([]docsrs.RawEntry, error) {
					return []docsrs.RawEntry{
						{Name: "Foo", Kind: "struct", Href: "struct.Foo.html"},
						{Name: "", Kind: "struct", Href: "struct.Anon.html"},
						{Name: "Evil", Kind: "fn", Href: "javascript:alert(1)"},
					}, nil
				},
			},
		}

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		require.NoError(t, err)
		assert.Len(t, got.Resources, 1)
		assert.Equal(t, 2, got.Dropped)
	})

	t.Run("rejects invalid requests before fetching", func(t *testing.T) {
		t.Parallel()

		svc := newService(errFetcher(errors.New("must not fetch")))

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: ""})
		assert.Equal(t, docsrs.EINVALID, docsrs.ErrorCode(err))

		_, err = svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg", Kind: "widget"})
		assert.Equal(t, docsrs.EINVALID, docsrs.ErrorCode(err))
	})

	t.Run("saves snapshots to the store", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		var saved *docsrs.LookupResult
		svc := newService(pageFetcher(pkgPage, &calls))
		svc.Store = &mock.ResultStore{
			SaveResultFn: func(ctx context.Context, result *docsrs.LookupResult) error {
				saved = result
				return nil
			},
		}

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, got, saved)
	})

	t.Run("ignores store failures", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := newService(pageFetcher(pkgPage, &calls))
		svc.Store = &mock.ResultStore{
			SaveResultFn: func(ctx context.Context, result *docsrs.LookupResult) error {
				return errors.New("disk full")
			},
		}

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		require.NoError(t, err)
		assert.Len(t, got.Resources, 3)
	})

	t.Run("serves stale result when refetch fails", func(t *testing.T) {
		t.Parallel()

		now := fixedNow
		fail := false
		svc := &lookup.Service{
			Fetcher: &mock.Fetcher{
				FetchFn: func(ctx context.Context, url string) ([]byte, error) {
					if fail {
						return nil, &docsrs.FetchError{Kind: docsrs.FetchStatus, URL: url, StatusCode: 503}
					}
					return []byte(pkgPage), nil
				},
			},
			Parser: goquery.NewParser(),
			Cache:  cache.New(cache.WithTTL(time.Minute), cache.WithClock(func() time.Time { return now })),
			Now:    func() time.Time { return now },
		}

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})
		require.NoError(t, err)
		fail = true
		now = now.Add(time.Hour)

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg", Kind: docsrs.KindEnum})

		require.NoError(t, err)
		assert.True(t, got.Stale)
		assert.Equal(t, fixedNow, got.FetchedAt)
		require.Len(t, got.Resources, 1)
		assert.Equal(t, "Baz", got.Resources[0].Name)
	})

	t.Run("follows the version redirect when the library has another name", func(t *testing.T) {
		t.Parallel()

		var fetched []string
		svc := newService(&mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) ([]byte, error) {
				fetched = append(fetched, url)
				if url == "https://docs.rs/foo-bar/1.2.0/foolib/" {
					return []byte(pkgPage), nil
				}
				return nil, &docsrs.FetchError{Kind: docsrs.FetchStatus, URL: url, StatusCode: 404}
			},
		})
		var resolved string
		svc.Resolver = &mock.Resolver{
			ResolveFn: func(ctx context.Context, url string) (string, error) {
				resolved = url
				return "https://docs.rs/foo-bar/1.2.0/foolib/", nil
			},
		}

		got, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "foo-bar"})

		require.NoError(t, err)
		assert.Equal(t, "https://docs.rs/foo-bar/latest/", resolved)
		assert.Equal(t, []string{"https://docs.rs/foo-bar/latest/foo_bar/", "https://docs.rs/foo-bar/1.2.0/foolib/"}, fetched)
		assert.Equal(t, "https://docs.rs/foo-bar/1.2.0/foolib/", got.SourceURL)
		assert.Equal(t, "https://docs.rs/foo-bar/1.2.0/foolib/struct.Foo.html", got.Resources[0].URL)
	})

	t.Run("returns not found when the version URL is missing too", func(t *testing.T) {
		t.Parallel()

		svc := newService(errFetcher(&docsrs.FetchError{Kind: docsrs.FetchStatus, StatusCode: 404}))
		svc.Resolver = &mock.Resolver{
			ResolveFn: func(ctx context.Context, url string) (string, error) {
				return "", &docsrs.FetchError{Kind: docsrs.FetchStatus, URL: url, StatusCode: 404}
			},
		}

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "nonexistent-pkg"})

		assert.Equal(t, docsrs.ENOTFOUND, docsrs.ErrorCode(err))
	})

	t.Run("returns not found when the redirect leads back to the missing root", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := newService(&mock.Fetcher{
			FetchFn: func(ctx context.Context, url string) ([]byte, error) {
				calls.Add(1)
				return nil, &docsrs.FetchError{Kind: docsrs.FetchStatus, URL: url, StatusCode: 404}
			},
		})
		svc.Resolver = &mock.Resolver{
			ResolveFn: func(ctx context.Context, url string) (string, error) {
				return "https://docs.rs/pkg/latest/pkg/", nil
			},
		}

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		assert.Equal(t, docsrs.ENOTFOUND, docsrs.ErrorCode(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("drops the snapshot of a package that is gone", func(t *testing.T) {
		t.Parallel()

		var deleted docsrs.PackageIdentifier
		svc := newService(errFetcher(&docsrs.FetchError{Kind: docsrs.FetchStatus, StatusCode: 410}))
		svc.Store = &mock.ResultStore{
			DeleteResultFn: func(ctx context.Context, id docsrs.PackageIdentifier) error {
				deleted = id
				return nil
			},
		}

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		assert.Equal(t, docsrs.ENOTFOUND, docsrs.ErrorCode(err))
		assert.Equal(t, docsrs.PackageIdentifier{Name: "pkg", Version: docsrs.LatestVersion}, deleted)
	})

	t.Run("keeps the snapshot when docs are only unavailable", func(t *testing.T) {
		t.Parallel()

		svc := newService(errFetcher(&docsrs.FetchError{Kind: docsrs.FetchStatus, StatusCode: 503}))
		svc.Store = &mock.ResultStore{
			DeleteResultFn: func(ctx context.Context, id docsrs.PackageIdentifier) error {
				t.Error("snapshot must not be deleted")
				return nil
			},
		}

		_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

		assert.Equal(t, docsrs.EUNAVAILABLE, docsrs.ErrorCode(err))
	})

	t.Run("works without a cache", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		svc := newService(pageFetcher(pkgPage, &calls))
		svc.Cache = nil

		for range 2 {
			_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})
			require.NoError(t, err)
		}
		assert.Equal(t, int32(2), calls.Load())
	})
}

func TestService_Lookup_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fetchErr error
		parseErr error
		want     string
	}{
		{
			name:     "gone status is not found",
			fetchErr: &docsrs.FetchError{Kind: docsrs.FetchStatus, StatusCode: 410},
			want:     docsrs.ENOTFOUND,
		},
		{
			name:     "server error is unavailable",
			fetchErr: &docsrs.FetchError{Kind: docsrs.FetchStatus, StatusCode: 503},
			want:     docsrs.EUNAVAILABLE,
		},
		{
			name:     "forbidden is unavailable",
			fetchErr: &docsrs.FetchError{Kind: docsrs.FetchStatus, StatusCode: 403},
			want:     docsrs.EUNAVAILABLE,
		},
		{
			name:     "network failure is unavailable",
			fetchErr: &docsrs.FetchError{Kind: docsrs.FetchNetwork, Err: errors.New("connection refused")},
			want:     docsrs.EUNAVAILABLE,
		},
		{
			name:     "oversized body is size exceeded",
			fetchErr: &docsrs.FetchError{Kind: docsrs.FetchTooLarge, Limit: 10},
			want:     docsrs.ETOOLARGE,
		},
		{
			name:     "not found page is not found",
			parseErr: &docsrs.ParseError{Kind: docsrs.ParseNotFound, Message: "package does not exist"},
			want:     docsrs.ENOTFOUND,
		},
		{
			name:     "malformed page is structural mismatch",
			parseErr: &docsrs.ParseError{Kind: docsrs.ParseMalformed, Message: "bad html"},
			want:     docsrs.ESTRUCTURE,
		},
		{
			name:     "application errors pass through",
			fetchErr: docsrs.Errorf(docsrs.EINVALID, "bad url"),
			want:     docsrs.EINVALID,
		},
		{
			name:     "unknown errors are internal",
			fetchErr: errors.New("boom"),
			want:     docsrs.EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &lookup.Service{
				Fetcher: &mock.Fetcher{
					FetchFn: func(ctx context.Context, url string) ([]byte, error) {
						if tt.fetchErr != nil {
							return nil, tt.fetchErr
						}
						return []byte(pkgPage), nil
					},
				},
				Parser: &mock.PageParser{
					ParseFn: func(page []byte) ([]docsrs.RawEntry, error) {
						return nil, tt.parseErr
					},
				},
			}

			_, err := svc.Lookup(context.Background(), docsrs.LookupRequest{Name: "pkg"})

			require.Error(t, err)
			assert.Equal(t, tt.want, docsrs.ErrorCode(err))
		})
	}

	t.Run("caller cancellation passes through", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		svc := &lookup.Service{
			Fetcher: errFetcher(&docsrs.FetchError{Kind: docsrs.FetchNetwork, Err: context.Canceled}),
			Parser:  goquery.NewParser(),
		}

		_, err := svc.Lookup(ctx, docsrs.LookupRequest{Name: "pkg"})

		assert.ErrorIs(t, err, context.Canceled)
	})
}
