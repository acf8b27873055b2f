// Package cache implements docsrs.LookupCache as a sharded in-memory map
// with single-flight refreshes.
package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docsrs"
	"golang.org/x/sync/singleflight"
)

// Ensure Cache implements docsrs.LookupCache at compile time.
var _ docsrs.LookupCache = (*Cache)(nil)

const (
	// DefaultTTL is how long a result is served without refreshing.
	DefaultTTL = time.Hour

	// DefaultShards is the number of independently locked partitions.
	DefaultShards = 16
)

// Stats reports cache counters since creation.
type Stats struct {
	Hits        int64 // fresh entries served
	Misses      int64 // calls that waited on a refresh
	Shared      int64 // calls that received another caller's refresh
	StaleServed int64 // failed refreshes answered with a prior entry
}

// Cache stores one LookupResult per package identifier.
type Cache struct {
	ttl    time.Duration
	now    func() time.Time
	shards []*shard

	hits        atomic.Int64
	misses      atomic.Int64
	shared      atomic.Int64
	staleServed atomic.Int64
}

// shard is an independently locked slice of the key space. Refreshes are
// deduplicated per shard so unrelated keys never wait on each other.
type shard struct {
	mu      sync.RWMutex
	entries map[docsrs.PackageIdentifier]*docsrs.LookupResult
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets the freshness window. Non-positive values are ignored.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock sets the time source used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithShards sets the number of shards. Values below one are ignored.
func WithShards(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shards = make([]*shard, n)
		}
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:    DefaultTTL,
		now:    time.Now,
		shards: make([]*shard, DefaultShards),
	}
	for _, opt := range opts {
		opt(c)
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[docsrs.PackageIdentifier]*docsrs.LookupResult)}
	}
	return c
}

// GetOrRefresh returns the cached result for id while it is fresh. Otherwise
// it calls refresh once for all concurrent callers of id. The refresh is
// detached from the caller's cancellation, so a caller that gives up does
// not prevent the result from being cached for the next one.
//
// When a refresh fails and a prior result exists, the prior result is
// returned with Stale set. Without a prior result the error is returned
// unchanged.
func (c *Cache) GetOrRefresh(ctx context.Context, id docsrs.PackageIdentifier, refresh docsrs.RefreshFunc) (*docsrs.LookupResult, error) {
	sh := c.shard(id)

	sh.mu.RLock()
	entry := sh.entries[id]
	sh.mu.RUnlock()

	if entry != nil && c.fresh(entry) {
		c.hits.Add(1)
		return entry.Clone(), nil
	}
	c.misses.Add(1)

	detached := context.WithoutCancel(ctx)
	ch := sh.group.DoChan(id.String(), func() (any, error) {
		// A flight that finished after our read may already have stored
		// a fresh entry.
		sh.mu.RLock()
		current := sh.entries[id]
		sh.mu.RUnlock()
		if current != nil && c.fresh(current) {
			return current, nil
		}
		return c.refresh(detached, sh, id, refresh)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*docsrs.LookupResult).Clone(), nil
	}
}

// refresh runs fn and stores its result. The returned result is owned by
// the cache and must be cloned before handing it out.
func (c *Cache) refresh(ctx context.Context, sh *shard, id docsrs.PackageIdentifier, fn docsrs.RefreshFunc) (*docsrs.LookupResult, error) {
	result, err := fn(ctx)
	if err == nil && result == nil {
		err = docsrs.Errorf(docsrs.EINTERNAL, "refresh of %s returned no result", id)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		sh.mu.RLock()
		prior := sh.entries[id]
		sh.mu.RUnlock()
		if prior == nil {
			return nil, err
		}

		c.staleServed.Add(1)
		stale := prior.Clone()
		stale.Stale = true
		return stale, nil
	}

	// Overwrite, never merge, so resources gone from the page disappear.
	stored := result.Clone()
	stored.Stale = false
	if stored.FetchedAt.IsZero() {
		stored.FetchedAt = c.now()
	}

	sh.mu.Lock()
	sh.entries[id] = stored
	sh.mu.Unlock()

	return stored, nil
}

// Invalidate evicts id and reports whether an entry was present.
func (c *Cache) Invalidate(id docsrs.PackageIdentifier) bool {
	sh := c.shard(id)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.entries[id]; !ok {
		return false
	}
	delete(sh.entries, id)
	return true
}

// Seed stores result unless a newer entry for the same package is present.
// Seeded entries expire relative to their own FetchedAt.
func (c *Cache) Seed(result *docsrs.LookupResult) bool {
	if result == nil || result.Package.Name == "" {
		return false
	}
	sh := c.shard(result.Package)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if existing, ok := sh.entries[result.Package]; ok && existing.FetchedAt.After(result.FetchedAt) {
		return false
	}
	stored := result.Clone()
	stored.Stale = false
	sh.entries[result.Package] = stored
	return true
}

// Len returns the number of cached entries, fresh or expired.
func (c *Cache) Len() int {
	var n int
	for _, sh := range c.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Shared:      c.shared.Load(),
		StaleServed: c.staleServed.Load(),
	}
}

func (c *Cache) fresh(entry *docsrs.LookupResult) bool {
	return c.now().Sub(entry.FetchedAt) < c.ttl
}

func (c *Cache) shard(id docsrs.PackageIdentifier) *shard {
	return c.shards[xxhash.Sum64String(id.String())%uint64(len(c.shards))]
}
