// Package querycache is the per-session cache of backend reads. It owns
// staleness, refetching, de-duplication of concurrent fetches, cancellation
// and the mutation lifecycle used for optimistic updates.
package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"trazio/internal/models"
	"trazio/internal/observability"

	"golang.org/x/sync/singleflight"
)

// Key identifies a query as a list of segments, e.g. Key{"posts", "feed", "1"}.
type Key []string

// String joins the segments; it is the identity used for de-duplication.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether every segment of prefix matches the head of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, s := range prefix {
		if k[i] != s {
			return false
		}
	}
	return true
}

type entry struct {
	key         Key
	data        any
	hasData     bool
	updatedAt   time.Time
	invalidated bool
	// gen changes whenever in-flight fetches of the entry are cancelled.
	gen    uint64
	cancel context.CancelFunc
}

// Options configures a Cache.
type Options struct {
	StaleTime time.Duration
	Store     Store
}

// Cache holds query results for one session.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	group     singleflight.Group
	staleTime time.Duration
	store     Store
	namespace string
	now       func() time.Time
}

// New creates an empty cache. A nil Store disables persistence.
func New(opts Options) *Cache {
	store := opts.Store
	if store == nil {
		store = MemoryStore{}
	}
	return &Cache{
		entries:   make(map[string]*entry),
		staleTime: opts.StaleTime,
		store:     store,
		now:       time.Now,
	}
}

// SetNamespace scopes the persistent store to a user. An empty namespace
// disables persistence.
func (c *Cache) SetNamespace(ns string) {
	c.mu.Lock()
	c.namespace = ns
	c.mu.Unlock()
}

func (c *Cache) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	return e
}

func (c *Cache) freshLocked(e *entry) bool {
	return e.hasData && !e.invalidated && c.now().Sub(e.updatedAt) < c.staleTime
}

// Query returns the cached value for key when it is fresh, and otherwise runs
// fetch. Concurrent calls for one key share a single fetch. A fetch that is
// cancelled through CancelQueries never writes to the cache; its callers get
// the value cached at that point, or ErrCancelled when there is none.
func Query[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	id := key.String()

	c.mu.Lock()
	e := c.entryLocked(key)
	if c.freshLocked(e) {
		data := e.data
		c.mu.Unlock()
		observability.QueryCacheEvents.WithLabelValues("hit").Inc()
		return cast[T](key, data)
	}
	ns := c.namespace
	persisted := !e.hasData && !e.invalidated && ns != ""
	c.mu.Unlock()

	if persisted {
		var v T
		found, err := c.store.Get(ctx, ns, key, &v)
		if err != nil {
			observability.Logger.WarnContext(ctx, "query store read failed",
				slog.String("key", id), slog.String("error", err.Error()))
		}
		if found {
			observability.QueryCacheEvents.WithLabelValues("store_hit").Inc()
			c.mu.Lock()
			if !e.hasData {
				e.data, e.hasData, e.updatedAt = v, true, c.now()
			}
			c.mu.Unlock()
			return v, nil
		}
	}
	observability.QueryCacheEvents.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(id, func() (any, error) {
		return c.fetch(ctx, key, func(fctx context.Context) (any, error) { return fetch(fctx) })
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return cast[T](key, res.Val)
	}
}

func (c *Cache) fetch(ctx context.Context, key Key, fn func(context.Context) (any, error)) (any, error) {
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	c.mu.Lock()
	e := c.entryLocked(key)
	gen := e.gen
	e.cancel = cancel
	c.mu.Unlock()

	observability.QueryCacheEvents.WithLabelValues("fetch").Inc()
	v, err := fn(fctx)

	c.mu.Lock()
	if e.gen != gen {
		data, has := e.data, e.hasData
		c.mu.Unlock()
		observability.QueryCacheEvents.WithLabelValues("cancelled").Inc()
		if has {
			return data, nil
		}
		return nil, models.ErrCancelled
	}
	e.cancel = nil
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	e.data, e.hasData, e.updatedAt, e.invalidated = v, true, c.now(), false
	ns := c.namespace
	c.mu.Unlock()

	if ns != "" {
		if err := c.store.Set(ctx, ns, key, v); err != nil {
			observability.Logger.WarnContext(ctx, "query store write failed",
				slog.String("key", key.String()), slog.String("error", err.Error()))
		}
	}
	return v, nil
}

func cast[T any](key Key, v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, models.NewInternalError(fmt.Errorf("query %s holds %T, not %T", key, v, zero))
	}
	return t, nil
}

// GetQueryData returns the cached value for key without fetching.
func GetQueryData[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return zero, false
	}
	t, ok := e.data.(T)
	return t, ok
}

// SetQueryData writes v as the fresh value of key.
func (c *Cache) SetQueryData(key Key, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	e.data, e.hasData, e.updatedAt, e.invalidated = v, true, c.now(), false
}

// UpdateQueriesData rewrites the value of every cached key under prefix.
// fn returns the new value and whether it changed anything.
func (c *Cache) UpdateQueriesData(prefix Key, fn func(key Key, old any) (any, bool)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		if !e.hasData || !e.key.HasPrefix(prefix) {
			continue
		}
		if v, changed := fn(e.key, e.data); changed {
			e.data = v
			n++
		}
	}
	return n
}

// CancelQueries cancels in-flight fetches under prefix. Their results are discarded.
func (c *Cache) CancelQueries(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.gen++
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		c.group.Forget(id)
	}
}

// InvalidateQueries marks every key under prefix stale so the next read
// refetches, and drops their persisted copies.
func (c *Cache) InvalidateQueries(ctx context.Context, prefix Key) {
	c.mu.Lock()
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.invalidated = true
		}
	}
	ns := c.namespace
	c.mu.Unlock()
	observability.QueryCacheEvents.WithLabelValues("invalidate").Inc()

	if ns != "" {
		if err := c.store.DeletePrefix(ctx, ns, prefix); err != nil {
			observability.Logger.WarnContext(ctx, "query store invalidation failed",
				slog.String("prefix", prefix.String()), slog.String("error", err.Error()))
		}
	}
}

// RemoveQueries cancels and forgets every key under prefix.
func (c *Cache) RemoveQueries(prefix Key) {
	c.CancelQueries(prefix)
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, id)
		}
	}
}

// Clear drops everything and detaches the cache from its namespace.
// Persisted copies are left to expire.
func (c *Cache) Clear() {
	c.RemoveQueries(Key{})
	c.SetNamespace("")
}

// Len reports how many keys are held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
