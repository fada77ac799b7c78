package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/allergyscan/internal/localcache"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
)

const (
	DetailedHistoryCap = 10
	FeedCap            = 20
)

// Change describes one mutation of a cache.
type Change[T any] struct {
	Entries []T
	Evicted []T
}

// Cache is a bounded, newest-first list persisted as one JSON value under a single key.
// Each cache has its own lock; hooks run after the lock is released.
type Cache[T any] struct {
	mu       sync.Mutex
	store    localcache.Store
	key      string
	capacity int
	entries  []T
	hooks    []func([]T)
	logg     *logger.Logger
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	logg *logger.Logger
}

// WithLogger routes load and persistence warnings to logg.
func WithLogger(logg *logger.Logger) Option {
	return func(o *options) {
		if logg != nil {
			o.logg = logg
		}
	}
}

// Open builds a cache and loads any persisted entries. Unreadable or unreachable state is
// logged and the cache starts empty.
func Open[T any](ctx context.Context, store localcache.Store, key string, capacity int, opts ...Option) (*Cache[T], error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "local cache store required")
	}
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cache key required")
	}
	if capacity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cache capacity must be positive")
	}

	cfg := options{logg: logger.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c := &Cache[T]{
		store:    store,
		key:      key,
		capacity: capacity,
		entries:  []T{},
		logg:     cfg.logg,
	}
	if err := c.Load(ctx); err != nil {
		c.logg.WarnErr(c.logCtx(ctx), "history.load_failed", err)
	}
	return c, nil
}

// Load replaces the in-memory entries with the persisted ones.
func (c *Cache[T]) Load(ctx context.Context) error {
	raw, found, err := c.store.Get(ctx, c.key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeLocalStorage, err, fmt.Sprintf("read %s", c.key))
	}

	entries := []T{}
	if found && raw != "" {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			c.logg.WarnErr(c.logCtx(ctx), "history.corrupt_payload", err)
			entries = []T{}
		}
	}
	if len(entries) > c.capacity {
		entries = entries[:c.capacity]
	}

	c.mu.Lock()
	c.entries = entries
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	return nil
}

// Entries returns a copy of the entries, newest first.
func (c *Cache[T]) Entries() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Len reports the number of entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cap reports the configured capacity.
func (c *Cache[T]) Cap() int {
	return c.capacity
}

// Key reports the storage key.
func (c *Cache[T]) Key() string {
	return c.key
}

// OnChange registers fn to receive the entries after every mutation.
func (c *Cache[T]) OnChange(fn func([]T)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Prepend inserts entry at the head and evicts whatever falls past the capacity. The
// in-memory list is updated even when persisting fails; the error is CodeLocalStorage.
func (c *Cache[T]) Prepend(ctx context.Context, entry T) (Change[T], error) {
	c.mu.Lock()
	next := make([]T, 0, len(c.entries)+1)
	next = append(next, entry)
	next = append(next, c.entries...)

	var evicted []T
	if len(next) > c.capacity {
		evicted = append(evicted, next[c.capacity:]...)
		next = next[:c.capacity]
	}
	c.entries = next
	snapshot := c.snapshotLocked()
	err := c.persistLocked(ctx)
	c.mu.Unlock()

	c.notify(snapshot)
	return Change[T]{Entries: snapshot, Evicted: evicted}, err
}

// Replace swaps the whole list, truncated to the capacity.
func (c *Cache[T]) Replace(ctx context.Context, entries []T) (Change[T], error) {
	c.mu.Lock()
	next := make([]T, len(entries))
	copy(next, entries)

	var evicted []T
	if len(next) > c.capacity {
		evicted = append(evicted, next[c.capacity:]...)
		next = next[:c.capacity]
	}
	c.entries = next
	snapshot := c.snapshotLocked()
	err := c.persistLocked(ctx)
	c.mu.Unlock()

	c.notify(snapshot)
	return Change[T]{Entries: snapshot, Evicted: evicted}, err
}

// Clear removes the persisted list, and any extra keys, in one MultiRemove. The in-memory
// list is emptied only when the removal succeeded.
func (c *Cache[T]) Clear(ctx context.Context, alsoRemove ...string) error {
	keys := append([]string{c.key}, alsoRemove...)

	c.mu.Lock()
	if err := c.store.MultiRemove(ctx, keys...); err != nil {
		c.mu.Unlock()
		return pkgerrors.Wrap(pkgerrors.CodeLocalStorage, err, fmt.Sprintf("clear %s", c.key))
	}
	c.entries = []T{}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.notify(snapshot)
	return nil
}

func (c *Cache[T]) persistLocked(ctx context.Context) error {
	payload, err := json.Marshal(c.entries)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encode %s", c.key))
	}
	if err := c.store.Set(ctx, c.key, string(payload)); err != nil {
		c.logg.WarnErr(c.logCtx(ctx), "history.persist_failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeLocalStorage, err, fmt.Sprintf("persist %s", c.key))
	}
	return nil
}

func (c *Cache[T]) snapshotLocked() []T {
	out := make([]T, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Cache[T]) notify(snapshot []T) {
	c.mu.Lock()
	hooks := make([]func([]T), len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	for _, hook := range hooks {
		hook(snapshot)
	}
}

func (c *Cache[T]) logCtx(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return c.logg.WithField(ctx, "cache_key", c.key)
}
