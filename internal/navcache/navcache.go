// Package navcache decides which storefront routes to speculatively preload
// and remembers recently navigated routes so repeated transitions skip
// redundant prefetch work. The cache is an explicitly constructed object
// with its own sweep lifecycle; nothing here is module-level state.
package navcache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-client/internal/analytics"
)

// Storefront route paths used by the prefetch strategy.
const (
	RouteCart          = "/cart"
	RouteAccount       = "/account"
	RouteWishlist      = "/wishlist"
	RouteCheckout      = "/checkout"
	RouteShopDashboard = "/shop/dashboard"
	RouteLogin         = "/login"
	RouteRegister      = "/register"
)

const (
	defaultMaxEntries    = 50
	defaultEntryTTL      = 5 * time.Minute
	defaultSweepInterval = time.Minute
	defaultBatchSize     = 3
	defaultBatchDelay    = 100 * time.Millisecond
)

// Router is the injected navigation collaborator. A fire-and-forget router
// implementation may always return nil from Prefetch; the cache tolerates
// both awaitable and non-awaitable prefetch behavior.
type Router interface {
	Push(path string) error
	Replace(path string) error
	Prefetch(path string) error
}

// NetworkInfo mirrors the runtime connection descriptor. A nil *NetworkInfo
// means the runtime exposes no such API and is treated as unconstrained.
type NetworkInfo struct {
	EffectiveType string
	SaveData      bool
}

// Constrained reports whether speculative traffic should be suppressed:
// the user asked for data saving, or the connection sits in the slowest
// effective tiers.
func (n *NetworkInfo) Constrained() bool {
	if n == nil {
		return false
	}
	if n.SaveData {
		return true
	}
	return n.EffectiveType == "slow-2g" || n.EffectiveType == "2g"
}

// Options configures a Cache. Zero fields fall back to defaults.
type Options struct {
	MaxEntries    int
	EntryTTL      time.Duration
	SweepInterval time.Duration
	BatchSize     int
	BatchDelay    time.Duration
	Network       *NetworkInfo
	Tracker       analytics.Tracker
	Logger        *zap.Logger
}

type cacheEntry struct {
	insertedAt time.Time
}

// Cache is the bounded, time-expiring route cache plus the in-flight
// prefetch queue. Eviction follows insertion order only (FIFO, not LRU).
type Cache struct {
	mu       sync.Mutex
	entries  map[string]cacheEntry
	order    []string // insertion order, oldest first
	inflight map[string]struct{}

	maxEntries int
	entryTTL   time.Duration
	batchSize  int
	batchDelay time.Duration
	network    *NetworkInfo
	tracker    analytics.Tracker
	logger     *zap.Logger

	now func() time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// New constructs a Cache and starts its background sweep ticker. Callers
// own the lifecycle and must Close it to stop the sweeper.
func New(opts Options) *Cache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultMaxEntries
	}
	if opts.EntryTTL <= 0 {
		opts.EntryTTL = defaultEntryTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = defaultBatchDelay
	}
	if opts.Tracker == nil {
		opts.Tracker = analytics.NopTracker{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Cache{
		entries:    make(map[string]cacheEntry),
		inflight:   make(map[string]struct{}),
		maxEntries: opts.MaxEntries,
		entryTTL:   opts.EntryTTL,
		batchSize:  opts.BatchSize,
		batchDelay: opts.BatchDelay,
		network:    opts.Network,
		tracker:    opts.Tracker,
		logger:     opts.Logger,
		now:        time.Now,
		done:       make(chan struct{}),
	}

	go c.sweepLoop(opts.SweepInterval)
	return c
}

// Close stops the background sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.done:
			return
		}
	}
}

// Sweep removes every entry whose age exceeds the configured TTL.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.entryTTL)
	kept := c.order[:0]
	for _, path := range c.order {
		entry, ok := c.entries[path]
		if !ok {
			continue
		}
		if entry.insertedAt.Before(cutoff) {
			delete(c.entries, path)
			continue
		}
		kept = append(kept, path)
	}
	c.order = kept
}

// Record inserts or refreshes the cache entry for path with the current
// timestamp. Inserting beyond capacity evicts the single oldest-inserted
// entry first; refreshing an existing entry keeps its insertion position.
func (c *Cache) Record(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; ok {
		c.entries[path] = cacheEntry{insertedAt: c.now()}
		return
	}

	if len(c.order) >= c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[path] = cacheEntry{insertedAt: c.now()}
	c.order = append(c.order, path)
}

// HasValid reports whether a non-expired entry exists for path. An expired
// entry counts as absent on read even before the sweeper reaps it.
func (c *Cache) HasValid(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[path]
	if !ok {
		return false
	}
	return !entry.insertedAt.Before(c.now().Add(-c.entryTTL))
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// enterFlight attempts to claim the in-flight slot for path. It returns
// false when a prefetch for the same path is already running.
func (c *Cache) enterFlight(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[path]; ok {
		return false
	}
	c.inflight[path] = struct{}{}
	return true
}

func (c *Cache) leaveFlight(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, path)
}
