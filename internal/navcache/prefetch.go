package navcache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront-client/internal/analytics"
)

// UserContext is the authenticated-user snapshot the prefetch strategy is
// computed from.
type UserContext struct {
	IsAuthenticated bool
	HasShop         bool
	CartItemCount   int
	RecentlyVisited []string
}

// maxRecentRoutes bounds how many recently visited routes the strategy
// appends.
const maxRecentRoutes = 3

// GetPrefetchStrategy returns the ordered, deduplicated list of routes worth
// preloading for the given user context. Pure function: no side effects,
// no I/O.
func GetPrefetchStrategy(uc UserContext) []string {
	routes := []string{RouteCart}

	if uc.IsAuthenticated {
		routes = append(routes, RouteAccount, RouteWishlist)
		if uc.CartItemCount > 0 {
			routes = append(routes, RouteCheckout)
		}
		if uc.HasShop {
			routes = append(routes, RouteShopDashboard)
		}
	} else {
		routes = append(routes, RouteLogin, RouteRegister)
	}

	seen := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		seen[r] = struct{}{}
	}

	added := 0
	for _, r := range uc.RecentlyVisited {
		if added == maxRecentRoutes {
			break
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		routes = append(routes, r)
		added++
	}

	return routes
}

// PrefetchOutcome classifies what happened to one route during a
// ConditionalPrefetch pass. Failures are deliberately swallowed; the
// outcome exists for observability, not for error propagation.
type PrefetchOutcome int

const (
	PrefetchSucceeded PrefetchOutcome = iota
	PrefetchFailedIgnored
	PrefetchSkippedDuplicate
)

func (o PrefetchOutcome) String() string {
	switch o {
	case PrefetchSucceeded:
		return "succeeded"
	case PrefetchFailedIgnored:
		return "failed-ignored"
	case PrefetchSkippedDuplicate:
		return "skipped-duplicate"
	default:
		return "unknown"
	}
}

// PrefetchResult pairs a route with its outcome.
type PrefetchResult struct {
	Path    string
	Outcome PrefetchOutcome
}

// ConditionalPrefetch speculatively preloads routes in batches, honoring
// data-saving network preferences. On a constrained network it returns nil
// without issuing a single prefetch. Routes already in flight are skipped,
// and prefetch rejections never surface past this call.
func (c *Cache) ConditionalPrefetch(router Router, routes []string) []PrefetchResult {
	if c.network.Constrained() {
		c.logger.Debug("prefetch skipped, constrained network",
			zap.Int("routes", len(routes)))
		return nil
	}

	results := make([]PrefetchResult, 0, len(routes))
	for start := 0; start < len(routes); start += c.batchSize {
		end := start + c.batchSize
		if end > len(routes) {
			end = len(routes)
		}
		batch := routes[start:end]

		batchResults := make([]PrefetchResult, len(batch))
		var wg sync.WaitGroup
		for i, path := range batch {
			if !c.enterFlight(path) {
				batchResults[i] = PrefetchResult{Path: path, Outcome: PrefetchSkippedDuplicate}
				continue
			}
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				defer c.leaveFlight(path)
				if err := router.Prefetch(path); err != nil {
					c.logger.Debug("prefetch failed, ignored",
						zap.String("path", path), zap.Error(err))
					batchResults[i] = PrefetchResult{Path: path, Outcome: PrefetchFailedIgnored}
					return
				}
				batchResults[i] = PrefetchResult{Path: path, Outcome: PrefetchSucceeded}
			}(i, path)
		}
		wg.Wait()
		results = append(results, batchResults...)

		// Pause between batches so speculative traffic never saturates the
		// network stack.
		if end < len(routes) {
			time.Sleep(c.batchDelay)
		}
	}

	return results
}

// NavigateOptions controls a Navigate call.
type NavigateOptions struct {
	Replace    bool
	Prefetch   bool
	TrackEvent string
}

// Navigate performs a route transition. A valid cache entry for path skips
// the fresh prefetch; otherwise the path is prefetched first when requested.
// The transition itself always runs, the cache entry is always recorded
// afterward, and TrackEvent is forwarded fire-and-forget.
func (c *Cache) Navigate(router Router, path string, opts NavigateOptions) error {
	if !c.HasValid(path) && opts.Prefetch {
		if err := router.Prefetch(path); err != nil {
			c.logger.Debug("navigation prefetch failed, ignored",
				zap.String("path", path), zap.Error(err))
		}
	}

	var err error
	if opts.Replace {
		err = router.Replace(path)
	} else {
		err = router.Push(path)
	}

	c.Record(path)

	if opts.TrackEvent != "" {
		c.tracker.Track(analytics.NewEvent(opts.TrackEvent, path))
	}

	return err
}
