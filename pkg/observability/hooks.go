// Package observability provides hooks for exploration, cache and HTTP
// events.
//
// Libraries emit events through the registered hooks; the defaults do
// nothing. The command line registers [LogHooks] when running verbosely,
// and other binaries can register their own metrics or tracing backends at
// startup without the libraries importing them.
//
// Register hooks once, before the first exploration:
//
//	observability.SetExploreHooks(observability.NewLogHooks(logger))
//
// Libraries call hooks to emit events:
//
//	observability.Explore().OnExpandStart(ctx, id)
//	// ... fetch and merge ...
//	observability.Explore().OnExpandComplete(ctx, id, vertices, edges, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Explore Hooks
// =============================================================================

// ExploreHooks receives events from the exploration lifecycle.
type ExploreHooks interface {
	// OnExpandStart records the start of a neighbourhood fetch.
	OnExpandStart(ctx context.Context, id string)

	// OnExpandComplete records a finished expansion with the number of
	// vertices and edges it added. Stale and failed expansions carry err.
	OnExpandComplete(ctx context.Context, id string, vertices, edges int, duration time.Duration, err error)

	// OnCollapse records a collapse and what it removed.
	OnCollapse(ctx context.Context, id string, vertices, edges int)

	// OnRemove records an explicit removal of one entity.
	OnRemove(ctx context.Context, entityType, id string, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopExploreHooks is a no-op implementation of ExploreHooks.
type NoopExploreHooks struct{}

func (NoopExploreHooks) OnExpandStart(context.Context, string) {}
func (NoopExploreHooks) OnExpandComplete(context.Context, string, int, int, time.Duration, error) {
}
func (NoopExploreHooks) OnCollapse(context.Context, string, int, int)     {}
func (NoopExploreHooks) OnRemove(context.Context, string, string, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	exploreHooks ExploreHooks = NoopExploreHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetExploreHooks registers custom exploration hooks. Nil is ignored.
func SetExploreHooks(h ExploreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		exploreHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Explore returns the registered exploration hooks.
func Explore() ExploreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return exploreHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	exploreHooks = NoopExploreHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
