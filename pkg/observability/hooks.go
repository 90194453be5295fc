// Package observability lets an embedding application watch fm3 at work.
//
// Three hook sets cover layout and render runs (including every finished
// multilevel step), cache traffic and HTTP requests. The packages that emit
// events never import a metrics backend; an application registers its own
// implementation once at startup and the no-op set is used otherwise.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnLayoutStart(ctx, runID, vertices, edges)
//	// ... run layout ...
//	observability.Pipeline().OnLayoutComplete(ctx, runID, duration, err)
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from layout and render runs.
type PipelineHooks interface {
	// Layout events
	OnLayoutStart(ctx context.Context, runID string, vertices, edges int)
	OnLevelComplete(ctx context.Context, runID string, component, level, vertices, iterations int)
	OnLayoutComplete(ctx context.Context, runID string, duration time.Duration, err error)

	// Render events
	OnRenderStart(ctx context.Context, format string)
	OnRenderComplete(ctx context.Context, format string, size int, duration time.Duration, err error)
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
// Server Hooks
// =============================================================================

// ServerHooks receives events from the HTTP API.
type ServerHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records the response to a request.
	OnResponse(ctx context.Context, method, route string, status int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLayoutStart(context.Context, string, int, int)                {}
func (NoopPipelineHooks) OnLevelComplete(context.Context, string, int, int, int, int)    {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, string, time.Duration, error) {}
func (NoopPipelineHooks) OnRenderStart(context.Context, string)                          {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, string, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopServerHooks is a no-op implementation of ServerHooks.
type NoopServerHooks struct{}

func (NoopServerHooks) OnRequest(context.Context, string, string)                      {}
func (NoopServerHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// slot holds one registered hook set. An empty slot yields the no-op set.
type slot[T any] struct {
	p    atomic.Pointer[T]
	noop T
}

func (s *slot[T]) get() T {
	if p := s.p.Load(); p != nil {
		return *p
	}
	return s.noop
}

func (s *slot[T]) set(h T) { s.p.Store(&h) }
func (s *slot[T]) reset()  { s.p.Store(nil) }

var (
	pipelineSlot = slot[PipelineHooks]{noop: NoopPipelineHooks{}}
	cacheSlot    = slot[CacheHooks]{noop: NoopCacheHooks{}}
	serverSlot   = slot[ServerHooks]{noop: NoopServerHooks{}}
)

// SetPipelineHooks registers pipeline hooks. A nil argument is ignored.
func SetPipelineHooks(h PipelineHooks) {
	if h != nil {
		pipelineSlot.set(h)
	}
}

// SetCacheHooks registers cache hooks. A nil argument is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		cacheSlot.set(h)
	}
}

// SetServerHooks registers HTTP server hooks. A nil argument is ignored.
func SetServerHooks(h ServerHooks) {
	if h != nil {
		serverSlot.set(h)
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return pipelineSlot.get() }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return cacheSlot.get() }

// Server returns the registered server hooks.
func Server() ServerHooks { return serverSlot.get() }

// Reset restores the no-op hooks. Tests call it in t.Cleanup.
func Reset() {
	pipelineSlot.reset()
	cacheSlot.reset()
	serverSlot.reset()
}
