package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Group collapses concurrent requests that share a fingerprint into a single
// computation and caches completed results for a bounded window. It knows
// nothing about what is being computed.
type Group struct {
	mu     sync.Mutex
	active map[string]*flight

	// Completed results, fixed TTL (not sliding)
	completed *cache.Cache
}

// Result tags how the value was obtained.
type Result struct {
	Value interface{}
	// Cached means the value came from the completed cache.
	Cached bool
	// Shared means this caller waited on a computation another caller started.
	Shared bool
}

type outcome struct {
	value interface{}
	err   error
}

type flight struct {
	waiters []chan outcome
}

// New creates a Group whose completed-result cache expires entries after ttl.
func New(ttl time.Duration) *Group {
	purge := ttl
	if purge < time.Minute {
		purge = time.Minute
	}
	return &Group{
		active:    make(map[string]*flight),
		completed: cache.New(ttl, purge),
	}
}

// IsDuplicate reports whether a fingerprint is already known, either as an
// in-flight computation or a cached result.
func (g *Group) IsDuplicate(fingerprint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[fingerprint]; ok {
		return true
	}
	_, ok := g.completed.Get(fingerprint)
	return ok
}

// Do executes fn for the fingerprint unless a computation is already in
// flight or a completed result is cached. Callers arriving during an active
// computation block until it finishes and receive the same value or error.
// Only successful values enter the completed cache.
func (g *Group) Do(ctx context.Context, fingerprint string, fn func() (interface{}, error)) (Result, error) {
	g.mu.Lock()

	if v, ok := g.completed.Get(fingerprint); ok {
		g.mu.Unlock()
		return Result{Value: v, Cached: true}, nil
	}

	if fl, ok := g.active[fingerprint]; ok {
		ch := make(chan outcome, 1)
		fl.waiters = append(fl.waiters, ch)
		g.mu.Unlock()

		select {
		case out := <-ch:
			if out.err != nil {
				return Result{Shared: true}, out.err
			}
			return Result{Value: out.value, Shared: true}, nil
		case <-ctx.Done():
			return Result{Shared: true}, ctx.Err()
		}
	}

	g.active[fingerprint] = &flight{}
	g.mu.Unlock()

	value, err := fn()

	// Store the result and clear the active marker under one lock so the
	// fingerprint is never absent from both maps while a result exists.
	g.mu.Lock()
	fl := g.active[fingerprint]
	if err == nil {
		g.completed.Set(fingerprint, value, cache.DefaultExpiration)
	}
	delete(g.active, fingerprint)
	g.mu.Unlock()

	if fl != nil {
		for _, ch := range fl.waiters {
			ch <- outcome{value: value, err: err}
		}
	}

	if err != nil {
		return Result{}, err
	}
	return Result{Value: value}, nil
}

// ActiveCount returns the number of in-flight computations.
func (g *Group) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// CachedCount returns the number of unexpired completed results.
func (g *Group) CachedCount() int {
	return g.completed.ItemCount()
}
