package slicecache

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/fzimmermann89/mrui/volume"
)

// Fetcher loads one slice of the engine's current context. The engine
// cancels fetches through the context; the underlying transport must abort,
// not merely ignore the result.
type Fetcher interface {
	FetchSlice(ctx context.Context, index int) (*Slice, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, index int) (*Slice, error)

// FetchSlice calls f.
func (f FetchFunc) FetchSlice(ctx context.Context, index int) (*Slice, error) {
	return f(ctx, index)
}

// DisplayFunc receives the slice to show. The token is the context token
// captured when the request was issued; the engine only invokes the callback
// while that token is still current.
type DisplayFunc func(token uint64, s *Slice)

// Config configures an Engine.
type Config struct {
	// Capacity is the cache capacity. <= 0 selects DefaultCapacity.
	Capacity int

	// OnDisplay is invoked with the slice to show. May be nil.
	OnDisplay DisplayFunc

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger
}

// Engine resolves slice requests against the cache, de-duplicates concurrent
// fetches for the same key, prefetches neighbors of the current target and
// cancels work that is no longer wanted.
//
// All entries belong to one viewing context at a time; ResetContext switches
// contexts by cancelling every in-flight fetch and clearing the cache before
// any new request is issued.
//
// Engine is safe for concurrent use, though a viewer normally drives it from
// a single goroutine.
type Engine struct {
	mu       sync.Mutex
	cache    *Cache
	inflight map[string]*inflight

	fetcher    Fetcher
	contextKey string
	maxIndex   int
	token      uint64
	target     int

	display DisplayFunc
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// inflight tracks one outstanding fetch. It exists only between request
// start and settlement; every waiter shares the same entry.
type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}

	// Written once before done is closed. Both nil means cancelled.
	slice *Slice
	err   error
}

// NewEngine creates an engine. Use ResetContext to bind it to a viewing
// context before requesting slices.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		cache:    NewCache(cfg.Capacity),
		inflight: make(map[string]*inflight),
		display:  cfg.OnDisplay,
		logger:   logger,
	}
}

// ResetContext switches the engine to a new viewing context: every in-flight
// fetch is cancelled and the cache cleared before the engine will issue any
// request for the new context.
func (e *Engine) ResetContext(contextKey string, maxIndex int, token uint64, f Fetcher) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, fl := range e.inflight {
		fl.cancel()
	}
	e.cache.Clear()
	e.contextKey = contextKey
	e.maxIndex = maxIndex
	e.token = token
	e.fetcher = f
	e.target = 0
}

// prefetchOrder returns the fetch order for a target: the target itself,
// then its neighbors biased toward forward motion, clipped to the valid
// range. Fan-out is bounded at 5.
func prefetchOrder(target, maxIndex int) []int {
	candidates := [5]int{target, target + 1, target - 1, target + 2, target - 2}
	order := make([]int, 0, len(candidates))
	for _, i := range candidates {
		if i >= 0 && i < maxIndex {
			order = append(order, i)
		}
	}
	return order
}

// RequestSliceSet makes the target slice the displayed slice as soon as it
// is available and warms its neighbors for smooth scrolling.
//
// Stale in-flight fetches outside the new desired set are cancelled first.
// If the target is cached it is displayed immediately without waiting for
// the network. The display callback fires only while the context token and
// target captured here are still current. A fetch failure is returned only
// if the target is still current; neighbor failures are never surfaced.
func (e *Engine) RequestSliceSet(target int) error {
	e.mu.Lock()
	token := e.token
	contextKey := e.contextKey
	fetcher := e.fetcher
	e.target = target
	order := prefetchOrder(target, e.maxIndex)

	desired := make(map[string]struct{}, len(order))
	for _, i := range order {
		desired[volume.SliceKey(contextKey, i)] = struct{}{}
	}
	for key, fl := range e.inflight {
		if _, ok := desired[key]; !ok {
			fl.cancel()
		}
	}

	targetKey := volume.SliceKey(contextKey, target)
	optimistic, _ := e.cache.Get(targetKey)
	display := e.display
	e.mu.Unlock()

	if fetcher == nil || len(order) == 0 || order[0] != target {
		return nil
	}

	if optimistic != nil && display != nil {
		display(token, optimistic)
	}

	s, err := e.loadSlice(contextKey, fetcher, target)
	current := e.isCurrent(token, target)
	switch {
	case err != nil:
		if current {
			return err
		}
		return nil
	case s != nil && current && display != nil && s != optimistic:
		display(token, s)
	}
	if !current {
		return nil
	}

	// Warm the neighbors only after the target settled so they can never
	// preempt it. Individual failures are swallowed.
	for _, i := range order[1:] {
		e.wg.Add(1)
		go func(i int) {
			defer e.wg.Done()
			if _, err := e.loadSlice(contextKey, fetcher, i); err != nil {
				e.logger.Debug("prefetch failed", "index", i, "error", err)
			}
		}(i)
	}
	return nil
}

// inPrefetchSet reports whether index belongs to the desired set of the
// given target.
func inPrefetchSet(index, target, maxIndex int) bool {
	for _, i := range prefetchOrder(target, maxIndex) {
		if i == index {
			return true
		}
	}
	return false
}

// isCurrent reports whether a captured token/target pair still matches the
// engine state.
func (e *Engine) isCurrent(token uint64, target int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return token == e.token && target == e.target
}

// loadSlice resolves one slice: from the cache if present (touching it),
// from an existing in-flight fetch if one is outstanding (de-duplication),
// otherwise by issuing a new cancellable fetch. A successful fetch is
// inserted into the cache even if the context token moved on meanwhile; the
// slice is still valid data for its context. A cancelled fetch resolves to
// (nil, nil), never an error.
func (e *Engine) loadSlice(contextKey string, fetcher Fetcher, index int) (*Slice, error) {
	key := volume.SliceKey(contextKey, index)

	e.mu.Lock()
	if s, ok := e.cache.Get(key); ok {
		e.mu.Unlock()
		return s, nil
	}
	if fl, ok := e.inflight[key]; ok {
		e.mu.Unlock()
		<-fl.done
		if fl.slice == nil && fl.err == nil {
			// The shared fetch was cancelled under us. If the slice is
			// still in the current desired set the caller still wants it:
			// start over with a fresh fetch instead of propagating the
			// stale cancel.
			e.mu.Lock()
			wanted := e.contextKey == contextKey && inPrefetchSet(index, e.target, e.maxIndex)
			e.mu.Unlock()
			if !wanted {
				return nil, nil
			}
			return e.loadSlice(contextKey, fetcher, index)
		}
		return fl.slice, fl.err
	}

	ctx, cancel := context.WithCancel(context.Background())
	fl := &inflight{cancel: cancel, done: make(chan struct{})}
	e.inflight[key] = fl
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		s, err := fetcher.FetchSlice(ctx, index)

		e.mu.Lock()
		delete(e.inflight, key)
		cancelled := ctx.Err() != nil || errors.Is(err, context.Canceled)
		switch {
		case cancelled:
			// No result; not an error.
		case err != nil:
			fl.err = err
		case s != nil:
			s.Key = key
			s.Index = index
			e.cache.Put(key, s)
			fl.slice = s
		}
		e.mu.Unlock()

		cancel()
		close(fl.done)
	}()

	<-fl.done
	return fl.slice, fl.err
}

// CacheLen returns the number of cached slices.
func (e *Engine) CacheLen() int { return e.cache.Len() }

// InflightCount returns the number of outstanding fetches.
func (e *Engine) InflightCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}

// WaitIdle blocks until all fetch and prefetch goroutines have settled.
func (e *Engine) WaitIdle() { e.wg.Wait() }

// Close cancels all outstanding work and waits for it to settle.
func (e *Engine) Close() {
	e.mu.Lock()
	for _, fl := range e.inflight {
		fl.cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
}
