package slicecache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/fzimmermann89/mrui/volume"
)

// fakeFetcher is a controllable Fetcher. If block is non-nil every fetch
// waits until it is closed or the fetch is cancelled.
type fakeFetcher struct {
	mu        sync.Mutex
	calls     map[int]int
	cancelled map[int]bool
	fail      map[int]error
	block     chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:     make(map[int]int),
		cancelled: make(map[int]bool),
		fail:      make(map[int]error),
	}
}

func (f *fakeFetcher) FetchSlice(ctx context.Context, index int) (*Slice, error) {
	f.mu.Lock()
	f.calls[index]++
	block := f.block
	err := f.fail[index]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			f.mu.Lock()
			f.cancelled[index] = true
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		f.mu.Lock()
		f.cancelled[index] = true
		f.mu.Unlock()
		return nil, ctx.Err()
	}
	return &Slice{Rows: 2, Cols: 2, Data: []float32{float32(index), 0, 0, 0}}, nil
}

func (f *fakeFetcher) callCount(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[index]
}

func (f *fakeFetcher) wasCancelled(index int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled[index]
}

// displayRecorder captures display callbacks.
type displayRecorder struct {
	mu     sync.Mutex
	tokens []uint64
	slices []*Slice
}

func (d *displayRecorder) record(token uint64, s *Slice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
	d.slices = append(d.slices, s)
}

func (d *displayRecorder) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slices)
}

func (d *displayRecorder) last() (uint64, *Slice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.slices) == 0 {
		return 0, nil
	}
	return d.tokens[len(d.tokens)-1], d.slices[len(d.slices)-1]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestPrefetchOrder(t *testing.T) {
	tests := []struct {
		target, max int
		want        []int
	}{
		{5, 10, []int{5, 6, 4, 7, 3}},
		{0, 10, []int{0, 1, 2}},
		{9, 10, []int{9, 8, 7}},
		{1, 3, []int{1, 2, 0}},
		{0, 1, []int{0}},
	}
	for _, tt := range tests {
		if got := prefetchOrder(tt.target, tt.max); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("prefetchOrder(%d,%d) = %v, want %v", tt.target, tt.max, got, tt.want)
		}
	}
}

func TestRequestSliceSetDisplaysTarget(t *testing.T) {
	f := newFakeFetcher()
	rec := &displayRecorder{}
	e := NewEngine(Config{OnDisplay: rec.record})
	e.ResetContext("job|yx|", 10, 1, f)

	if err := e.RequestSliceSet(5); err != nil {
		t.Fatalf("RequestSliceSet: %v", err)
	}
	token, s := rec.last()
	if s == nil || s.Index != 5 || token != 1 {
		t.Fatalf("displayed token=%d slice=%+v", token, s)
	}

	e.WaitIdle()
	if got := e.CacheLen(); got != 5 {
		t.Errorf("cache holds %d slices after prefetch, want 5", got)
	}
	for _, i := range []int{5, 6, 4, 7, 3} {
		if f.callCount(i) != 1 {
			t.Errorf("index %d fetched %d times", i, f.callCount(i))
		}
	}
}

func TestLoadSliceDeduplicates(t *testing.T) {
	f := newFakeFetcher()
	f.block = make(chan struct{})
	e := NewEngine(Config{})
	e.ResetContext("job|yx|", 10, 1, f)

	var wg sync.WaitGroup
	results := make([]*Slice, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := e.loadSlice("job|yx|", f, 3)
			if err != nil {
				t.Errorf("loadSlice: %v", err)
			}
			results[i] = s
		}(i)
	}

	waitFor(t, "both callers to join the fetch", func() bool { return f.callCount(3) >= 1 && e.InflightCount() == 1 })
	close(f.block)
	wg.Wait()

	if f.callCount(3) != 1 {
		t.Errorf("expected exactly one fetch, got %d", f.callCount(3))
	}
	if results[0] == nil || results[0] != results[1] {
		t.Error("both callers must receive the same slice")
	}
}

func TestRetargetCancelsUndesiredInflight(t *testing.T) {
	f := newFakeFetcher()
	f.block = make(chan struct{})
	rec := &displayRecorder{}
	e := NewEngine(Config{OnDisplay: rec.record})
	e.ResetContext("job|yx|", 100, 1, f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.RequestSliceSet(0)
	}()
	waitFor(t, "fetch of 0 to start", func() bool { return f.callCount(0) == 1 })

	// Retarget far away: the fetch for 0 is outside the new desired set and
	// must be aborted at the transport, not just ignored.
	go func() { _ = e.RequestSliceSet(50) }()
	waitFor(t, "fetch of 0 to be cancelled", func() bool { return f.wasCancelled(0) })

	close(f.block)
	<-done
	e.WaitIdle()

	if _, s := rec.last(); s == nil || s.Index != 50 {
		t.Errorf("displayed slice = %+v, want index 50", s)
	}
	for _, s := range rec.slices {
		if s.Index == 0 {
			t.Error("abandoned target 0 must not be displayed")
		}
	}
}

func TestContextSwitchClearsCacheAndCancels(t *testing.T) {
	f := newFakeFetcher()
	e := NewEngine(Config{})
	e.ResetContext("job|yx|", 10, 1, f)
	if err := e.RequestSliceSet(5); err != nil {
		t.Fatal(err)
	}
	e.WaitIdle()
	if e.CacheLen() == 0 {
		t.Fatal("cache should be warm")
	}

	// A blocked fetch outstanding across the switch must be cancelled.
	f2 := newFakeFetcher()
	f2.block = make(chan struct{})
	go func() { _, _ = e.loadSlice("job|yx|", f2, 9) }()
	waitFor(t, "fetch of 9 to start", func() bool { return f2.callCount(9) == 1 })

	e.ResetContext("job|zx|", 20, 2, f)

	if got := e.CacheLen(); got != 0 {
		t.Errorf("cache holds %d entries after context switch", got)
	}
	waitFor(t, "old fetch to be cancelled", func() bool { return f2.wasCancelled(9) })
	close(f2.block)
	e.WaitIdle()
	if got := e.InflightCount(); got != 0 {
		t.Errorf("%d in-flight entries after settle", got)
	}
}

func TestStaleTokenNeverDisplays(t *testing.T) {
	f := newFakeFetcher()
	f.block = make(chan struct{})
	rec := &displayRecorder{}
	e := NewEngine(Config{OnDisplay: rec.record})
	e.ResetContext("job|yx|", 10, 1, f)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.RequestSliceSet(2)
	}()
	waitFor(t, "fetch of 2 to start", func() bool { return f.callCount(2) == 1 })

	// Context changes while the response is still in flight; when the old
	// fetch finally resolves it must not touch the display.
	e.ResetContext("job|zx|", 10, 2, f)
	close(f.block)
	<-done
	e.WaitIdle()

	if rec.count() != 0 {
		_, s := rec.last()
		t.Errorf("stale response was displayed: %+v", s)
	}
}

func TestTargetFailureSurfaced(t *testing.T) {
	f := newFakeFetcher()
	boom := errors.New("boom")
	f.fail[4] = boom
	e := NewEngine(Config{})
	e.ResetContext("job|yx|", 10, 1, f)

	if err := e.RequestSliceSet(4); !errors.Is(err, boom) {
		t.Errorf("RequestSliceSet = %v, want boom", err)
	}
}

func TestNeighborFailuresSwallowed(t *testing.T) {
	f := newFakeFetcher()
	for i := 0; i < 10; i++ {
		if i != 5 {
			f.fail[i] = fmt.Errorf("neighbor %d failed", i)
		}
	}
	rec := &displayRecorder{}
	e := NewEngine(Config{OnDisplay: rec.record})
	e.ResetContext("job|yx|", 10, 1, f)

	if err := e.RequestSliceSet(5); err != nil {
		t.Errorf("neighbor failures must not surface, got %v", err)
	}
	e.WaitIdle()
	if _, s := rec.last(); s == nil || s.Index != 5 {
		t.Error("target must still be displayed")
	}
}

func TestOptimisticDisplayFromCache(t *testing.T) {
	f := newFakeFetcher()
	rec := &displayRecorder{}
	e := NewEngine(Config{OnDisplay: rec.record})
	e.ResetContext("job|yx|", 10, 1, f)
	if err := e.RequestSliceSet(5); err != nil {
		t.Fatal(err)
	}
	e.WaitIdle()
	before := rec.count()

	// Target 5 is cached; even with the network wedged the display must
	// update immediately, and the cached slice is not re-displayed twice.
	f.block = make(chan struct{})
	defer close(f.block)
	if err := e.RequestSliceSet(5); err != nil {
		t.Fatal(err)
	}
	if rec.count() != before+1 {
		t.Errorf("expected exactly one optimistic display, got %d", rec.count()-before)
	}
	if _, s := rec.last(); s == nil || s.Index != 5 {
		t.Error("optimistic display missing")
	}
}

func TestCachedSliceKeyed(t *testing.T) {
	f := newFakeFetcher()
	e := NewEngine(Config{})
	ctxKey := volume.ContextKey("job", volume.OrientationYX, nil)
	e.ResetContext(ctxKey, 10, 1, f)
	s, err := e.loadSlice(ctxKey, f, 3)
	if err != nil || s == nil {
		t.Fatalf("loadSlice: %v", err)
	}
	if s.Key != volume.SliceKey(ctxKey, 3) || s.Index != 3 {
		t.Errorf("slice key/index = %q/%d", s.Key, s.Index)
	}
}
