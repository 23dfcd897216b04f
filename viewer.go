// Package mrui is an interactive slice viewer for N-dimensional
// reconstruction volumes served over HTTP.
//
// A [Viewer] ties the pieces together: navigation state (orientation, batch
// indices, slice index), a prefetching slice cache bound to the viewing
// context, and a GPU rendering pipeline with display windowing and colormap
// lookup. Scroll gestures are coalesced to one recompute per frame interval;
// scrolling across the end of a slice axis carries into the batch axes like
// an odometer. Responses that arrive after the context moved on are never
// displayed.
package mrui

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/fzimmermann89/mrui/client"
	"github.com/fzimmermann89/mrui/gpu"
	"github.com/fzimmermann89/mrui/gpu/glcompat"
	_ "github.com/fzimmermann89/mrui/gpu/software"
	"github.com/fzimmermann89/mrui/nav"
	"github.com/fzimmermann89/mrui/render"
	"github.com/fzimmermann89/mrui/slicecache"
	"github.com/fzimmermann89/mrui/transform"
	"github.com/fzimmermann89/mrui/volume"
)

// ErrNoBackend is returned when no GPU backend is registered.
var ErrNoBackend = errors.New("mrui: no gpu backend available")

// statsTimeout bounds the background window-stats request.
const statsTimeout = 10 * time.Second

// Viewer is an interactive view of one finished reconstruction job.
//
// Viewer is safe for concurrent use; gestures are cheap state updates and
// the heavy work (fetching, windowing, texture uploads) happens on
// background goroutines.
type Viewer struct {
	client  *client.Client
	jobID   string
	desc    volume.Descriptor
	adapter gpu.Adapter
	base    gpu.Adapter
	owns    bool
	logger  *slog.Logger

	engine    *slicecache.Engine
	pipeline  *render.Pipeline
	coalescer *nav.Coalescer

	mu         sync.Mutex
	state      *nav.State
	token      uint64
	contextKey string
	current    *slicecache.Slice
	autoWindow bool
	windowSet  bool
	closed     bool

	wg sync.WaitGroup
}

// NewViewer creates a viewer for a finished job. The job's result shape is
// fetched from the server; a job without a finished result is rejected.
func NewViewer(ctx context.Context, c *client.Client, jobID string, opts ...Option) (*Viewer, error) {
	o := defaultViewerOptions()
	for _, opt := range opts {
		opt(&o)
	}

	job, err := c.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != client.StatusFinished {
		return nil, fmt.Errorf("mrui: job %s is %s: %w", jobID, job.Status, client.ErrJobNotFinished)
	}
	desc, err := volume.NewDescriptor(job.ResultShape)
	if err != nil {
		return nil, fmt.Errorf("mrui: job %s: %w", jobID, err)
	}

	base := o.adapter
	owns := false
	if base == nil {
		base = gpu.Default()
		owns = true
	}
	if base == nil {
		return nil, ErrNoBackend
	}
	logger := Logger()
	adapter := glcompat.Wrap(base)
	logger.Info("gpu backend selected", "backend", adapter.Name())

	pipeline, err := render.NewPipeline(render.Config{
		Adapter:  adapter,
		Colormap: o.colormap,
		Logger:   logger,
	})
	if err != nil {
		if owns {
			base.Close()
		}
		return nil, err
	}

	v := &Viewer{
		client:     c,
		jobID:      jobID,
		desc:       desc,
		adapter:    adapter,
		base:       base,
		owns:       owns,
		logger:     logger,
		pipeline:   pipeline,
		state:      nav.NewState(desc, o.orientation),
		autoWindow: o.window == nil,
	}
	v.state.SetColormap(pipeline.Colormap())
	if o.window != nil {
		v.state.SetWindow(o.window[0], o.window[1])
		pipeline.SetWindow(o.window[0], o.window[1])
		v.windowSet = true
	}
	v.engine = slicecache.NewEngine(slicecache.Config{
		Capacity:  o.cacheCapacity,
		OnDisplay: v.handleDisplay,
		Logger:    logger,
	})
	v.coalescer = nav.NewCoalescer(o.interval, v.recompute)

	v.recompute()
	return v, nil
}

// Descriptor returns the volume shape of the viewed job.
func (v *Viewer) Descriptor() volume.Descriptor { return v.desc }

// Orientation returns the current slicing orientation.
func (v *Viewer) Orientation() volume.Orientation {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Orientation()
}

// SliceIndex returns the current position along the scroll axis.
func (v *Viewer) SliceIndex() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.SliceIndex()
}

// BatchIndices returns the current batch selection.
func (v *Viewer) BatchIndices() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.BatchIndices()
}

// Window returns the active display window.
func (v *Viewer) Window() (vmin, vmax float32) { return v.pipeline.Window() }

// Colormap returns the active colormap name.
func (v *Viewer) Colormap() string { return v.pipeline.Colormap() }

// SetOrientation switches the slicing orientation. The slice index resets
// to 0 and the cache context changes.
func (v *Viewer) SetOrientation(o volume.Orientation) {
	v.mu.Lock()
	changed := v.state.SetOrientation(o)
	v.mu.Unlock()
	if changed {
		v.coalescer.Trigger()
	}
}

// Scroll moves one axis by the sign of delta. Axes 0..n-1 are the batch
// dimensions, axis n is the scroll axis.
func (v *Viewer) Scroll(axis, delta int) {
	if delta == 0 {
		return
	}
	v.mu.Lock()
	v.state.ScrollAxis(axis, delta)
	v.mu.Unlock()
	v.coalescer.Trigger()
}

// SetAxis sets one axis to an absolute value, clamped to its range.
func (v *Viewer) SetAxis(axis, value int) {
	v.mu.Lock()
	v.state.SetAxis(axis, value)
	v.mu.Unlock()
	v.coalescer.Trigger()
}

// Tick advances the whole navigation odometer by one step: scrolling past
// the end of the slice axis carries into the batch axes.
func (v *Viewer) Tick(dir int) {
	if dir == 0 {
		return
	}
	v.mu.Lock()
	v.state.OdometerTick(dir)
	v.mu.Unlock()
	v.coalescer.Trigger()
}

// SetWindow fixes the display window manually, disabling auto-windowing.
func (v *Viewer) SetWindow(vmin, vmax float32) {
	v.mu.Lock()
	v.autoWindow = false
	v.windowSet = true
	v.state.SetWindow(vmin, vmax)
	v.mu.Unlock()
	v.pipeline.SetWindow(vmin, vmax)
}

// SetColormap switches the colormap. Unknown names are rejected.
func (v *Viewer) SetColormap(name string) error {
	if err := v.pipeline.SetColormap(name); err != nil {
		return err
	}
	v.mu.Lock()
	v.state.SetColormap(name)
	v.mu.Unlock()
	return nil
}

// Resize sets the canvas size from CSS dimensions and a device pixel ratio.
func (v *Viewer) Resize(cssW, cssH, dpr float64) bool {
	return v.pipeline.Resize(cssW, cssH, dpr)
}

// Frame renders the currently displayed slice. Before the first slice
// arrived it returns render.ErrNoSlice.
func (v *Viewer) Frame() (*image.RGBA, error) {
	return v.pipeline.Frame()
}

// Inspect returns the voxel value and pixel coordinates under a canvas
// point, or ok=false when the point misses the slice or no slice is shown.
func (v *Viewer) Inspect(x, y float64) (value float32, ix, iy int, ok bool) {
	v.mu.Lock()
	s := v.current
	v.mu.Unlock()
	if s == nil {
		return 0, 0, 0, false
	}
	w, h := v.pipeline.Size()
	r := transform.FittedRect(float64(w), float64(h), float64(s.Cols), float64(s.Rows))
	return transform.Inspect(x, y, r, s.Data, s.Cols, s.Rows)
}

// Refresh recomputes the displayed slice immediately, bypassing gesture
// coalescing.
func (v *Viewer) Refresh() { v.recompute() }

// recompute reconciles the engine with the navigation state: on a context
// change the token is bumped and the engine rebound before the target is
// requested, so stale responses can never be displayed.
func (v *Viewer) recompute() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	key := v.state.ContextKey(v.jobID)
	target := v.state.SliceIndex()
	if key != v.contextKey {
		v.contextKey = key
		v.token++
		v.current = nil
		fetcher := v.client.SliceFetcher(v.jobID, v.state.Orientation(), v.state.BatchIndices())
		v.engine.ResetContext(key, v.state.ScrollMax(), v.token, fetcher)
		v.logger.Info("viewing context changed", "context", key)
		if v.autoWindow {
			v.windowSet = false
			v.wg.Add(1)
			go v.fetchWindowStats(v.token, v.state.BatchIndices())
		}
	}
	v.mu.Unlock()

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		if err := v.engine.RequestSliceSet(target); err != nil {
			v.logger.Warn("slice request failed", "target", target, "error", err)
		}
	}()
}

// handleDisplay receives the slice to show from the engine. The engine
// already filtered on the context token; a second check here closes the
// window between its check and ours.
func (v *Viewer) handleDisplay(token uint64, s *slicecache.Slice) {
	v.mu.Lock()
	if v.closed || token != v.token {
		v.mu.Unlock()
		return
	}
	v.current = s
	needFallback := v.autoWindow && !v.windowSet
	v.mu.Unlock()

	if err := v.pipeline.UploadSlice(s.Rows, s.Cols, s.Data); err != nil {
		v.logger.Warn("slice upload failed", "error", err)
		return
	}
	if needFallback {
		v.applyFallbackWindow(token, s)
	}
}

// fetchWindowStats asks the server for p01/p99 of the selected volume and
// applies them if the context is still current. Server stats take priority
// over the local fallback; failures leave the fallback in place.
func (v *Viewer) fetchWindowStats(token uint64, batch []int) {
	defer v.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()
	stats, err := v.client.WindowStats(ctx, v.jobID, batch)
	if err != nil {
		v.logger.Warn("window stats unavailable, using local percentiles", "error", err)
		return
	}
	v.applyWindow(token, float32(stats.P01), float32(stats.P99), true)
}

// applyFallbackWindow derives a window from the first displayed slice's
// local percentiles so the image is visible before (or without) server
// statistics.
func (v *Viewer) applyFallbackWindow(token uint64, s *slicecache.Slice) {
	vmin, vmax, ok := percentiles(s.Data, 0.01, 0.99)
	if !ok {
		return
	}
	v.applyWindow(token, vmin, vmax, false)
}

// applyWindow installs an auto-window if it still applies. authoritative
// windows (server stats) override an earlier fallback; a fallback never
// overrides anything.
func (v *Viewer) applyWindow(token uint64, vmin, vmax float32, authoritative bool) {
	v.mu.Lock()
	apply := !v.closed && token == v.token && v.autoWindow && (authoritative || !v.windowSet)
	if apply {
		v.windowSet = true
		v.state.SetWindow(vmin, vmax)
	}
	v.mu.Unlock()
	if apply {
		v.pipeline.SetWindow(vmin, vmax)
		v.logger.Debug("auto window applied", "vmin", vmin, "vmax", vmax, "server", authoritative)
	}
}

// percentiles computes empirical quantiles over the finite values of data.
func percentiles(data []float32, lo, hi float64) (vmin, vmax float32, ok bool) {
	xs := make([]float64, 0, len(data))
	for _, f := range data {
		d := float64(f)
		if f != f || d > render.SentinelMagnitude || d < -render.SentinelMagnitude {
			continue
		}
		xs = append(xs, d)
	}
	if len(xs) == 0 {
		return 0, 0, false
	}
	sort.Float64s(xs)
	return float32(stat.Quantile(lo, stat.Empirical, xs, nil)),
		float32(stat.Quantile(hi, stat.Empirical, xs, nil)), true
}

// WaitIdle blocks until pending fetches, prefetches and window updates have
// settled. Intended for tests and teardown.
func (v *Viewer) WaitIdle() {
	v.wg.Wait()
	v.engine.WaitIdle()
}

// Close releases the viewer: pending gestures are dropped, outstanding
// fetches cancelled and GPU resources destroyed. An adapter supplied via
// WithAdapter stays open. Close is idempotent.
func (v *Viewer) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	v.mu.Unlock()

	v.coalescer.Stop()
	v.engine.Close()
	v.wg.Wait()
	v.pipeline.Close()
	if v.owns {
		v.base.Close()
	}
}
