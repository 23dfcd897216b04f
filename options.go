package mrui

import (
	"time"

	"github.com/fzimmermann89/mrui/gpu"
	"github.com/fzimmermann89/mrui/volume"
)

// Option configures a Viewer during creation.
//
// Example:
//
//	// Default: auto-selected backend, yx orientation, auto windowing.
//	v, err := mrui.NewViewer(ctx, c, jobID)
//
//	// Explicit backend and colormap:
//	v, err := mrui.NewViewer(ctx, c, jobID,
//	    mrui.WithAdapter(myAdapter),
//	    mrui.WithColormap("viridis"))
type Option func(*viewerOptions)

// viewerOptions holds optional configuration for Viewer creation.
type viewerOptions struct {
	adapter       gpu.Adapter
	orientation   volume.Orientation
	colormap      string
	cacheCapacity int
	interval      time.Duration
	window        *[2]float32
}

func defaultViewerOptions() viewerOptions {
	return viewerOptions{
		orientation: volume.OrientationYX,
	}
}

// WithAdapter sets a specific GPU adapter instead of the registry default.
// The caller keeps ownership; the viewer will not close it.
func WithAdapter(a gpu.Adapter) Option {
	return func(o *viewerOptions) { o.adapter = a }
}

// WithOrientation sets the initial slicing orientation.
func WithOrientation(or volume.Orientation) Option {
	return func(o *viewerOptions) { o.orientation = or }
}

// WithColormap sets the initial colormap name.
func WithColormap(name string) Option {
	return func(o *viewerOptions) { o.colormap = name }
}

// WithCacheCapacity sets the slice cache capacity.
func WithCacheCapacity(n int) Option {
	return func(o *viewerOptions) { o.cacheCapacity = n }
}

// WithGestureInterval sets the gesture coalescing interval.
func WithGestureInterval(d time.Duration) Option {
	return func(o *viewerOptions) { o.interval = d }
}

// WithWindow fixes the display window, disabling automatic windowing.
func WithWindow(vmin, vmax float32) Option {
	return func(o *viewerOptions) { o.window = &[2]float32{vmin, vmax} }
}
