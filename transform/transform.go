// Package transform maps between screen, canvas and slice coordinates.
//
// All functions are pure. The aspect-fit rule here is the same one the
// rendering pipeline applies when placing the slice quad, so pointer math
// and rendered layout always agree.
package transform

import "math"

// Rect is an axis-aligned rectangle in container coordinates.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// FittedRect returns the letterboxed rectangle of an image fit inside a
// container, preserving the image's aspect ratio and centering the result.
//
// If the image is wider (relative to its height) than the container, the fit
// is width-constrained and letterbox bars appear above and below; otherwise
// the fit is height-constrained with bars left and right.
func FittedRect(containerW, containerH, imageW, imageH float64) Rect {
	if containerW <= 0 || containerH <= 0 || imageW <= 0 || imageH <= 0 {
		return Rect{}
	}
	containerAspect := containerW / containerH
	imageAspect := imageW / imageH

	var r Rect
	if imageAspect > containerAspect {
		r.W = containerW
		r.H = containerW / imageAspect
		r.Y = (containerH - r.H) / 2
	} else {
		r.H = containerH
		r.W = containerH * imageAspect
		r.X = (containerW - r.W) / 2
	}
	return r
}

// ScreenToUV converts a container point to normalized (u, v) within the
// fitted rect. UV space is bottom-up: v=0 at the rect's bottom edge, v=1 at
// its top, while screen y grows downward. Points on the letterbox margin or
// outside the container are reported as not inside.
func ScreenToUV(x, y float64, r Rect) (u, v float64, inside bool) {
	if r.W <= 0 || r.H <= 0 {
		return 0, 0, false
	}
	u = (x - r.X) / r.W
	v = 1 - (y-r.Y)/r.H
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 0, 0, false
	}
	return u, v, true
}

// UVToPixel maps normalized coordinates to integer pixel indices.
// The image's V axis is flipped relative to screen space, matching the
// render flip: v=0 is the bottom image row.
func UVToPixel(u, v float64, width, height int) (ix, iy int) {
	ix = int(math.Floor(u * float64(width)))
	iy = int(math.Floor((1 - v) * float64(height)))
	return ix, iy
}

// Inspect returns the slice value under a container point, or ok=false when
// the point misses the fitted rect or maps outside the data. Row-major data,
// rows = height, cols = width.
func Inspect(x, y float64, r Rect, data []float32, width, height int) (value float32, ix, iy int, ok bool) {
	u, v, inside := ScreenToUV(x, y, r)
	if !inside {
		return 0, 0, 0, false
	}
	ix, iy = UVToPixel(u, v, width, height)
	if ix < 0 || ix >= width || iy < 0 || iy >= height {
		return 0, 0, 0, false
	}
	idx := iy*width + ix
	if idx >= len(data) {
		return 0, 0, 0, false
	}
	return data[idx], ix, iy, true
}

// Transform is a pan/zoom transform composing with the UV mapping.
// Scale is applied about the origin before translation.
type Transform struct {
	Scale      float64
	TranslateX float64
	TranslateY float64
}

// Identity returns the identity transform.
func Identity() Transform { return Transform{Scale: 1} }

// Apply maps a UV point through the transform.
func (t Transform) Apply(u, v float64) (float64, float64) {
	return u*t.Scale + t.TranslateX, v*t.Scale + t.TranslateY
}

// Invert returns the inverse transform. ok is false for degenerate (zero
// scale) transforms.
func (t Transform) Invert() (Transform, bool) {
	if t.Scale == 0 {
		return Transform{}, false
	}
	inv := 1 / t.Scale
	return Transform{
		Scale:      inv,
		TranslateX: -t.TranslateX * inv,
		TranslateY: -t.TranslateY * inv,
	}, true
}

// Compose returns the transform equivalent to applying other first, then t.
func (t Transform) Compose(other Transform) Transform {
	return Transform{
		Scale:      t.Scale * other.Scale,
		TranslateX: t.Scale*other.TranslateX + t.TranslateX,
		TranslateY: t.Scale*other.TranslateY + t.TranslateY,
	}
}
