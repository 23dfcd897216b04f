// Package volume describes the shape of an N-dimensional reconstruction
// result and the identity of a particular view into it.
//
// A volume is an ordered list of dimension sizes. The last three dimensions
// are spatial (z, y, x); everything before them is a batch dimension
// (e.g. echo, coil-combination, repetition). A view is identified by the
// slicing orientation plus one index per batch dimension; two views share
// cached slices iff their context keys are equal.
package volume

import (
	"fmt"
	"strconv"
	"strings"
)

// Orientation selects which spatial axis is scrolled through and which two
// axes are displayed.
type Orientation string

// Slicing orientations. The name lists the displayed axes, rows first.
const (
	// OrientationYX scrolls along z and displays y (rows) by x (cols).
	OrientationYX Orientation = "yx"

	// OrientationZX scrolls along y and displays z (rows) by x (cols).
	OrientationZX Orientation = "zx"

	// OrientationZY scrolls along x and displays z (rows) by y (cols).
	OrientationZY Orientation = "zy"
)

// ParseOrientation validates a wire-format orientation string.
func ParseOrientation(s string) (Orientation, error) {
	switch Orientation(s) {
	case OrientationYX, OrientationZX, OrientationZY:
		return Orientation(s), nil
	}
	return "", fmt.Errorf("volume: invalid orientation %q", s)
}

// String returns the wire format of the orientation.
func (o Orientation) String() string { return string(o) }

// Descriptor is the immutable shape of one volume. It is fixed for the life
// of a viewer session tied to one job result.
type Descriptor struct {
	dims []int
}

// NewDescriptor creates a descriptor from ordered dimension sizes.
// At least the three spatial dimensions are required and every size must be
// positive.
func NewDescriptor(dims []int) (Descriptor, error) {
	if len(dims) < 3 {
		return Descriptor{}, fmt.Errorf("volume: need at least 3 dims, got %d", len(dims))
	}
	for i, d := range dims {
		if d <= 0 {
			return Descriptor{}, fmt.Errorf("volume: dim %d has non-positive size %d", i, d)
		}
	}
	cp := make([]int, len(dims))
	copy(cp, dims)
	return Descriptor{dims: cp}, nil
}

// Dims returns a copy of all dimension sizes.
func (d Descriptor) Dims() []int {
	cp := make([]int, len(d.dims))
	copy(cp, d.dims)
	return cp
}

// BatchDims returns a copy of the leading (non-spatial) dimension sizes.
// Empty for a plain 3-D volume.
func (d Descriptor) BatchDims() []int {
	n := len(d.dims) - 3
	cp := make([]int, n)
	copy(cp, d.dims[:n])
	return cp
}

// SpatialDims returns the trailing (z, y, x) sizes.
func (d Descriptor) SpatialDims() (z, y, x int) {
	n := len(d.dims)
	return d.dims[n-3], d.dims[n-2], d.dims[n-1]
}

// ScrollMax returns the number of slices along the scroll axis of the given
// orientation.
func (d Descriptor) ScrollMax(o Orientation) int {
	z, y, x := d.SpatialDims()
	switch o {
	case OrientationZX:
		return y
	case OrientationZY:
		return x
	default:
		return z
	}
}

// SliceDims returns the displayed slice shape (rows, cols) for the given
// orientation.
func (d Descriptor) SliceDims(o Orientation) (rows, cols int) {
	z, y, x := d.SpatialDims()
	switch o {
	case OrientationZX:
		return z, x
	case OrientationZY:
		return z, y
	default:
		return y, x
	}
}

// ContextKey identifies "what is being viewed": one volume, one orientation,
// one batch-index combination. Slices are shared between views iff their
// context keys match.
func ContextKey(volumeID string, o Orientation, batch []int) string {
	var b strings.Builder
	b.WriteString(volumeID)
	b.WriteByte('|')
	b.WriteString(string(o))
	b.WriteByte('|')
	b.WriteString(JoinIndices(batch))
	return b.String()
}

// SliceKey identifies one fetchable 2-D slice within a context.
func SliceKey(contextKey string, index int) string {
	return contextKey + "|" + strconv.Itoa(index)
}

// JoinIndices renders batch indices in the wire format used by the server
// ("0,2,1"). Empty input yields the empty string.
func JoinIndices(batch []int) string {
	if len(batch) == 0 {
		return ""
	}
	parts := make([]string, len(batch))
	for i, v := range batch {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ParseIndices parses the wire format produced by JoinIndices.
func ParseIndices(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("volume: invalid index list %q: %w", s, err)
		}
		out = append(out, v)
	}
	return out, nil
}
