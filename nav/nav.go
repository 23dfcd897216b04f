// Package nav owns the viewer's navigation state: orientation, one index
// per batch dimension and the slice index along the scroll axis.
//
// Gestures mutate the state through a small set of transitions; each
// transition reports whether it changed the viewing context (and therefore
// invalidates every cached slice) or only moved within the current context.
// The odometer transition treats all indices as one mixed-radix counter so
// a single scroll gesture can roll through every batch combination.
package nav

import "github.com/fzimmermann89/mrui/volume"

// State is the live navigation state of one viewer.
// State is not safe for concurrent use; the viewer serializes access.
type State struct {
	desc        volume.Descriptor
	orientation volume.Orientation
	batch       []int
	slice       int

	vmin, vmax float32
	colormap   string
}

// NewState creates a navigation state at the origin of the given volume.
func NewState(desc volume.Descriptor, o volume.Orientation) *State {
	return &State{
		desc:        desc,
		orientation: o,
		batch:       make([]int, len(desc.BatchDims())),
	}
}

// Orientation returns the current orientation.
func (s *State) Orientation() volume.Orientation { return s.orientation }

// BatchIndices returns a copy of the batch indices.
func (s *State) BatchIndices() []int {
	cp := make([]int, len(s.batch))
	copy(cp, s.batch)
	return cp
}

// SliceIndex returns the index along the scroll axis.
func (s *State) SliceIndex() int { return s.slice }

// ScrollMax returns the number of slices along the current scroll axis.
func (s *State) ScrollMax() int { return s.desc.ScrollMax(s.orientation) }

// AxisCount returns the number of navigable axes: every batch dimension
// plus the scroll axis. The scroll axis is the last one.
func (s *State) AxisCount() int { return len(s.batch) + 1 }

// ContextKey returns the context key of the current view of a volume.
func (s *State) ContextKey(volumeID string) string {
	return volume.ContextKey(volumeID, s.orientation, s.batch)
}

// Window returns the current display window.
func (s *State) Window() (vmin, vmax float32) { return s.vmin, s.vmax }

// SetWindow sets the display window. Not a context-changing mutation.
func (s *State) SetWindow(vmin, vmax float32) {
	s.vmin, s.vmax = vmin, vmax
}

// Colormap returns the current colormap name.
func (s *State) Colormap() string { return s.colormap }

// SetColormap sets the colormap name. Not a context-changing mutation.
func (s *State) SetColormap(name string) { s.colormap = name }

// SetOrientation switches the slicing orientation and resets the slice
// index to 0. Reports whether the context changed.
func (s *State) SetOrientation(o volume.Orientation) (contextChanged bool) {
	if o == s.orientation {
		return false
	}
	s.orientation = o
	s.slice = 0
	return true
}

// ScrollAxis moves one axis by the sign of delta, clamped to the axis
// range. Batch axes are context-changing; the scroll axis is not.
func (s *State) ScrollAxis(axis, delta int) (contextChanged bool) {
	if delta == 0 || axis < 0 || axis >= s.AxisCount() {
		return false
	}
	step := 1
	if delta < 0 {
		step = -1
	}
	if axis == len(s.batch) {
		s.slice = clamp(s.slice+step, 0, s.ScrollMax()-1)
		return false
	}
	dims := s.desc.BatchDims()
	old := s.batch[axis]
	s.batch[axis] = clamp(old+step, 0, dims[axis]-1)
	return s.batch[axis] != old
}

// SetAxis sets one axis to an absolute value, clamped to the axis range.
// Same context-change rule as ScrollAxis.
func (s *State) SetAxis(axis, value int) (contextChanged bool) {
	if axis < 0 || axis >= s.AxisCount() {
		return false
	}
	if axis == len(s.batch) {
		s.slice = clamp(value, 0, s.ScrollMax()-1)
		return false
	}
	dims := s.desc.BatchDims()
	old := s.batch[axis]
	s.batch[axis] = clamp(value, 0, dims[axis]-1)
	return s.batch[axis] != old
}

// OdometerTick advances the combined [batch..., slice] counter by one in
// the given direction (+1 forward, -1 backward), treating the axes as a
// mixed-radix number with the spatial axis fastest. On overflow a digit
// wraps and the carry moves to the next slower axis; at the ends of the
// full range the carry falls off and the remaining digits stay.
// Reports whether any batch index actually changed.
func (s *State) OdometerTick(dir int) (contextChanged bool) {
	if dir == 0 {
		return false
	}
	step := 1
	if dir < 0 {
		step = -1
	}

	radix := append(s.desc.BatchDims(), s.ScrollMax())
	digits := append(s.BatchIndices(), s.slice)

	carry := step
	for i := len(digits) - 1; i >= 0 && carry != 0; i-- {
		d := digits[i] + carry
		switch {
		case d >= radix[i]:
			digits[i] = 0
			carry = 1
		case d < 0:
			digits[i] = radix[i] - 1
			carry = -1
		default:
			digits[i] = d
			carry = 0
		}
	}
	if carry != 0 {
		// The whole counter would wrap around; stay at the boundary.
		return false
	}

	for i := range s.batch {
		if s.batch[i] != digits[i] {
			contextChanged = true
		}
		s.batch[i] = digits[i]
	}
	s.slice = digits[len(digits)-1]
	return contextChanged
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
