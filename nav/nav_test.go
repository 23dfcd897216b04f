package nav

import (
	"reflect"
	"testing"

	"github.com/fzimmermann89/mrui/volume"
)

func desc(t *testing.T, dims ...int) volume.Descriptor {
	t.Helper()
	d, err := volume.NewDescriptor(dims)
	if err != nil {
		t.Fatalf("NewDescriptor(%v): %v", dims, err)
	}
	return d
}

func TestSetOrientationResetsSlice(t *testing.T) {
	s := NewState(desc(t, 8, 16, 16), volume.OrientationYX)
	s.SetAxis(0, 5)
	if s.SliceIndex() != 5 {
		t.Fatalf("SliceIndex = %d", s.SliceIndex())
	}

	if !s.SetOrientation(volume.OrientationZX) {
		t.Error("orientation switch must report a context change")
	}
	if s.SliceIndex() != 0 {
		t.Errorf("SliceIndex after orientation switch = %d, want 0", s.SliceIndex())
	}
	if s.SetOrientation(volume.OrientationZX) {
		t.Error("no-op orientation switch must not report a change")
	}
}

func TestScrollAxisClamps(t *testing.T) {
	s := NewState(desc(t, 2, 3, 4, 8, 8), volume.OrientationYX)

	// Scroll axis: moves by the sign of delta, never context-changing.
	if s.ScrollAxis(2, 10) {
		t.Error("scroll axis must not be context-changing")
	}
	if s.SliceIndex() != 1 {
		t.Errorf("SliceIndex = %d, want 1 (sign of delta, not magnitude)", s.SliceIndex())
	}
	for i := 0; i < 20; i++ {
		s.ScrollAxis(2, 1)
	}
	if s.SliceIndex() != 3 {
		t.Errorf("SliceIndex = %d, want clamp at 3", s.SliceIndex())
	}
	for i := 0; i < 20; i++ {
		s.ScrollAxis(2, -1)
	}
	if s.SliceIndex() != 0 {
		t.Errorf("SliceIndex = %d, want clamp at 0", s.SliceIndex())
	}
}

func TestScrollAxisBatchClamp(t *testing.T) {
	s := NewState(desc(t, 2, 3, 4, 8, 8), volume.OrientationYX)
	if !s.ScrollAxis(0, 1) {
		t.Error("first step must change the context")
	}
	if s.ScrollAxis(0, 1) {
		t.Error("clamped step must not report a change")
	}
	if got := s.BatchIndices(); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Errorf("BatchIndices = %v", got)
	}
}

func TestSetAxis(t *testing.T) {
	s := NewState(desc(t, 2, 3, 4, 8, 8), volume.OrientationYX)

	if !s.SetAxis(1, 99) {
		t.Error("clamped set that moves the index must report a change")
	}
	if got := s.BatchIndices(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("BatchIndices = %v", got)
	}
	if s.SetAxis(1, 2) {
		t.Error("setting the current value must not report a change")
	}
	if s.SetAxis(2, 3) {
		t.Error("scroll axis must not be context-changing")
	}
	if s.SliceIndex() != 3 {
		t.Errorf("SliceIndex = %d", s.SliceIndex())
	}
	if s.SetAxis(7, 1) || s.SetAxis(-1, 1) {
		t.Error("out-of-range axis must be a no-op")
	}
}

func TestOdometerTickCarries(t *testing.T) {
	// batchDims [2,3], scrollMax 4: from [0,2] slice 3 one forward tick
	// carries through both the slice and the fast batch axis.
	s := NewState(desc(t, 2, 3, 4, 8, 8), volume.OrientationYX)
	s.SetAxis(1, 2)
	s.SetAxis(2, 3)

	if !s.OdometerTick(1) {
		t.Error("carry into the batch axes must report a context change")
	}
	if got := s.BatchIndices(); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Errorf("BatchIndices = %v, want [1 0]", got)
	}
	if s.SliceIndex() != 0 {
		t.Errorf("SliceIndex = %d, want 0", s.SliceIndex())
	}

	// One tick back reverses it exactly.
	if !s.OdometerTick(-1) {
		t.Error("borrow must report a context change")
	}
	if got := s.BatchIndices(); !reflect.DeepEqual(got, []int{0, 2}) {
		t.Errorf("BatchIndices = %v, want [0 2]", got)
	}
	if s.SliceIndex() != 3 {
		t.Errorf("SliceIndex = %d, want 3", s.SliceIndex())
	}
}

func TestOdometerTickWithinSlice(t *testing.T) {
	s := NewState(desc(t, 2, 3, 4, 8, 8), volume.OrientationYX)
	if s.OdometerTick(1) {
		t.Error("a tick that only moves the slice must not report a change")
	}
	if s.SliceIndex() != 1 {
		t.Errorf("SliceIndex = %d", s.SliceIndex())
	}
}

func TestOdometerTickBoundaries(t *testing.T) {
	s := NewState(desc(t, 2, 3, 4, 8, 8), volume.OrientationYX)

	// Backward at the global origin stays put.
	if s.OdometerTick(-1) {
		t.Error("tick at the origin must not report a change")
	}
	if s.SliceIndex() != 0 || !reflect.DeepEqual(s.BatchIndices(), []int{0, 0}) {
		t.Error("origin must be unchanged")
	}

	// Forward at the global end stays put.
	s.SetAxis(0, 1)
	s.SetAxis(1, 2)
	s.SetAxis(2, 3)
	if s.OdometerTick(1) {
		t.Error("tick at the end must not report a change")
	}
	if s.SliceIndex() != 3 || !reflect.DeepEqual(s.BatchIndices(), []int{1, 2}) {
		t.Error("end position must be unchanged")
	}
}

func TestOdometerTickNoBatchDims(t *testing.T) {
	// A plain 3-D volume degenerates to a clamped slice scroll.
	s := NewState(desc(t, 4, 8, 8), volume.OrientationYX)
	for i := 0; i < 10; i++ {
		if s.OdometerTick(1) {
			t.Fatal("3-D odometer must never report a context change")
		}
	}
	if s.SliceIndex() != 3 {
		t.Errorf("SliceIndex = %d, want 3", s.SliceIndex())
	}
}

func TestContextKeyFollowsState(t *testing.T) {
	s := NewState(desc(t, 2, 3, 4, 8, 8), volume.OrientationYX)
	if got := s.ContextKey("job1"); got != "job1|yx|0,0" {
		t.Errorf("ContextKey = %q", got)
	}
	s.SetAxis(1, 2)
	s.SetOrientation(volume.OrientationZY)
	if got := s.ContextKey("job1"); got != "job1|zy|0,2" {
		t.Errorf("ContextKey = %q", got)
	}
}
