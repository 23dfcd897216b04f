package slicecache

import (
	"fmt"
	"testing"
)

func slice(index int) *Slice {
	return &Slice{Index: index, Rows: 1, Cols: 1, Data: []float32{float32(index)}}
}

func TestCacheCapacity(t *testing.T) {
	c := NewCache(0)
	if c.Capacity() != DefaultCapacity {
		t.Fatalf("Capacity = %d, want %d", c.Capacity(), DefaultCapacity)
	}
	for i := 0; i < 20; i++ {
		c.Put(fmt.Sprintf("k%d", i), slice(i))
		if c.Len() > DefaultCapacity {
			t.Fatalf("cache grew to %d entries", c.Len())
		}
	}
}

func TestCacheGetTouches(t *testing.T) {
	// Insert A..G (capacity 7), touch A, insert H: B must be evicted, not A.
	c := NewCache(7)
	keys := []string{"A", "B", "C", "D", "E", "F", "G"}
	for i, k := range keys {
		c.Put(k, slice(i))
	}

	if _, ok := c.Get("A"); !ok {
		t.Fatal("A should be cached")
	}
	c.Put("H", slice(7))

	if _, ok := c.Get("A"); !ok {
		t.Error("A was touched and must survive the eviction")
	}
	if _, ok := c.Get("B"); ok {
		t.Error("B was least recently touched and must be evicted")
	}
	for _, k := range []string{"C", "D", "E", "F", "G", "H"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestCachePutTouches(t *testing.T) {
	// Re-inserting an existing key must refresh its recency too.
	c := NewCache(3)
	c.Put("A", slice(0))
	c.Put("B", slice(1))
	c.Put("C", slice(2))
	c.Put("A", slice(10))
	c.Put("D", slice(3))

	if _, ok := c.Get("B"); ok {
		t.Error("B must be evicted")
	}
	if s, ok := c.Get("A"); !ok || s.Index != 10 {
		t.Error("A must survive with the replaced value")
	}
}

func TestCacheClear(t *testing.T) {
	c := NewCache(7)
	c.Put("A", slice(0))
	c.Put("B", slice(1))
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len after Clear = %d", c.Len())
	}
	if _, ok := c.Get("A"); ok {
		t.Error("cleared entry still retrievable")
	}
	// The recency list must be reset as well: filling up again evicts in
	// insertion order.
	for i := 0; i < 8; i++ {
		c.Put(fmt.Sprintf("k%d", i), slice(i))
	}
	if _, ok := c.Get("k0"); ok {
		t.Error("k0 should have been evicted after refill")
	}
	if c.Len() != 7 {
		t.Errorf("Len = %d", c.Len())
	}
}
