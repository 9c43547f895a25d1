package cache

import "testing"

func TestLRUEvictsOldest(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b=2, got %v ok=%v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("expected c=3, got %v ok=%v", v, ok)
	}
}

func TestLRUTouchOnGetProtectsFromEviction(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")    // a is now most-recently-used
	c.Put("c", 3) // evicts "b", not "a"

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1 to survive, got %v ok=%v", v, ok)
	}
}

func TestLRUPutUpdatesExistingWithoutGrowing(t *testing.T) {
	c := New[string, int](2)
	c.Put("a", 1)
	c.Put("a", 2)
	if c.Len() != 1 {
		t.Fatalf("expected single entry, got %d", c.Len())
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("expected updated value 2, got %d", v)
	}
}

func TestLRUUnboundedWhenCapacityNonPositive(t *testing.T) {
	c := New[int, int](0)
	for i := 0; i < 100; i++ {
		c.Put(i, i*i)
	}
	if c.Len() != 100 {
		t.Fatalf("expected unbounded cache to hold all entries, got %d", c.Len())
	}
}
