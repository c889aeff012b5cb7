package cache

import "testing"

func TestLRUEvictsOldest(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	_, _ = c.Get("a") // a becomes most-recent
	c.Put("c", 3)     // should evict b

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a present, got %v ok=%v", v, ok)
	}
}

func TestLRUStructKeys(t *testing.T) {
	type key struct {
		path string
		line int
	}
	c := NewLRU[key, []string](4)
	c.Put(key{"/src/a.cc", 3}, []string{"x"})
	c.Put(key{"/src/a.cc", 3}, []string{"x", "y"})
	if c.Len() != 1 {
		t.Fatalf("len=%d", c.Len())
	}
	v, ok := c.Get(key{"/src/a.cc", 3})
	if !ok || len(v) != 2 {
		t.Fatalf("v=%v ok=%v", v, ok)
	}
	if _, ok := c.Get(key{"/src/a.cc", 4}); ok {
		t.Fatal("distinct key must miss")
	}
}

func TestLRUNilReceiver(t *testing.T) {
	var c *LRU[string, int]
	c.Put("a", 1)
	if _, ok := c.Get("a"); ok {
		t.Fatal("nil cache must miss")
	}
	if c.Len() != 0 {
		t.Fatal("nil cache must be empty")
	}
}
