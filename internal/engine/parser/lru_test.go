package parser

import (
	"fmt"
	"sync"
	"testing"
)

func TestLRUCache_GetPut(t *testing.T) {
	c := NewLRUCache[string, int](3, nil)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	if c.Len() != 3 {
		t.Fatalf("expected len 3, got %d", c.Len())
	}
	for k, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		v, ok := c.Get(k)
		if !ok || v != want {
			t.Fatalf("key %q: want %d got %d (ok=%v)", k, want, v, ok)
		}
	}
}

func TestLRUCache_EvictsLeastRecent(t *testing.T) {
	var evicted []string
	c := NewLRUCache[string, int](2, func(k string, _ int) {
		evicted = append(evicted, k)
	})

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected 'b' to be evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected eviction hook for 'b', got %v", evicted)
	}
}

func TestLRUCache_ReplaceNotifiesOldValue(t *testing.T) {
	var seen []int
	c := NewLRUCache[string, int](2, func(_ string, v int) {
		seen = append(seen, v)
	})

	c.Put("a", 1)
	c.Put("a", 2)

	if v, _ := c.Get("a"); v != 2 {
		t.Fatalf("expected updated value 2, got %d", v)
	}
	if c.Len() != 1 {
		t.Fatalf("expected len 1 after update, got %d", c.Len())
	}
	if len(seen) != 1 || seen[0] != 1 {
		t.Fatalf("expected hook for replaced value 1, got %v", seen)
	}
}

func TestLRUCache_EvictAndClear(t *testing.T) {
	count := 0
	c := NewLRUCache[string, int](4, func(string, int) { count++ })
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	c.Evict("missing")
	c.Evict("a")
	if count != 1 || c.Len() != 2 {
		t.Fatalf("expected one eviction and len 2, got count=%d len=%d", count, c.Len())
	}

	c.Clear()
	if count != 3 || c.Len() != 0 {
		t.Fatalf("expected all entries notified on clear, got count=%d len=%d", count, c.Len())
	}
}

func TestLRUCache_ZeroCapacity(t *testing.T) {
	c := NewLRUCache[int, int](0, nil)
	if c.Cap() != 1 {
		t.Fatalf("expected capacity normalised to 1, got %d", c.Cap())
	}
	c.Put(1, 1)
	c.Put(2, 2)
	if c.Len() != 1 {
		t.Fatalf("expected len 1, got %d", c.Len())
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := NewLRUCache[string, int](64, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				c.Put(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 64 {
		t.Fatalf("cache grew beyond capacity: %d", c.Len())
	}
}
