package parser

import (
	"container/list"
	"sync"
)

// LRUCache is a thread-safe, capacity-bounded least-recently-used cache.
// onEvict, when set, sees every value that leaves the cache: evictions,
// explicit removals, replacements and Clear.
type LRUCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most-recently used
	onEvict  func(K, V)
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// NewLRUCache creates a cache; capacities <= 0 are normalised to 1.
func NewLRUCache[K comparable, V any](capacity int, onEvict func(K, V)) *LRUCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		onEvict:  onEvict,
	}
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry[K, V]).value, true
}

// Put inserts or replaces key, evicting the least-recently-used entry when
// the cache is full.
func (c *LRUCache[K, V]) Put(key K, value V) {
	var evicted []*lruEntry[K, V]

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		entry := el.Value.(*lruEntry[K, V])
		evicted = append(evicted, &lruEntry[K, V]{key: key, value: entry.value})
		entry.value = value
	} else {
		if c.order.Len() >= c.capacity {
			if back := c.evictLeastRecentLocked(); back != nil {
				evicted = append(evicted, back)
			}
		}
		c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Evict removes key; missing keys are ignored.
func (c *LRUCache[K, V]) Evict(key K) {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	c.order.Remove(el)
	delete(c.items, key)
	c.mu.Unlock()

	c.notify([]*lruEntry[K, V]{el.Value.(*lruEntry[K, V])})
}

func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache[K, V]) Cap() int {
	return c.capacity
}

func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	evicted := make([]*lruEntry[K, V], 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		evicted = append(evicted, el.Value.(*lruEntry[K, V]))
	}
	c.order.Init()
	c.items = make(map[K]*list.Element, c.capacity)
	c.mu.Unlock()

	c.notify(evicted)
}

// evictLeastRecentLocked removes the back element. Caller must hold c.mu.
func (c *LRUCache[K, V]) evictLeastRecentLocked() *lruEntry[K, V] {
	back := c.order.Back()
	if back == nil {
		return nil
	}
	c.order.Remove(back)
	entry := back.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)
	return entry
}

func (c *LRUCache[K, V]) notify(entries []*lruEntry[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, entry := range entries {
		c.onEvict(entry.key, entry.value)
	}
}
