package quality

import (
	"container/list"
	"sync"
)

// Cache keeps the last computed metric record per element with a dirty
// flag. It is purely a performance layer: a miss or a dirty entry is
// simply recomputed by the caller. Memory is bounded; when the resident
// size would exceed the configured budget, the least recently used entries
// are evicted.
type Cache struct {
	mu       sync.Mutex
	capBytes uint64
	entries  map[int]*list.Element
	ll       *list.List // front = most recently used
}

type cacheEntry struct {
	key   int
	m     Metrics
	dirty bool
}

// entryBytes is a conservative per-entry resident size estimate: the
// record itself, the score slice backing array, map and list overhead.
const entryBytes = 256

// NewCache builds a cache bounded to capBytes of resident entries. A zero
// budget still admits one entry so Get/Put keep working.
func NewCache(capBytes uint64) *Cache {
	return &Cache{
		capBytes: capBytes,
		entries:  make(map[int]*list.Element),
		ll:       list.New(),
	}
}

// Get returns the cached record unless it is absent or dirty
func (c *Cache) Get(k int) (Metrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[k]
	if !ok {
		return Metrics{}, false
	}
	ce := el.Value.(*cacheEntry)
	if ce.dirty {
		return Metrics{}, false
	}
	c.ll.MoveToFront(el)
	return ce.m, true
}

// Put stores a freshly computed record and evicts LRU entries over budget
func (c *Cache) Put(k int, m Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		ce := el.Value.(*cacheEntry)
		ce.m, ce.dirty = m, false
		c.ll.MoveToFront(el)
		return
	}
	c.entries[k] = c.ll.PushFront(&cacheEntry{key: k, m: m})
	for uint64(c.ll.Len())*entryBytes > c.capBytes && c.ll.Len() > 1 {
		back := c.ll.Back()
		delete(c.entries, back.Value.(*cacheEntry).key)
		c.ll.Remove(back)
	}
}

// Invalidate marks the element's record dirty without releasing its slot
func (c *Cache) Invalidate(k int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[k]; ok {
		el.Value.(*cacheEntry).dirty = true
	}
}

// Len reports the resident entry count
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
