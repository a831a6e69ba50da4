package store

import (
	"container/heap"
	"sync"
	"time"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// TTUFunc computes the absolute time at which key/value stops being valid,
// given the time it was set. Mirrors the callable `ttu(key, value, time)`
// argument accepted by the original Python TLRUCache, letting different
// keys carry different lifetimes instead of one cache-wide TTL.
type TTUFunc func(key string, value []byte, setAt time.Time) time.Time

// tlruEntry is one slot in the expiry min-heap.
type tlruEntry struct {
	key    string
	expire time.Time
	index  int
}

type tlruHeap []*tlruEntry

func (h tlruHeap) Len() int            { return len(h) }
func (h tlruHeap) Less(i, j int) bool  { return h[i].expire.Before(h[j].expire) }
func (h tlruHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *tlruHeap) Push(x interface{}) {
	e := x.(*tlruEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *tlruHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TLRUCache combines least-recently-used eviction for entries still within
// their time-to-use with eager expiry of entries that have aged out,
// tracked via container/heap the same way the original Python
// implementation leans on heapq rather than rescanning every entry. This
// is McCache's default store under the pessimistic coherence posture.
type TLRUCache struct {
	base
	mu      sync.Mutex
	ttu     TTUFunc
	order   *orderList
	data    map[string][]byte
	entries map[string]*tlruEntry
	heap    tlruHeap
	now     func() time.Time
}

// NewTLRUCache creates a cache where each entry's expiry is computed by
// ttu at insertion time. A nil ttu defaults every entry to never expire
// from the heap's perspective, leaving pure LRU eviction in effect.
func NewTLRUCache(maxSize int, ttu TTUFunc, sizeOf SizeFunc, onMutate MutationFunc) *TLRUCache {
	if ttu == nil {
		ttu = func(string, []byte, time.Time) time.Time { return time.Unix(1<<62, 0) }
	}
	c := &TLRUCache{
		base:    newBase(maxSize, sizeOf),
		ttu:     ttu,
		order:   newOrderList(),
		data:    make(map[string][]byte),
		entries: make(map[string]*tlruEntry),
		now:     time.Now,
	}
	c.onMutate = onMutate
	heap.Init(&c.heap)
	return c
}

// Expire purges entries whose computed expiry is at or before now.
func (c *TLRUCache) Expire(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(now)
}

func (c *TLRUCache) expireLocked(now time.Time) {
	for c.heap.Len() > 0 {
		top := c.heap[0]
		if top.expire.After(now) {
			break
		}
		heap.Pop(&c.heap)
		delete(c.data, top.key)
		delete(c.entries, top.key)
		c.accountRemove(top.key)
		c.order.remove(top.key)
	}
}

func (c *TLRUCache) removeEntry(key string) {
	if e, ok := c.entries[key]; ok {
		heap.Remove(&c.heap, e.index)
		delete(c.entries, key)
	}
}

func (c *TLRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return len(c.data)
}

func (c *TLRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	v, ok := c.data[key]
	if ok {
		c.order.moveToBack(key)
	}
	return v, ok
}

func (c *TLRUCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	_, ok := c.data[key]
	return ok
}

func (c *TLRUCache) Set(key string, value []byte, propagate bool) error {
	c.mu.Lock()
	size := c.sizeOf(value)
	if size > c.maxSize {
		c.mu.Unlock()
		return types.ErrValueTooLarge
	}
	now := c.now()
	c.expireLocked(now)
	for c.currSize+size > c.maxSize && len(c.data) > 0 {
		if _, _, err := c.popItemLocked(); err != nil {
			break
		}
	}
	c.accountInsert(key, size)
	c.data[key] = value
	c.removeEntry(key)
	e := &tlruEntry{key: key, expire: c.ttu(key, value, now)}
	heap.Push(&c.heap, e)
	c.entries[key] = e
	c.order.moveToBack(key)
	c.mu.Unlock()
	c.notify(key, value, false, propagate)
	return nil
}

func (c *TLRUCache) Delete(key string, propagate bool) {
	c.mu.Lock()
	if _, existed := c.data[key]; existed {
		delete(c.data, key)
		c.accountRemove(key)
		c.order.remove(key)
		c.removeEntry(key)
	}
	c.mu.Unlock()
	c.notify(key, nil, true, propagate)
}

func (c *TLRUCache) Pop(key string, propagate bool) ([]byte, bool) {
	c.mu.Lock()
	v, existed := c.data[key]
	if existed {
		delete(c.data, key)
		c.accountRemove(key)
		c.order.remove(key)
		c.removeEntry(key)
	}
	c.mu.Unlock()
	if existed {
		c.notify(key, nil, true, propagate)
	}
	return v, existed
}

func (c *TLRUCache) SetDefault(key string, def []byte, propagate bool) []byte {
	c.mu.Lock()
	c.expireLocked(c.now())
	if v, ok := c.data[key]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()
	_ = c.Set(key, def, propagate)
	return def
}

func (c *TLRUCache) PopItem() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return c.popItemLocked()
}

// popItemLocked evicts the least recently used surviving entry, front of
// the recency list.
func (c *TLRUCache) popItemLocked() (string, []byte, error) {
	key, ok := c.order.front()
	if !ok {
		return "", nil, types.ErrCacheEmpty
	}
	v := c.data[key]
	delete(c.data, key)
	c.accountRemove(key)
	c.order.remove(key)
	c.removeEntry(key)
	return key, v, nil
}

// Clear removes every live entry, notifying once per removed key exactly
// as Delete would. Already-expired entries are dropped silently.
func (c *TLRUCache) Clear(propagate bool) {
	c.mu.Lock()
	c.expireLocked(c.now())
	keys := c.order.keys()
	c.data = make(map[string][]byte)
	c.entries = make(map[string]*tlruEntry)
	c.heap = nil
	heap.Init(&c.heap)
	c.sizes = make(map[string]int)
	c.currSize = 0
	c.order = newOrderList()
	c.mu.Unlock()
	for _, key := range keys {
		c.notify(key, nil, true, propagate)
	}
}

func (c *TLRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return c.order.keys()
}
