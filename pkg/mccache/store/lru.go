package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// LRUCache evicts the least recently used entry. Unlike the other
// variants, this one is not hand-rolled: hashicorp/golang-lru already
// solves ordered eviction cleanly, so LRUCache is a thin adapter over it
// rather than a reimplementation of the same doubly-linked-list dance.
type LRUCache struct {
	base
	mu    sync.Mutex
	inner *lru.Cache[string, []byte]
}

// NewLRUCache creates an LRU-eviction cache of the given capacity. maxSize
// here counts entries, not abstract size units, since hashicorp/golang-lru
// bounds by entry count; a custom sizeOf is still honoured for the
// ErrValueTooLarge check and CurrSize reporting.
func NewLRUCache(maxSize int, sizeOf SizeFunc, onMutate MutationFunc) *LRUCache {
	capacity := maxSize
	if capacity <= 0 {
		capacity = 1
	}
	inner, _ := lru.New[string, []byte](capacity)
	c := &LRUCache{
		base:  newBase(maxSize, sizeOf),
		inner: inner,
	}
	c.onMutate = onMutate
	return c
}

func (c *LRUCache) Len() int { c.mu.Lock(); defer c.mu.Unlock(); return c.inner.Len() }

func (c *LRUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Get(key)
}

func (c *LRUCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Contains(key)
}

func (c *LRUCache) Set(key string, value []byte, propagate bool) error {
	c.mu.Lock()
	size := c.sizeOf(value)
	if size > c.maxSize {
		c.mu.Unlock()
		return types.ErrValueTooLarge
	}
	_, hadKey := c.inner.Peek(key)
	evicted := c.inner.Add(key, value)
	if hadKey {
		c.accountInsert(key, size)
	} else {
		c.accountInsert(key, size)
		if evicted {
			// hashicorp/golang-lru evicted its own LRU entry; our size
			// tally must follow. We don't know which key it dropped
			// without a second lookup, so reconcile against inner.Keys().
			c.reconcileSizes()
		}
	}
	c.mu.Unlock()
	c.notify(key, value, false, propagate)
	return nil
}

// reconcileSizes drops size bookkeeping for any key no longer held by the
// inner LRU, called after an Add that may have silently evicted. Must be
// called with mu held.
func (c *LRUCache) reconcileSizes() {
	live := make(map[string]struct{}, c.inner.Len())
	for _, k := range c.inner.Keys() {
		live[k] = struct{}{}
	}
	for k := range c.sizes {
		if _, ok := live[k]; !ok {
			c.accountRemove(k)
		}
	}
}

func (c *LRUCache) Delete(key string, propagate bool) {
	c.mu.Lock()
	existed := c.inner.Remove(key)
	if existed {
		c.accountRemove(key)
	}
	c.mu.Unlock()
	c.notify(key, nil, true, propagate)
}

func (c *LRUCache) Pop(key string, propagate bool) ([]byte, bool) {
	c.mu.Lock()
	v, existed := c.inner.Peek(key)
	if existed {
		c.inner.Remove(key)
		c.accountRemove(key)
	}
	c.mu.Unlock()
	if existed {
		c.notify(key, nil, true, propagate)
	}
	return v, existed
}

func (c *LRUCache) SetDefault(key string, def []byte, propagate bool) []byte {
	c.mu.Lock()
	if v, ok := c.inner.Peek(key); ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()
	_ = c.Set(key, def, propagate)
	return def
}

func (c *LRUCache) PopItem() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, value, ok := c.inner.RemoveOldest()
	if !ok {
		return "", nil, types.ErrCacheEmpty
	}
	c.accountRemove(key)
	return key, value, nil
}

// Clear removes every entry, notifying once per removed key exactly as
// Delete would.
func (c *LRUCache) Clear(propagate bool) {
	c.mu.Lock()
	keys := c.inner.Keys()
	c.inner.Purge()
	c.sizes = make(map[string]int)
	c.currSize = 0
	c.mu.Unlock()
	for _, key := range keys {
		c.notify(key, nil, true, propagate)
	}
}

func (c *LRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Keys()
}
