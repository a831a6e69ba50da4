package store

import (
	"sync"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// FIFOCache evicts the entry that was least recently set, never reordering
// on read. Ported from the original Python FIFOCache, which moves a key to
// the end of its ordering on every Set (including updates) but never on
// Get.
type FIFOCache struct {
	base
	mu    sync.Mutex
	order *orderList
	data  map[string][]byte
}

// NewFIFOCache creates a FIFO-eviction cache of the given capacity.
func NewFIFOCache(maxSize int, sizeOf SizeFunc, onMutate MutationFunc) *FIFOCache {
	c := &FIFOCache{
		base:  newBase(maxSize, sizeOf),
		order: newOrderList(),
		data:  make(map[string][]byte),
	}
	c.onMutate = onMutate
	return c
}

func (c *FIFOCache) Len() int { c.mu.Lock(); defer c.mu.Unlock(); return len(c.data) }

func (c *FIFOCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *FIFOCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *FIFOCache) Set(key string, value []byte, propagate bool) error {
	c.mu.Lock()
	size := c.sizeOf(value)
	if size > c.maxSize {
		c.mu.Unlock()
		return types.ErrValueTooLarge
	}
	for c.currSize+size > c.maxSize && len(c.data) > 0 {
		if _, _, err := c.popItemLocked(); err != nil {
			break
		}
	}
	c.accountInsert(key, size)
	c.data[key] = value
	c.order.moveToBack(key)
	c.mu.Unlock()
	c.notify(key, value, false, propagate)
	return nil
}

func (c *FIFOCache) Delete(key string, propagate bool) {
	c.mu.Lock()
	if _, existed := c.data[key]; existed {
		delete(c.data, key)
		c.accountRemove(key)
		c.order.remove(key)
	}
	c.mu.Unlock()
	// A delete of an absent key is still a no-op worth acknowledging: the
	// caller's intent (the key should not exist) already holds.
	c.notify(key, nil, true, propagate)
}

func (c *FIFOCache) Pop(key string, propagate bool) ([]byte, bool) {
	c.mu.Lock()
	v, existed := c.data[key]
	if existed {
		delete(c.data, key)
		c.accountRemove(key)
		c.order.remove(key)
	}
	c.mu.Unlock()
	if existed {
		c.notify(key, nil, true, propagate)
	}
	return v, existed
}

func (c *FIFOCache) SetDefault(key string, def []byte, propagate bool) []byte {
	c.mu.Lock()
	if v, ok := c.data[key]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()
	_ = c.Set(key, def, propagate)
	return def
}

func (c *FIFOCache) PopItem() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popItemLocked()
}

func (c *FIFOCache) popItemLocked() (string, []byte, error) {
	key, ok := c.order.front()
	if !ok {
		return "", nil, types.ErrCacheEmpty
	}
	v := c.data[key]
	delete(c.data, key)
	c.accountRemove(key)
	c.order.remove(key)
	return key, v, nil
}

// Clear removes every entry, notifying once per removed key exactly as
// Delete would.
func (c *FIFOCache) Clear(propagate bool) {
	c.mu.Lock()
	keys := c.order.keys()
	c.data = make(map[string][]byte)
	c.sizes = make(map[string]int)
	c.currSize = 0
	c.order = newOrderList()
	c.mu.Unlock()
	for _, key := range keys {
		c.notify(key, nil, true, propagate)
	}
}

func (c *FIFOCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.keys()
}
