package store

import (
	"sync"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// LFUCache evicts the entry touched the fewest times. Ported from the
// original Python LFUCache (a collections.Counter decremented on every
// access), re-expressed with a plain ascending counter since Go has no
// Counter.most_common helper; PopItem scans for the minimum.
type LFUCache struct {
	base
	mu      sync.Mutex
	data    map[string][]byte
	counter map[string]int64
}

func NewLFUCache(maxSize int, sizeOf SizeFunc, onMutate MutationFunc) *LFUCache {
	c := &LFUCache{
		base:    newBase(maxSize, sizeOf),
		data:    make(map[string][]byte),
		counter: make(map[string]int64),
	}
	c.onMutate = onMutate
	return c
}

func (c *LFUCache) Len() int { c.mu.Lock(); defer c.mu.Unlock(); return len(c.data) }

func (c *LFUCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.counter[key]++
	}
	return v, ok
}

func (c *LFUCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *LFUCache) Set(key string, value []byte, propagate bool) error {
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
	c.counter[key]++
	c.mu.Unlock()
	c.notify(key, value, false, propagate)
	return nil
}

func (c *LFUCache) Delete(key string, propagate bool) {
	c.mu.Lock()
	if _, existed := c.data[key]; existed {
		delete(c.data, key)
		delete(c.counter, key)
		c.accountRemove(key)
	}
	c.mu.Unlock()
	c.notify(key, nil, true, propagate)
}

func (c *LFUCache) Pop(key string, propagate bool) ([]byte, bool) {
	c.mu.Lock()
	v, existed := c.data[key]
	if existed {
		delete(c.data, key)
		delete(c.counter, key)
		c.accountRemove(key)
	}
	c.mu.Unlock()
	if existed {
		c.notify(key, nil, true, propagate)
	}
	return v, existed
}

func (c *LFUCache) SetDefault(key string, def []byte, propagate bool) []byte {
	c.mu.Lock()
	if v, ok := c.data[key]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()
	_ = c.Set(key, def, propagate)
	return def
}

func (c *LFUCache) PopItem() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popItemLocked()
}

func (c *LFUCache) popItemLocked() (string, []byte, error) {
	if len(c.data) == 0 {
		return "", nil, types.ErrCacheEmpty
	}
	var minKey string
	var minCount int64
	first := true
	for k, cnt := range c.counter {
		if first || cnt < minCount {
			minKey, minCount, first = k, cnt, false
		}
	}
	v := c.data[minKey]
	delete(c.data, minKey)
	delete(c.counter, minKey)
	c.accountRemove(minKey)
	return minKey, v, nil
}

// Clear removes every entry, notifying once per removed key exactly as
// Delete would.
func (c *LFUCache) Clear(propagate bool) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	c.data = make(map[string][]byte)
	c.counter = make(map[string]int64)
	c.sizes = make(map[string]int)
	c.currSize = 0
	c.mu.Unlock()
	for _, key := range keys {
		c.notify(key, nil, true, propagate)
	}
}

func (c *LFUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	return out
}
