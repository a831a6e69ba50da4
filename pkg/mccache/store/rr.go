package store

import (
	"math/rand"
	"sync"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// RRCache evicts a uniformly random entry, ignoring recency and frequency
// entirely. Ported from the original Python RRCache, which samples a
// random key from its key view on eviction; here the key set is gathered
// into a slice and one index is drawn with math/rand.
type RRCache struct {
	base
	mu   sync.Mutex
	data map[string][]byte
	rnd  *rand.Rand
}

func NewRRCache(maxSize int, sizeOf SizeFunc, onMutate MutationFunc) *RRCache {
	c := &RRCache{
		base: newBase(maxSize, sizeOf),
		data: make(map[string][]byte),
		rnd:  rand.New(rand.NewSource(rand.Int63())),
	}
	c.onMutate = onMutate
	return c
}

func (c *RRCache) Len() int { c.mu.Lock(); defer c.mu.Unlock(); return len(c.data) }

func (c *RRCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *RRCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *RRCache) Set(key string, value []byte, propagate bool) error {
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
	c.mu.Unlock()
	c.notify(key, value, false, propagate)
	return nil
}

func (c *RRCache) Delete(key string, propagate bool) {
	c.mu.Lock()
	if _, existed := c.data[key]; existed {
		delete(c.data, key)
		c.accountRemove(key)
	}
	c.mu.Unlock()
	c.notify(key, nil, true, propagate)
}

func (c *RRCache) Pop(key string, propagate bool) ([]byte, bool) {
	c.mu.Lock()
	v, existed := c.data[key]
	if existed {
		delete(c.data, key)
		c.accountRemove(key)
	}
	c.mu.Unlock()
	if existed {
		c.notify(key, nil, true, propagate)
	}
	return v, existed
}

func (c *RRCache) SetDefault(key string, def []byte, propagate bool) []byte {
	c.mu.Lock()
	if v, ok := c.data[key]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()
	_ = c.Set(key, def, propagate)
	return def
}

func (c *RRCache) PopItem() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.popItemLocked()
}

func (c *RRCache) popItemLocked() (string, []byte, error) {
	if len(c.data) == 0 {
		return "", nil, types.ErrCacheEmpty
	}
	pick := c.rnd.Intn(len(c.data))
	var key string
	i := 0
	for k := range c.data {
		if i == pick {
			key = k
			break
		}
		i++
	}
	v := c.data[key]
	delete(c.data, key)
	c.accountRemove(key)
	return key, v, nil
}

// Clear removes every entry, notifying once per removed key exactly as
// Delete would.
func (c *RRCache) Clear(propagate bool) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	c.data = make(map[string][]byte)
	c.sizes = make(map[string]int)
	c.currSize = 0
	c.mu.Unlock()
	for _, key := range keys {
		c.notify(key, nil, true, propagate)
	}
}

func (c *RRCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.data))
	for k := range c.data {
		out = append(out, k)
	}
	return out
}
