package store

import (
	"sync"
	"time"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// TTLCache is a FIFO-ordered cache where every entry additionally expires
// a fixed duration after insertion, whichever comes first. Ported from the
// original Python TTLCache, which pairs an OrderedDict of insertion order
// with a per-key expiry time and lazily purges stale entries on access.
type TTLCache struct {
	base
	mu     sync.Mutex
	ttl    time.Duration
	order  *orderList
	data   map[string][]byte
	expiry map[string]time.Time
	now    func() time.Time
}

// NewTTLCache creates a cache whose entries expire ttl after insertion. now
// defaults to time.Now; tests may override it for deterministic expiry.
func NewTTLCache(maxSize int, ttl time.Duration, sizeOf SizeFunc, onMutate MutationFunc) *TTLCache {
	c := &TTLCache{
		base:   newBase(maxSize, sizeOf),
		ttl:    ttl,
		order:  newOrderList(),
		data:   make(map[string][]byte),
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
	c.onMutate = onMutate
	return c
}

// Expire purges entries whose expiry is at or before now. Implements
// Expirable so the housekeeper can sweep caches it doesn't otherwise touch.
func (c *TTLCache) Expire(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(now)
}

func (c *TTLCache) expireLocked(now time.Time) {
	for _, key := range c.order.keys() {
		exp, ok := c.expiry[key]
		if !ok || exp.After(now) {
			continue
		}
		delete(c.data, key)
		delete(c.expiry, key)
		c.accountRemove(key)
		c.order.remove(key)
	}
}

func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return len(c.data)
}

func (c *TTLCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	v, ok := c.data[key]
	return v, ok
}

func (c *TTLCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	_, ok := c.data[key]
	return ok
}

func (c *TTLCache) Set(key string, value []byte, propagate bool) error {
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
	c.expiry[key] = now.Add(c.ttl)
	c.order.moveToBack(key)
	c.mu.Unlock()
	c.notify(key, value, false, propagate)
	return nil
}

func (c *TTLCache) Delete(key string, propagate bool) {
	c.mu.Lock()
	if _, existed := c.data[key]; existed {
		delete(c.data, key)
		delete(c.expiry, key)
		c.accountRemove(key)
		c.order.remove(key)
	}
	c.mu.Unlock()
	c.notify(key, nil, true, propagate)
}

func (c *TTLCache) Pop(key string, propagate bool) ([]byte, bool) {
	c.mu.Lock()
	v, existed := c.data[key]
	if existed {
		delete(c.data, key)
		delete(c.expiry, key)
		c.accountRemove(key)
		c.order.remove(key)
	}
	c.mu.Unlock()
	if existed {
		c.notify(key, nil, true, propagate)
	}
	return v, existed
}

func (c *TTLCache) SetDefault(key string, def []byte, propagate bool) []byte {
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

func (c *TTLCache) PopItem() (string, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return c.popItemLocked()
}

func (c *TTLCache) popItemLocked() (string, []byte, error) {
	key, ok := c.order.front()
	if !ok {
		return "", nil, types.ErrCacheEmpty
	}
	v := c.data[key]
	delete(c.data, key)
	delete(c.expiry, key)
	c.accountRemove(key)
	c.order.remove(key)
	return key, v, nil
}

// Clear removes every live entry, notifying once per removed key exactly
// as Delete would. Already-expired entries are dropped silently, same as
// a lazy expiry sweep would have done on the next access.
func (c *TTLCache) Clear(propagate bool) {
	c.mu.Lock()
	c.expireLocked(c.now())
	keys := c.order.keys()
	c.data = make(map[string][]byte)
	c.expiry = make(map[string]time.Time)
	c.sizes = make(map[string]int)
	c.currSize = 0
	c.order = newOrderList()
	c.mu.Unlock()
	for _, key := range keys {
		c.notify(key, nil, true, propagate)
	}
}

func (c *TTLCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked(c.now())
	return c.order.keys()
}
