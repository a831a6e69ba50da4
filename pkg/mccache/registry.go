package mccache

import (
	"fmt"
	"sync"
	"time"

	"github.com/mccache/mccache/pkg/mccache/store"
	"github.com/mccache/mccache/pkg/mccache/types"
	"github.com/mccache/mccache/pkg/mccache/wire"
)

// registry is the process-wide named-cache directory, one per
// Coordinator. Grounded in the named-Group singleton pattern common to
// in-process distributed caches: first caller to name a cache creates it,
// every later caller gets the same instance back.
type registry struct {
	mu     sync.Mutex
	caches map[string]store.Cache
	newDefault func(name string) store.Cache
	onCreate   func(name string)
}

func newRegistry(newDefault func(name string) store.Cache, onCreate func(name string)) *registry {
	return &registry{
		caches:     make(map[string]store.Cache),
		newDefault: newDefault,
		onCreate:   onCreate,
	}
}

// GetOrCreate returns the named cache, creating it on first use and
// announcing it via onCreate (which enqueues an INI operation), mirroring
// the original implementation's get_cache helper. When override is non-nil,
// it is registered in place of the registry's default constructor, letting
// a caller put a single namespace on a different eviction variant than the
// rest of the process; onMutate is (re)wired onto it either way, so the
// override still propagates through this process's transport. override is
// ignored once name is already registered.
func (r *registry) GetOrCreate(name string, override store.Cache, onMutate store.MutationFunc) store.Cache {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[name]; ok {
		return c
	}
	c := override
	if c == nil {
		// r.newDefault already wires its own propagation hook at
		// construction time; only a caller-supplied override needs it
		// rebound here.
		c = r.newDefault(name)
	} else {
		store.AssignMutationFunc(c, onMutate)
	}
	store.AssignName(c, name)
	r.caches[name] = c
	r.onCreate(name)
	return c
}

// Lookup returns the named cache without creating it.
func (r *registry) Lookup(name string) (store.Cache, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[name]
	return c, ok
}

// Names returns every registered cache name.
func (r *registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.caches))
	for name := range r.caches {
		out = append(out, name)
	}
	return out
}

// Apply implements engine.Registry: it applies a received operation to the
// named cache without re-propagating it, creating the cache if this is the
// first traffic seen for that namespace (a peer may mirror a namespace it
// has never locally created).
func (r *registry) Apply(namespace string, op types.WireMessage) error {
	c := r.GetOrCreate(namespace, nil, nil)
	key := string(op.Key)
	switch op.Code {
	case types.DEL:
		c.Delete(key, false)
		return nil
	case types.PUT, types.UPD:
		if op.Value != nil && op.CRC != "" {
			if sum := wire.Checksum(op.Value); sum != op.CRC {
				return fmt.Errorf("checksum mismatch for %s.%s: got %s want %s", namespace, key, sum, op.CRC)
			}
		}
		return c.Set(key, op.Value, false)
	default:
		return fmt.Errorf("%s is not a propagatable opcode", op.Code)
	}
}

// Inspect answers a diagnostic INQ against an already-registered cache: the
// checksum of a single key when key is non-empty, or a checksum per key
// when key is empty. It never creates the namespace, and it never returns
// the values themselves, only their checksums.
func (r *registry) Inspect(namespace, key string) (map[string]string, error) {
	c, ok := r.Lookup(namespace)
	if !ok {
		return nil, fmt.Errorf("no cache named %s", namespace)
	}
	if key != "" {
		v, ok := c.Get(key)
		if !ok {
			return nil, fmt.Errorf("no key %q in cache %s", key, namespace)
		}
		return map[string]string{key: wire.Checksum(v)}, nil
	}
	out := make(map[string]string)
	for _, k := range c.Keys() {
		if v, ok := c.Get(k); ok {
			out[k] = wire.Checksum(v)
		}
	}
	return out, nil
}

// expirables returns every registered cache implementing store.Expirable,
// snapshotted for the housekeeper's sweep.
func (r *registry) expirables() []store.Expirable {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.Expirable, 0, len(r.caches))
	for _, c := range r.caches {
		if e, ok := c.(store.Expirable); ok {
			out = append(out, e)
		}
	}
	return out
}

// nowNanos is a small indirection so tests can stub the operation
// timestamp; production always uses the wall clock, matching the
// original implementation's time.time_ns().
var nowNanos = func() int64 { return time.Now().UnixNano() }
