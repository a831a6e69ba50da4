// Package store implements the bounded eviction caches McCache mirrors
// across peers: FIFO, LFU, LRU, MRU, RR, TTL and TLRU variants sharing one
// mapping contract, tagged variants behind a single interface rather than
// an inheritance chain.
package store

import (
	"time"
)

// SizeFunc returns the abstract size of a value. The default, used when a
// cache is constructed with nil, charges every value 1 unit.
type SizeFunc func(value []byte) int

// DefaultSizeOf is the SizeFunc used when none is supplied.
func DefaultSizeOf(value []byte) int { return 1 }

// MutationFunc is invoked after a write-path mutation commits locally, but
// only when the caller asked for propagation. deleted distinguishes a
// removal (Delete/Pop/Clear) from an insert/update (Set/SetDefault); the
// registry uses this, together with the process posture, to decide which
// opcode to enqueue.
type MutationFunc func(key string, value []byte, deleted bool)

// Cache is the contract every eviction variant implements. It is a bounded
// mapping from opaque string keys to opaque byte-slice values.
type Cache interface {
	// Name is the cache's registry name.
	Name() string

	// MaxSize is the configured capacity in abstract units.
	MaxSize() int

	// CurrSize is the current size tally. For time-aware variants this
	// reflects state after lazily expiring stale entries.
	CurrSize() int

	// Len returns the number of live entries.
	Len() int

	// Get returns the value for key, or ok=false if absent (or, for
	// time-aware variants, logically expired).
	Get(key string) (value []byte, ok bool)

	// Contains reports whether key is present and not expired.
	Contains(key string) bool

	// Set inserts or updates key. Returns ErrValueTooLarge, making no
	// mutation and enqueueing nothing, if value's size exceeds MaxSize.
	Set(key string, value []byte, propagate bool) error

	// Delete removes key if present. A delete of an absent key is a no-op,
	// not an error.
	Delete(key string, propagate bool)

	// Pop removes and returns key's value, reporting whether it existed.
	Pop(key string, propagate bool) (value []byte, existed bool)

	// SetDefault returns key's current value, or inserts and returns def
	// if absent.
	SetDefault(key string, def []byte, propagate bool) []byte

	// Clear removes every entry. Each removed key is notified exactly as
	// a Delete of that key would be, so propagate mirrors a DEL per key
	// to peers the same way Delete and Pop do.
	Clear(propagate bool)

	// PopItem evicts and returns one (key, value) pair chosen by the
	// cache's replacement policy. Returns ErrCacheEmpty if empty.
	PopItem() (key string, value []byte, err error)

	// Keys returns a snapshot of the live keys, in no particular order
	// unless documented otherwise by the variant.
	Keys() []string

	// setName is used once by the registry to assign the caller-supplied
	// name on first registration, mirroring the Python contract where a
	// nameless cache receives its name lazily.
	setName(name string)

	// setMutationFunc rebinds the propagation hook, used by the registry to
	// wire a caller-supplied override instance into the same mutation
	// pipeline as every cache it constructs itself.
	setMutationFunc(fn MutationFunc)
}

// AssignName sets c's registry name once, used by the cache registry right
// after construction. setName is unexported so a variant can't rename
// itself mid-use from outside this package; AssignName is the one
// sanctioned door in.
func AssignName(c Cache, name string) {
	c.setName(name)
}

// AssignMutationFunc installs fn as c's propagation hook. Used by the cache
// registry to wire a caller-supplied override cache into the same
// propagation pipeline as caches it constructs itself, regardless of what
// MutationFunc (if any) the override was built with.
func AssignMutationFunc(c Cache, fn MutationFunc) {
	c.setMutationFunc(fn)
}

// Expirable is implemented by the time-aware variants (TTL, TLRU). An entry
// whose expiry has passed is logically absent to readers but may be
// physically present pending lazy eviction; Expire forces that sweep.
type Expirable interface {
	Expire(now time.Time)
}

// base holds the fields and bookkeeping every variant shares: name, size
// accounting, the size function and the mutation hook.
type base struct {
	name     string
	maxSize  int
	currSize int
	sizeOf   SizeFunc
	onMutate MutationFunc
	sizes    map[string]int
}

func newBase(maxSize int, sizeOf SizeFunc) base {
	if sizeOf == nil {
		sizeOf = DefaultSizeOf
	}
	return base{
		maxSize: maxSize,
		sizeOf:  sizeOf,
		sizes:   make(map[string]int),
	}
}

func (b *base) Name() string    { return b.name }
func (b *base) MaxSize() int    { return b.maxSize }
func (b *base) CurrSize() int   { return b.currSize }
func (b *base) setName(n string) {
	if b.name == "" {
		b.name = n
	}
}

func (b *base) setMutationFunc(fn MutationFunc) { b.onMutate = fn }

func (b *base) notify(key string, value []byte, deleted bool, propagate bool) {
	if propagate && b.onMutate != nil {
		b.onMutate(key, value, deleted)
	}
}

// accountInsert updates size bookkeeping for an insert/update of key to a
// value of the given size, returning the prior size (0 if new).
func (b *base) accountInsert(key string, size int) (prior int, hadKey bool) {
	prior, hadKey = b.sizes[key]
	b.sizes[key] = size
	if hadKey {
		b.currSize += size - prior
	} else {
		b.currSize += size
	}
	return prior, hadKey
}

func (b *base) accountRemove(key string) {
	if size, ok := b.sizes[key]; ok {
		b.currSize -= size
		delete(b.sizes, key)
	}
}
