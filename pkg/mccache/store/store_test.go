package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// newUnderTest builds every variant with the same capacity and a recorder
// of every propagated mutation, so the eviction-policy tests below can
// share a single table-driven harness.
func newUnderTest(t *testing.T, maxSize int) map[string]Cache {
	t.Helper()
	noop := func(string, []byte, bool) {}
	return map[string]Cache{
		"fifo": NewFIFOCache(maxSize, DefaultSizeOf, noop),
		"lfu":  NewLFUCache(maxSize, DefaultSizeOf, noop),
		"lru":  NewLRUCache(maxSize, DefaultSizeOf, noop),
		"mru":  NewMRUCache(maxSize, DefaultSizeOf, noop),
		"rr":   NewRRCache(maxSize, DefaultSizeOf, noop),
	}
}

func TestCache_BasicGetSetContract(t *testing.T) {
	for name, c := range newUnderTest(t, 3) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set("a", []byte("1"), false))
			v, ok := c.Get("a")
			require.True(t, ok)
			require.Equal(t, []byte("1"), v)
			require.True(t, c.Contains("a"))
			require.Equal(t, 1, c.Len())
		})
	}
}

func TestCache_DeleteOfAbsentKeyIsNoOp(t *testing.T) {
	for name, c := range newUnderTest(t, 3) {
		t.Run(name, func(t *testing.T) {
			require.NotPanics(t, func() { c.Delete("missing", false) })
			require.Equal(t, 0, c.Len())
		})
	}
}

func TestCache_SetDefaultOnlyInsertsOnce(t *testing.T) {
	for name, c := range newUnderTest(t, 3) {
		t.Run(name, func(t *testing.T) {
			v := c.SetDefault("a", []byte("default"), false)
			require.Equal(t, []byte("default"), v)
			v = c.SetDefault("a", []byte("other"), false)
			require.Equal(t, []byte("default"), v)
		})
	}
}

func TestCache_EvictsAtCapacity(t *testing.T) {
	for name, c := range newUnderTest(t, 2) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set("a", []byte("1"), false))
			require.NoError(t, c.Set("b", []byte("2"), false))
			require.NoError(t, c.Set("c", []byte("3"), false))
			require.Equal(t, 2, c.Len())
		})
	}
}

func TestCache_ValueLargerThanCapacityRejected(t *testing.T) {
	sizeOf := func(v []byte) int { return len(v) }
	for name, c := range map[string]Cache{
		"fifo": NewFIFOCache(4, sizeOf, nil),
		"lfu":  NewLFUCache(4, sizeOf, nil),
		"rr":   NewRRCache(4, sizeOf, nil),
	} {
		t.Run(name, func(t *testing.T) {
			err := c.Set("a", []byte("toolong"), false)
			require.ErrorIs(t, err, types.ErrValueTooLarge)
		})
	}
}

func TestFIFOCache_EvictsInsertionOrder(t *testing.T) {
	c := NewFIFOCache(2, DefaultSizeOf, nil)
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	_, _ = c.Get("a") // Get never reorders FIFO.
	require.NoError(t, c.Set("c", []byte("3"), false))
	require.False(t, c.Contains("a"))
	require.True(t, c.Contains("b"))
	require.True(t, c.Contains("c"))
}

func TestMRUCache_EvictsMostRecentlyUsed(t *testing.T) {
	c := NewMRUCache(2, DefaultSizeOf, nil)
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	_, _ = c.Get("b") // b is now most recently used.
	require.NoError(t, c.Set("c", []byte("3"), false))
	require.False(t, c.Contains("b"))
	require.True(t, c.Contains("a"))
	require.True(t, c.Contains("c"))
}

func TestLFUCache_EvictsLeastFrequentlyUsed(t *testing.T) {
	c := NewLFUCache(2, DefaultSizeOf, nil)
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	_, _ = c.Get("a")
	_, _ = c.Get("a")
	require.NoError(t, c.Set("c", []byte("3"), false))
	require.False(t, c.Contains("b"))
	require.True(t, c.Contains("a"))
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache(2, DefaultSizeOf, nil)
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	_, _ = c.Get("a")
	require.NoError(t, c.Set("c", []byte("3"), false))
	require.False(t, c.Contains("b"))
	require.True(t, c.Contains("a"))
	require.True(t, c.Contains("c"))
}

func TestRRCache_EvictsDownToCapacity(t *testing.T) {
	c := NewRRCache(2, DefaultSizeOf, nil)
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	require.NoError(t, c.Set("c", []byte("3"), false))
	require.Equal(t, 2, c.Len())
}

func TestCache_PopItemOnEmptyReturnsErrCacheEmpty(t *testing.T) {
	for name, c := range newUnderTest(t, 2) {
		t.Run(name, func(t *testing.T) {
			_, _, err := c.PopItem()
			require.ErrorIs(t, err, types.ErrCacheEmpty)
		})
	}
}

func TestCache_ClearRemovesEveryEntry(t *testing.T) {
	for name, c := range newUnderTest(t, 3) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.Set("a", []byte("1"), false))
			require.NoError(t, c.Set("b", []byte("2"), false))
			c.Clear(false)
			require.Equal(t, 0, c.Len())
			require.False(t, c.Contains("a"))
			require.False(t, c.Contains("b"))
		})
	}
}

func TestCache_ClearNotifiesOncePerKeyLikeDelete(t *testing.T) {
	var fired []string
	c := NewFIFOCache(4, DefaultSizeOf, func(key string, value []byte, deleted bool) {
		if deleted {
			fired = append(fired, key)
		}
	})
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	c.Clear(true)
	require.ElementsMatch(t, []string{"a", "b"}, fired)
}

func TestCache_ClearWithoutPropagateFiresNoHook(t *testing.T) {
	var fired []string
	c := NewFIFOCache(4, DefaultSizeOf, func(key string, _ []byte, _ bool) {
		fired = append(fired, key)
	})
	require.NoError(t, c.Set("a", []byte("1"), false))
	c.Clear(false)
	require.Empty(t, fired)
}

func TestCache_PropagationHookFiresOnlyWhenRequested(t *testing.T) {
	var fired []string
	c := NewFIFOCache(4, DefaultSizeOf, func(key string, _ []byte, _ bool) {
		fired = append(fired, key)
	})
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.Empty(t, fired)
	require.NoError(t, c.Set("b", []byte("2"), true))
	require.Equal(t, []string{"b"}, fired)
}
