package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCache_ExpiresAfterDuration(t *testing.T) {
	clock := time.Unix(0, 0)
	c := NewTTLCache(10, 5*time.Second, DefaultSizeOf, nil)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set("a", []byte("1"), false))
	require.True(t, c.Contains("a"))

	clock = clock.Add(4 * time.Second)
	require.True(t, c.Contains("a"))

	clock = clock.Add(2 * time.Second)
	require.False(t, c.Contains("a"))
	require.Equal(t, 0, c.Len())
}

func TestTTLCache_EvictsOldestWhenOverCapacity(t *testing.T) {
	clock := time.Unix(0, 0)
	c := NewTTLCache(2, time.Hour, DefaultSizeOf, nil)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	require.NoError(t, c.Set("c", []byte("3"), false))
	require.False(t, c.Contains("a"))
	require.True(t, c.Contains("c"))
}

func TestTLRUCache_ExpiresPerKeyTTU(t *testing.T) {
	clock := time.Unix(0, 0)
	ttu := func(key string, _ []byte, setAt time.Time) time.Time {
		if key == "short" {
			return setAt.Add(1 * time.Second)
		}
		return setAt.Add(time.Hour)
	}
	c := NewTLRUCache(10, ttu, DefaultSizeOf, nil)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set("short", []byte("1"), false))
	require.NoError(t, c.Set("long", []byte("2"), false))

	clock = clock.Add(2 * time.Second)
	require.False(t, c.Contains("short"))
	require.True(t, c.Contains("long"))
}

func TestTTLCache_ClearRemovesLiveEntries(t *testing.T) {
	c := NewTTLCache(10, time.Hour, DefaultSizeOf, nil)
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	c.Clear(false)
	require.Equal(t, 0, c.Len())
	require.False(t, c.Contains("a"))
}

func TestTLRUCache_ClearRemovesLiveEntriesAndResetsHeap(t *testing.T) {
	c := NewTLRUCache(10, nil, DefaultSizeOf, nil)
	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	c.Clear(false)
	require.Equal(t, 0, c.Len())
	require.NoError(t, c.Set("c", []byte("3"), false))
	require.True(t, c.Contains("c"))
	require.Equal(t, 1, c.Len())
}

func TestTLRUCache_EvictsLeastRecentlyUsedAmongSurvivors(t *testing.T) {
	clock := time.Unix(0, 0)
	c := NewTLRUCache(2, nil, DefaultSizeOf, nil)
	c.now = func() time.Time { return clock }

	require.NoError(t, c.Set("a", []byte("1"), false))
	require.NoError(t, c.Set("b", []byte("2"), false))
	_, _ = c.Get("a")
	require.NoError(t, c.Set("d", []byte("3"), false))
	require.False(t, c.Contains("b"))
	require.True(t, c.Contains("a"))
	require.True(t, c.Contains("d"))
}
