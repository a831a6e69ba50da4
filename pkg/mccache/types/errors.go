package types

import "errors"

var (
	// ErrValueTooLarge is returned synchronously to the caller of Set when
	// the value's size exceeds the cache's maxsize. No mutation occurs and
	// no peer is notified.
	ErrValueTooLarge = errors.New("mccache: value larger than cache maxsize")

	// ErrKeyNotFound names an absent or logically expired key. No Cache
	// method returns it: Get and Pop report absence through their bool
	// result.
	ErrKeyNotFound = errors.New("mccache: key not found")

	// ErrCacheEmpty is returned by PopItem when the cache has no entries
	// left to evict.
	ErrCacheEmpty = errors.New("mccache: cache is empty")

	// ErrBadMagic is returned when a fragment's magic byte does not match
	// MagicByte. The fragment must be dropped before any other field is
	// interpreted.
	ErrBadMagic = errors.New("mccache: fragment magic byte mismatch")

	// ErrUnsupportedVersion is returned when a fragment's version does not
	// match CurrentVersion.
	ErrUnsupportedVersion = errors.New("mccache: unsupported fragment version")

	// ErrFragmentMismatch is returned for a datagram too short to hold a
	// fragment header, or a header whose Total is zero or whose Index is
	// not below Total. A fragment whose Total differs from the buffered one
	// for the same sender is not an error: the old buffer is replaced.
	ErrFragmentMismatch = errors.New("mccache: fragment total mismatch, buffer invalidated")

	// ErrInvalidMulticastAddr names a group address that fails the
	// administratively-scoped whitelist check. transport.ResolveGroup does
	// not return it; it logs a warning and falls back to the default group.
	ErrInvalidMulticastAddr = errors.New("mccache: invalid or unassigned multicast address")
)
