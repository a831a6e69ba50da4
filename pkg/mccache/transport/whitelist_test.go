package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsKnownMulticastGroup(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"224.0.0.3", true},
		{"224.0.0.26", true},
		{"224.0.0.255", true},
		{"224.0.0.80", true},
		{"224.0.0.1", false}, // all-hosts, reserved, not in the whitelist
		{"224.0.2.30", true},
		{"224.0.12.200", true},
		{"10.0.0.1", false},    // not multicast at all
		{"239.1.1.1", false},   // outside 224.0.0.0/8
		{"not-an-ip", false},
	}
	for _, tc := range cases {
		t.Run(tc.addr, func(t *testing.T) {
			require.Equal(t, tc.want, IsKnownMulticastGroup(tc.addr))
		})
	}
}

func TestResolveGroup_FallsBackOnUnknownAddress(t *testing.T) {
	var warned bool
	got := ResolveGroup("10.0.0.1", func(string, ...interface{}) { warned = true })
	require.Equal(t, DefaultMulticastGroup, got)
	require.True(t, warned)
}

func TestResolveGroup_KeepsKnownAddress(t *testing.T) {
	got := ResolveGroup("224.0.0.26", func(string, ...interface{}) { t.Fatal("should not warn") })
	require.Equal(t, "224.0.0.26", got)
}

func TestResolveGroup_EmptyDefaultsWithoutWarning(t *testing.T) {
	got := ResolveGroup("", func(string, ...interface{}) { t.Fatal("should not warn") })
	require.Equal(t, DefaultMulticastGroup, got)
}
