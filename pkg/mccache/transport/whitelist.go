package transport

import "net"

// administrativelyScopedRanges enumerates the last two octets permitted
// within 224.0.0.0/8 and 224.0.2.0/8-ish administratively-scoped blocks
// the original McCache whitelist recognised (local network block, and
// ad-hoc block I), keyed by third octet then a set of allowed fourth
// octets. A group address outside this table does not stop start-up:
// ResolveGroup logs a warning and falls back to DefaultMulticastGroup.
var administrativelyScopedRanges = map[int][]fourthOctetRange{
	0: {
		{69, 100}, {122, 149}, {151, 250},
	},
	2: {
		{18, 63},
	},
	6: {
		{145, 160}, {152, 191},
	},
	12: {{136, 255}},
	17: {{128, 255}},
	20: {{208, 255}},
	21: {{128, 255}},
	23: {{182, 191}},
	245: {{0, 255}},
}

// singleValueExceptions are fourth-octet values allowed in the local
// network block (224.0.0.0) outside of the contiguous ranges above.
var singleValueExceptions = map[int]bool{3: true, 26: true, 255: true}

// thirdOctetSingletons are individual fourth-octet values allowed within a
// third-octet block in addition to administrativelyScopedRanges, e.g.
// 224.0.2.0 alongside the 224.0.2.18-224.0.2.63 range.
var thirdOctetSingletons = map[int]map[int]bool{
	2: {0: true},
}

type fourthOctetRange struct{ lo, hi int }

// IsKnownMulticastGroup reports whether addr, a dotted-quad IPv4 address,
// falls within the administratively-scoped ranges McCache recognises.
// Hostnames are not resolved; hostnames, IPv6, non-multicast and
// unparsable addresses report false.
func IsKnownMulticastGroup(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return false
	}
	v4 := ip.To4()
	if v4[0] != 224 || v4[1] != 0 {
		return false
	}
	third, fourth := int(v4[2]), int(v4[3])
	if v4[1] == 0 && third == 0 && singleValueExceptions[fourth] {
		return true
	}
	if v4[1] == 0 && thirdOctetSingletons[third][fourth] {
		return true
	}
	ranges, ok := administrativelyScopedRanges[third]
	if !ok {
		return false
	}
	for _, r := range ranges {
		if fourth >= r.lo && fourth <= r.hi {
			return true
		}
	}
	return false
}

// DefaultMulticastGroup is used when no group is configured, or when the
// configured one fails validation and the caller chooses to fall back.
const DefaultMulticastGroup = "224.0.0.3"
