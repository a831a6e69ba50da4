package engine

import (
	"sync"
	"time"
)

// Membership tracks every peer IP observed on the wire, keyed by the
// sender's address exactly as the original implementation's _mcMember
// dict is: populated by any inbound traffic (not just NEW), and pruned on
// BYE or when a peer stops acknowledging entirely.
type Membership struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

// NewMembership creates an empty membership table.
func NewMembership() *Membership {
	return &Membership{seen: make(map[string]time.Time)}
}

// Touch records ip as seen at now if not already known, returning true if
// this is the first time ip has been observed.
func (m *Membership) Touch(ip string, now time.Time) (firstSeen bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[ip]; ok {
		return false
	}
	m.seen[ip] = now
	return true
}

// Remove drops ip from the table, called on BYE or retry exhaustion.
func (m *Membership) Remove(ip string) {
	m.mu.Lock()
	delete(m.seen, ip)
	m.mu.Unlock()
}

// Peers returns a snapshot of every known peer IP.
func (m *Membership) Peers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.seen))
	for ip := range m.seen {
		out = append(out, ip)
	}
	return out
}

// Len reports the current member count.
func (m *Membership) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seen)
}

// Contains reports whether ip is a known member.
func (m *Membership) Contains(ip string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.seen[ip]
	return ok
}
