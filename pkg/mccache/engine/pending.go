package engine

import (
	"sync"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// maxTries is the retry budget each member starts with. Every Sweep that
// finds the member still unacknowledged spends one try; the sweep that
// spends the last one drops the member instead of retransmitting, so a
// member gets one retransmission before it is given up on.
const maxTries = 2

// peerProgress tracks one peer's outstanding acknowledgement for a single
// pending operation: which fragment indices it has not yet acked, and how
// many retries remain before the peer is given up on.
type peerProgress struct {
	unacked map[byte]struct{}
	tries   int
}

// pendingEntry is one operation awaiting acknowledgement from every peer
// known at send time.
type pendingEntry struct {
	fragments [][]byte
	members   map[string]*peerProgress
}

// PendingTable is the process-wide acknowledgement tracker used under the
// pessimistic posture, keyed by operation identity exactly as the original
// implementation's _mcPending dict of (namespace, key, timestamp) tuples.
type PendingTable struct {
	mu      sync.Mutex
	entries map[types.OperationID]*pendingEntry
}

// NewPendingTable creates an empty pending-ack table.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[types.OperationID]*pendingEntry)}
}

// Track registers a newly sent operation awaiting acknowledgement from
// every peer currently known to members, one progress entry per peer with
// every fragment index unacknowledged.
func (p *PendingTable) Track(id types.OperationID, fragments [][]byte, members []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry := &pendingEntry{
		fragments: fragments,
		members:   make(map[string]*peerProgress, len(members)),
	}
	for _, ip := range members {
		unacked := make(map[byte]struct{}, len(fragments))
		for i := range fragments {
			unacked[byte(i)] = struct{}{}
		}
		entry.members[ip] = &peerProgress{unacked: unacked, tries: maxTries}
	}
	p.entries[id] = entry
}

// Contains reports whether id is already being tracked, used to avoid
// re-registering retransmissions of the same operation.
func (p *PendingTable) Contains(id types.OperationID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.entries[id]
	return ok
}

// Ack records that peer has acknowledged id, dropping the peer from the
// entry entirely (the original protocol acks a whole operation, not
// per-fragment). It reports whether the entry had no peers left and was
// therefore removed, and whether id was being tracked at all.
func (p *PendingTable) Ack(id types.OperationID, peer string) (drained bool, existed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[id]
	if !ok {
		return false, false
	}
	delete(entry.members, peer)
	if len(entry.members) == 0 {
		delete(p.entries, id)
		return true, true
	}
	return false, true
}

// Fragments returns the fragments of a still-tracked operation, used to
// answer a NAK by re-queuing exactly what was originally sent.
func (p *PendingTable) Fragments(id types.OperationID) ([][]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[id]
	if !ok {
		return nil, false
	}
	return entry.fragments, true
}

// Retire removes id unconditionally, used when an operation is abandoned.
func (p *PendingTable) Retire(id types.OperationID) {
	p.mu.Lock()
	delete(p.entries, id)
	p.mu.Unlock()
}

// Len reports the number of in-flight pending operations, used for the
// mccache_pending_entries gauge.
func (p *PendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Stale is one entry that still had unacknowledged peers at a sweep,
// returned by Sweep for the housekeeper to act on: retransmit the
// fragments to the remaining laggards, and drop from membership the peers
// whose tries ran out.
type Stale struct {
	ID        types.OperationID
	Fragments [][]byte
	Laggards  []string // peers still unacked, retries decremented
	Expired   []string // peers whose retries are exhausted, to be dropped
}

// Sweep decrements the retry budget of every peer still unacked across all
// pending entries and reports which operations still have outstanding
// peers, split into those still worth retransmitting to and those that
// have exhausted their tries. Grounded in the original _housekeeper's
// stated (but commented-out) intent to age pending entries down by retry
// count; this implementation completes that behaviour rather than leaving
// it advisory.
func (p *PendingTable) Sweep() []Stale {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Stale
	for id, entry := range p.entries {
		var laggards, expired []string
		for ip, progress := range entry.members {
			progress.tries--
			if progress.tries <= 0 {
				expired = append(expired, ip)
				delete(entry.members, ip)
			} else {
				laggards = append(laggards, ip)
			}
		}
		if len(laggards) == 0 && len(expired) == 0 {
			continue
		}
		if len(entry.members) == 0 {
			delete(p.entries, id)
		}
		out = append(out, Stale{ID: id, Fragments: entry.fragments, Laggards: laggards, Expired: expired})
	}
	return out
}
