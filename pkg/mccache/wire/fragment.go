package wire

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// Fragment splits an already CBOR-encoded payload into one or more
// datagrams small enough to fit mtu, each prefixed by a 4-byte header
// carrying the magic byte, protocol version, and this fragment's index and
// total count. A payload that already fits in a single datagram still
// gets the header, so the receive path never special-cases fragment
// count 1.
func Fragment(payload []byte, mtu int) ([][]byte, error) {
	chunkSize := mtu - types.FragmentHeaderSize
	if chunkSize <= 0 {
		return nil, types.ErrValueTooLarge
	}
	total := (len(payload) + chunkSize - 1) / chunkSize
	if total == 0 {
		total = 1
	}
	if total > 255 {
		return nil, types.ErrValueTooLarge
	}
	out := make([][]byte, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		datagram := make([]byte, 0, types.FragmentHeaderSize+end-start)
		datagram = append(datagram, types.MagicByte, types.CurrentVersion, byte(i), byte(total))
		datagram = append(datagram, payload[start:end]...)
		out = append(out, datagram)
	}
	return out, nil
}

// ParseHeader validates and extracts the 4-byte fragment header from the
// front of a received datagram.
func ParseHeader(datagram []byte) (types.FragmentHeader, []byte, error) {
	if len(datagram) < types.FragmentHeaderSize {
		return types.FragmentHeader{}, nil, types.ErrFragmentMismatch
	}
	if datagram[0] != types.MagicByte {
		return types.FragmentHeader{}, nil, types.ErrBadMagic
	}
	if datagram[1] != types.CurrentVersion {
		return types.FragmentHeader{}, nil, types.ErrUnsupportedVersion
	}
	h := types.FragmentHeader{
		Magic:   datagram[0],
		Version: datagram[1],
		Index:   datagram[2],
		Total:   datagram[3],
	}
	return h, datagram[types.FragmentHeaderSize:], nil
}

// reassemblyKey identifies one in-flight sender. The outbound engine drains
// its queue serially, fully transmitting one operation's fragments
// (including redundant resends) before the next is dequeued, so a given
// peer never has more than one message fragmenting at a time; keying
// reassembly by sender alone is therefore sufficient and avoids needing
// the operation identity, which only the fully reassembled CBOR payload
// carries. The key is hashed with xxhash purely to keep map comparisons
// cheap under high fragment churn; this hash never reaches the wire,
// unlike the MD5/ascii85 payload Checksum.
func reassemblyKey(sender string) uint64 {
	return xxhash.Sum64String(sender)
}

type partial struct {
	sender   string
	total    byte
	received int
	parts    [][]byte
}

// Reassembler buffers fragments from multiple in-flight, multi-datagram
// messages and releases a complete payload once every fragment from a
// given sender arrives. It does not time anything out: an unfinished
// buffer stays until the same sender's next fragment with a different
// Total replaces it, or until Discard is called for that sender.
type Reassembler struct {
	mu      sync.Mutex
	pending map[uint64]*partial
}

// NewReassembler creates an empty reassembly buffer.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[uint64]*partial)}
}

// Accept feeds one received fragment from sender. It returns the
// reassembled payload and true once every fragment named by header.Total
// has arrived. A header whose Total disagrees with an in-flight buffer for
// the same sender discards that buffer and starts fresh, since it can only
// mean the sender began a new message before the previous one finished
// reassembling (e.g. a dropped final fragment).
func (r *Reassembler) Accept(sender string, header types.FragmentHeader, fragment []byte) ([]byte, bool, error) {
	if header.Total == 0 {
		return nil, false, types.ErrFragmentMismatch
	}
	if int(header.Index) >= int(header.Total) {
		return nil, false, types.ErrFragmentMismatch
	}
	key := reassemblyKey(sender)

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[key]
	if !ok || p.total != header.Total {
		p = &partial{sender: sender, total: header.Total, parts: make([][]byte, header.Total)}
		r.pending[key] = p
	}
	if p.parts[header.Index] == nil {
		p.received++
	}
	p.parts[header.Index] = fragment

	if p.received < int(p.total) {
		return nil, false, nil
	}

	delete(r.pending, key)
	size := 0
	for _, part := range p.parts {
		size += len(part)
	}
	joined := make([]byte, 0, size)
	for _, part := range p.parts {
		joined = append(joined, part...)
	}
	return joined, true, nil
}

// Discard drops any in-flight fragments from sender, abandoning a message
// that never completed.
func (r *Reassembler) Discard(sender string) {
	key := reassemblyKey(sender)
	r.mu.Lock()
	delete(r.pending, key)
	r.mu.Unlock()
}

// Pending reports how many in-flight reassembly buffers exist.
func (r *Reassembler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
