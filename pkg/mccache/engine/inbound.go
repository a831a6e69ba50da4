package engine

import (
	"time"

	"github.com/mccache/mccache/pkg/mccache/logging"
	"github.com/mccache/mccache/pkg/mccache/metrics"
	"github.com/mccache/mccache/pkg/mccache/types"
	"github.com/mccache/mccache/pkg/mccache/wire"
)

// Listener is the subset of transport.Listener the inbound engine needs.
type Listener interface {
	ReadFrom(buf []byte) (n int, senderIP string, err error)
}

// Registry resolves a namespace to the local cache backing it, applying a
// received mutation without re-propagating it. Implemented by the
// top-level cache registry; narrowed here to avoid an import cycle between
// engine and the package that owns cache creation.
type Registry interface {
	Apply(namespace string, op types.WireMessage) error

	// Inspect answers a diagnostic INQ: the checksum of a single key when
	// key is non-empty, or a checksum per key in the named cache when key
	// is empty. Values themselves never leave the process.
	Inspect(namespace, key string) (map[string]string, error)
}

// Inbound receives fragments, reassembles complete operations, and applies
// them to local caches. Grounded in the original implementation's
// _listener and _decode_message.
type Inbound struct {
	Listener   Listener
	Reassemble *wire.Reassembler
	Membership *Membership
	Pending    *PendingTable
	Registry   Registry
	Outbound   *Outbound // used to send ACK/NAK replies
	LocalIP    string
	Logger     logging.Logger
	Metrics    *metrics.Collectors
	now        func() time.Time
}

// NewInbound creates an inbound engine.
func NewInbound(listener Listener, registry Registry, membership *Membership, pending *PendingTable, out *Outbound, localIP string, logger logging.Logger, mtcs *metrics.Collectors) *Inbound {
	return &Inbound{
		Listener:   listener,
		Reassemble: wire.NewReassembler(),
		Membership: membership,
		Pending:    pending,
		Registry:   registry,
		Outbound:   out,
		LocalIP:    localIP,
		Logger:     logger,
		Metrics:    mtcs,
		now:        time.Now,
	}
}

// Run blocks reading datagrams until the listener returns an error, e.g.
// because its socket was closed during shutdown.
func (in *Inbound) Run() {
	buf := make([]byte, 65535)
	for {
		n, senderIP, err := in.Listener.ReadFrom(buf)
		if err != nil {
			return
		}
		if senderIP == in.LocalIP {
			continue // ignore our own traffic, same as the original listener.
		}
		in.handle(senderIP, append([]byte(nil), buf[:n]...))
	}
}

func (in *Inbound) handle(senderIP string, datagram []byte) {
	header, fragment, err := wire.ParseHeader(datagram)
	if err != nil {
		in.Logger.Warnf("dropping datagram from %s: %v", senderIP, err)
		return
	}

	if in.Membership.Touch(senderIP, in.now()) {
		in.Logger.Infof("new member %s", senderIP)
	}

	payload, complete, err := in.Reassemble.Accept(senderIP, header, fragment)
	if err != nil {
		in.Logger.Warnf("dropping fragment from %s: %v", senderIP, err)
		return
	}
	if in.Metrics != nil {
		in.Metrics.PendingEntries.Set(float64(in.Pending.Len()))
	}
	if !complete {
		return
	}

	msg, err := wire.DecodeOperation(payload)
	if err != nil {
		in.Logger.Errorf("failed decoding operation from %s: %v", senderIP, err)
		return
	}
	in.dispatch(senderIP, msg)
}

// dispatch applies one fully reassembled operation, mirroring the original
// implementation's _decode_message switch over opcodes.
func (in *Inbound) dispatch(senderIP string, msg types.WireMessage) {
	switch msg.Code {
	case types.ACK:
		in.Pending.Ack(msg.ID(), senderIP)

	case types.BYE:
		in.Membership.Remove(senderIP)

	case types.DEL, types.PUT, types.UPD:
		if err := in.Registry.Apply(msg.Namespace, msg); err != nil {
			in.Logger.Errorf("failed applying %s for %s: %v", msg.Code, msg.ID(), err)
			return
		}
		// Every mutating opcode is acknowledged unconditionally, exactly as
		// the original protocol does: DEL is queued for ACK just like
		// PUT/UPD regardless of coherence posture.
		if in.Outbound != nil {
			in.Outbound.Enqueue(types.Operation{
				Code:        types.ACK,
				TimestampNs: msg.TimestampNs,
				Namespace:   msg.Namespace,
				Key:         msg.Key,
			})
		}

	case types.NEW, types.INI:
		// Life-cycle announcement only; membership was already touched
		// above.

	case types.NAK:
		// A peer is missing a fragment of an operation we sent; re-queue
		// exactly what was originally framed rather than re-encoding it.
		fragments, ok := in.Pending.Fragments(msg.ID())
		if !ok {
			in.Logger.Debugf("NAK for unknown operation %s from %s", msg.ID(), senderIP)
			return
		}
		if in.Outbound != nil {
			in.Outbound.Resend(fragments)
		}

	case types.REQ:
		// A peer wants re-acknowledgement of a key it believes it sent us;
		// re-enqueue an ACK rather than re-applying the operation.
		if in.Outbound != nil {
			in.Outbound.Enqueue(types.Operation{
				Code:        types.ACK,
				TimestampNs: msg.TimestampNs,
				Namespace:   msg.Namespace,
				Key:         msg.Key,
			})
		}

	case types.INQ:
		// An empty CRC marks a request; a populated one is someone else's
		// reply, which we only log to avoid an endless request/reply loop.
		if msg.CRC != "" {
			in.Logger.Debugf("received INQ reply for %s.%s from %s", msg.Namespace, string(msg.Key), senderIP)
			return
		}
		sums, err := in.Registry.Inspect(msg.Namespace, string(msg.Key))
		if err != nil {
			in.Logger.Warnf("failed INQ lookup for %s.%s from %s: %v", msg.Namespace, string(msg.Key), senderIP, err)
			return
		}
		if in.Outbound == nil {
			return
		}
		for key, sum := range sums {
			in.Outbound.Enqueue(types.Operation{
				Code:        types.INQ,
				TimestampNs: msg.TimestampNs,
				Namespace:   msg.Namespace,
				Key:         []byte(key),
				CRC:         sum,
			})
		}

	case types.QRY, types.ERR, types.NOP, types.RST:
		// Reserved opcodes: logged at debug level, no state change.
		in.Logger.Debugf("received reserved opcode %s from %s", msg.Code, senderIP)

	default:
		in.Logger.Warnf("unknown opcode %q from %s", msg.Code, senderIP)
	}
}
