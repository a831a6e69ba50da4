package engine

import (
	"context"
	"time"

	"github.com/mccache/mccache/pkg/mccache/logging"
	"github.com/mccache/mccache/pkg/mccache/metrics"
	"github.com/mccache/mccache/pkg/mccache/types"
	"github.com/mccache/mccache/pkg/mccache/wire"
)

// Sender is the subset of transport.Sender the outbound engine needs,
// narrowed to an interface so tests can substitute an in-memory fake.
type Sender interface {
	Send(datagram []byte) error
}

// Outbound drains locally queued operations, frames them per the process
// posture, and multicasts them with the posture's redundancy schedule.
// Grounded in the original implementation's _multicaster loop.
type Outbound struct {
	Queue      chan types.Operation
	Sender     Sender
	Pending    *PendingTable
	Membership *Membership
	Posture    types.Posture
	MTU        int
	Logger     logging.Logger
	Metrics    *metrics.Collectors
	sleep      func(time.Duration)
}

// NewOutbound creates an outbound engine with a buffered queue of the
// given depth.
func NewOutbound(queueDepth int, sender Sender, pending *PendingTable, membership *Membership, posture types.Posture, mtu int, logger logging.Logger, mtcs *metrics.Collectors) *Outbound {
	return &Outbound{
		Queue:      make(chan types.Operation, queueDepth),
		Sender:     sender,
		Pending:    pending,
		Membership: membership,
		Posture:    posture,
		MTU:        mtu,
		Logger:     logger,
		Metrics:    mtcs,
		sleep:      time.Sleep,
	}
}

// Enqueue submits op for transmission, non-blocking only up to the queue's
// configured depth; a full queue blocks the caller, applying backpressure
// rather than dropping a mutation silently.
func (o *Outbound) Enqueue(op types.Operation) {
	o.Queue <- op
	if o.Metrics != nil {
		o.Metrics.OutboundQueueDepth.Set(float64(len(o.Queue)))
	}
}

// Run drains the queue until ctx is cancelled. It is meant to be spawned
// once via an Invoker.
func (o *Outbound) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-o.Queue:
			o.send(op)
			if o.Metrics != nil {
				o.Metrics.OutboundQueueDepth.Set(float64(len(o.Queue)))
			}
		}
	}
}

func (o *Outbound) send(op types.Operation) {
	msg := types.WireMessage{
		Code:        op.Code,
		TimestampNs: op.TimestampNs,
		Namespace:   op.Namespace,
		Key:         op.Key,
		Value:       op.Value,
	}
	switch {
	case op.Code == types.INQ:
		// INQ carries a diagnostic checksum rather than a value-derived
		// one: empty CRC means "please answer", a populated CRC is the
		// answer itself.
		msg.CRC = op.CRC
	case op.Value != nil && o.Posture != types.Pessimistic:
		// CRC only travels when a value does, and only under a posture
		// that does not strip it outright; the original computes it from
		// the pickled value whenever op_level >= NEUTRAL and a value is
		// present.
		msg.CRC = wire.Checksum(op.Value)
	}
	if o.Posture == types.Pessimistic {
		msg.Value = nil
	}

	payload, err := wire.EncodeOperation(msg)
	if err != nil {
		o.Logger.Errorf("failed encoding operation %s: %v", op.Identity(), err)
		return
	}
	fragments, err := wire.Fragment(payload, o.MTU)
	if err != nil {
		o.Logger.Errorf("failed fragmenting operation %s: %v", op.Identity(), err)
		return
	}
	if len(payload) > o.MTU {
		o.Logger.Warnf("payload for %s is %d bytes, may exceed %d byte MTU frame", op.Identity(), len(payload), o.MTU)
	}

	if o.Posture.TracksAcks() && op.Code.RequiresAck() && !o.Pending.Contains(op.Identity()) {
		o.Pending.Track(op.Identity(), fragments, o.Membership.Peers())
	}

	schedule := o.Posture.Schedule()
	for _, fragment := range fragments {
		o.sendWithRedundancy(fragment, schedule)
	}
}

// Resend re-transmits already-framed fragments with the posture's own
// redundancy schedule, used to answer a NAK without re-encoding the
// operation from scratch.
func (o *Outbound) Resend(fragments [][]byte) {
	schedule := o.Posture.Schedule()
	for _, fragment := range fragments {
		o.sendWithRedundancy(fragment, schedule)
	}
}

// sendWithRedundancy emits one fragment the number of times, and with the
// inter-send delays, the posture's schedule calls for. UDP is unreliable,
// so the original implementation leans on redundant sends rather than a
// single authoritative one.
func (o *Outbound) sendWithRedundancy(fragment []byte, schedule types.SendSchedule) {
	for i := 0; i < schedule.Datagrams; i++ {
		if i > 0 && i-1 < len(schedule.Delays) {
			o.sleep(time.Duration(schedule.Delays[i-1]) * time.Millisecond)
		}
		if err := o.Sender.Send(fragment); err != nil {
			o.Logger.Errorf("failed sending fragment: %v", err)
		}
	}
}
