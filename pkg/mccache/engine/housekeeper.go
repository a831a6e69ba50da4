package engine

import (
	"context"
	"time"

	"github.com/mccache/mccache/pkg/mccache/logging"
	"github.com/mccache/mccache/pkg/mccache/metrics"
	"github.com/mccache/mccache/pkg/mccache/types"
)

// Expirer is implemented by anything the housekeeper should periodically
// sweep for time-based expiry, namely the TTL and TLRU cache variants.
type Expirer interface {
	Expire(now time.Time)
}

// Housekeeper periodically retransmits fragments still unacknowledged by
// laggard peers, drops peers that exhaust their retry budget, and sweeps
// time-aware caches for lazily-expired entries. The original
// implementation's _housekeeper left this retry/backoff behaviour as a
// commented-out sketch; this completes it rather than leaving retries
// purely advisory.
type Housekeeper struct {
	Slots      []int // backoff schedule in seconds, cycling once exhausted
	Outbound   *Outbound
	Pending    *PendingTable
	Membership *Membership
	Expirables func() []Expirer
	Logger     logging.Logger
	Metrics    *metrics.Collectors
	now        func() time.Time
	sleep      func(time.Duration)
}

// NewHousekeeper creates a housekeeper cycling through slots (seconds)
// between sweeps. expirables is called fresh on every sweep so caches
// registered after start-up are still covered.
func NewHousekeeper(slots []int, out *Outbound, pending *PendingTable, membership *Membership, expirables func() []Expirer, logger logging.Logger, mtcs *metrics.Collectors) *Housekeeper {
	if len(slots) == 0 {
		slots = []int{5, 8, 13, 21, 55}
	}
	if expirables == nil {
		expirables = func() []Expirer { return nil }
	}
	return &Housekeeper{
		Slots:      slots,
		Outbound:   out,
		Pending:    pending,
		Membership: membership,
		Expirables: expirables,
		Logger:     logger,
		Metrics:    mtcs,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Run cycles through the backoff slots, sweeping after each, until ctx is
// cancelled.
func (h *Housekeeper) Run(ctx context.Context) {
	slot := 0
	for {
		delay := time.Duration(h.Slots[slot%len(h.Slots)]) * time.Second
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			h.sweep()
			slot++
		}
	}
}

func (h *Housekeeper) sweep() {
	now := h.now()
	for _, exp := range h.Expirables() {
		exp.Expire(now)
	}

	for _, stale := range h.Pending.Sweep() {
		for _, ip := range stale.Expired {
			h.Membership.Remove(ip)
			if h.Metrics != nil {
				h.Metrics.PeersDroppedTotal.Inc()
			}
			h.Logger.Criticalf("dropping unresponsive peer %s from %s", ip, stale.ID)
		}
		if len(stale.Laggards) == 0 || h.Outbound == nil {
			continue
		}
		for _, fragment := range stale.Fragments {
			if err := h.Outbound.Sender.Send(fragment); err != nil {
				h.Logger.Errorf("failed retransmitting fragment for %s: %v", stale.ID, err)
				continue
			}
			if h.Metrics != nil {
				h.Metrics.FragmentsRetransmittedTotal.Inc()
			}
		}
	}
	if h.Metrics != nil {
		h.Metrics.PendingEntries.Set(float64(h.Pending.Len()))
	}
}

// Goodbye enqueues a BYE announcement, mirroring the original
// implementation's atexit-registered _goodbye hook.
func Goodbye(out *Outbound) {
	out.Enqueue(types.Operation{Code: types.BYE, TimestampNs: time.Now().UnixNano()})
}
