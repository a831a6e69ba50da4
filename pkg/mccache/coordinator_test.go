package mccache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mccache/mccache/pkg/mccache/config"
	"github.com/mccache/mccache/pkg/mccache/engine"
	"github.com/mccache/mccache/pkg/mccache/logging"
	"github.com/mccache/mccache/pkg/mccache/metrics"
	"github.com/mccache/mccache/pkg/mccache/store"
	"github.com/mccache/mccache/pkg/mccache/types"
	"github.com/mccache/mccache/pkg/mccache/wire"
)

// fakeSender records every datagram instead of touching a real socket, so
// coordinator wiring can be exercised without joining a multicast group.
type fakeSender struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeSender) Send(datagram []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), datagram...))
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// sawOpcode reports whether any recorded datagram decodes to an operation
// carrying code. Every payload these tests send fits one fragment.
func (f *fakeSender) sawOpcode(code types.OpCode) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, datagram := range f.sent {
		_, body, err := wire.ParseHeader(datagram)
		if err != nil {
			continue
		}
		if msg, err := wire.DecodeOperation(body); err == nil && msg.Code == code {
			return true
		}
	}
	return false
}

// newTestCoordinator wires a Coordinator exactly as Start does, substituting
// a fakeSender for the real multicast transport and a test Invoker so its
// returned stop func deterministically waits for every worker to drain.
func newTestCoordinator(t *testing.T, posture types.Posture) (c *Coordinator, sender *fakeSender, stop func()) {
	t.Helper()
	cfg := config.Default()
	cfg.Posture = posture
	cfg.MaxSize = posture.DefaultMaxSize()

	sender = &fakeSender{}
	mtcs := metrics.NewCollectors(prometheus.NewRegistry())
	membership := engine.NewMembership()
	pending := engine.NewPendingTable()
	logger := logging.NewDefault()

	c = &Coordinator{
		config:     cfg,
		logger:     logger,
		metrics:    mtcs,
		membership: membership,
		pending:    pending,
		invoker:    engine.NewTestInvoker(),
		localIP:    "10.0.0.1",
	}
	c.registry = newRegistry(c.newDefaultCache, c.announceInit)
	out := engine.NewOutbound(16, sender, pending, membership, cfg.Posture, cfg.MTU, logger, mtcs)
	c.outbound = out
	c.housekeep = engine.NewHousekeeper(cfg.HouseKeepSlots, out, pending, membership, c.expirables, logger, mtcs)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.invoker.Spawn(func() { out.Run(ctx) })

	stop = func() {
		c.cancel()
		c.invoker.Stop()
	}
	return c, sender, stop
}

func TestCoordinator_GetCacheDefaultsByPosture(t *testing.T) {
	defer goleak.VerifyNone(t)

	pessimistic, _, stopP := newTestCoordinator(t, types.Pessimistic)
	cache := pessimistic.GetCache("widgets", nil)
	_, ok := cache.(store.Expirable)
	require.True(t, ok, "pessimistic posture should default to a time-aware TLRU cache")
	stopP()

	neutral, _, stopN := newTestCoordinator(t, types.Neutral)
	cache2 := neutral.GetCache("widgets", nil)
	require.NotNil(t, cache2)
	stopN()
}

func TestCoordinator_GetCacheIsIdempotentPerName(t *testing.T) {
	c, _, stop := newTestCoordinator(t, types.Neutral)
	defer stop()
	a := c.GetCache("widgets", nil)
	b := c.GetCache("widgets", nil)
	require.Same(t, a, b)
}

func TestCoordinator_SetPropagatesMirrorOpcodePerPosture(t *testing.T) {
	for _, posture := range []types.Posture{types.Optimistic, types.Neutral, types.Pessimistic} {
		c, sender, stop := newTestCoordinator(t, posture)
		cache := c.GetCache("widgets", nil)
		require.NoError(t, cache.Set("sprocket", []byte("v1"), true))
		want := posture.PropagationOpcode()
		require.Eventually(t, func() bool { return sender.sawOpcode(want) }, time.Second, time.Millisecond)
		stop()
	}
}

func TestCoordinator_DeleteAlwaysSendsDELRegardlessOfPosture(t *testing.T) {
	for _, posture := range []types.Posture{types.Optimistic, types.Neutral, types.Pessimistic} {
		c, sender, stop := newTestCoordinator(t, posture)
		cache := c.GetCache("widgets", nil)
		require.NoError(t, cache.Set("sprocket", []byte("v1"), false))
		cache.Delete("sprocket", true)
		require.Eventually(t, func() bool { return sender.sawOpcode(types.DEL) }, time.Second, time.Millisecond)
		stop()
	}
}

func TestRegistry_ApplyRejectsChecksumMismatch(t *testing.T) {
	c, _, stop := newTestCoordinator(t, types.Neutral)
	defer stop()
	err := c.registry.Apply("widgets", types.WireMessage{
		Code:      types.PUT,
		Namespace: "widgets",
		Key:       []byte("sprocket"),
		Value:     []byte("tampered"),
		CRC:       "not-a-real-checksum",
	})
	require.Error(t, err)
}
