// Package mccache is the public entry point to a distributed, in-process
// cache cluster: members on the same LAN segment discover each other and
// propagate local mutations to their peers over IP multicast, coordinated
// by a single process-wide Coordinator. Grounded in the teacher's Unity /
// PeerUnity shape, adapted from a consensus partition to a coherence
// cluster.
package mccache

import (
	"context"
	"fmt"
	"time"

	"github.com/mccache/mccache/pkg/mccache/config"
	"github.com/mccache/mccache/pkg/mccache/engine"
	"github.com/mccache/mccache/pkg/mccache/logging"
	"github.com/mccache/mccache/pkg/mccache/metrics"
	"github.com/mccache/mccache/pkg/mccache/store"
	"github.com/mccache/mccache/pkg/mccache/transport"
	"github.com/mccache/mccache/pkg/mccache/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator owns the multicast transport, the three long-lived workers
// and the named-cache registry for one process's membership in a McCache
// cluster.
type Coordinator struct {
	config     config.Config
	logger     logging.Logger
	metrics    *metrics.Collectors
	registry   *registry
	membership *engine.Membership
	pending    *engine.PendingTable
	outbound   *engine.Outbound
	inbound    *engine.Inbound
	housekeep  *engine.Housekeeper
	invoker    engine.Invoker
	sender     *transport.Sender
	listener   *transport.Listener
	cancel     context.CancelFunc
	localIP    string
}

// Option customises Start before the workers are spawned.
type Option func(*startOptions)

type startOptions struct {
	invoker  engine.Invoker
	reg      prometheus.Registerer
}

// WithInvoker overrides the default production Invoker, used by tests to
// install engine.NewTestInvoker so Shutdown can deterministically wait for
// every spawned worker to drain.
func WithInvoker(inv engine.Invoker) Option {
	return func(o *startOptions) { o.invoker = inv }
}

// WithRegisterer overrides the Prometheus registerer metrics are
// registered against, defaulting to prometheus.DefaultRegisterer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *startOptions) { o.reg = reg }
}

// Start builds a Coordinator, joins the multicast group, and spawns the
// outbound, inbound and housekeeper workers. The returned Coordinator is
// ready to serve GetCache immediately.
func Start(cfg config.Config, logger logging.Logger, opts ...Option) (*Coordinator, error) {
	o := &startOptions{invoker: engine.NewInvoker(), reg: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(o)
	}
	if !cfg.Posture.Valid() {
		return nil, fmt.Errorf("invalid coherence posture %d", cfg.Posture)
	}

	group := transport.ResolveGroup(cfg.MulticastGroup, logger.Warnf)
	ep := transport.Endpoint{Group: group, Port: cfg.MulticastPort}
	sender, err := transport.NewSender(ep, cfg.MulticastHops)
	if err != nil {
		return nil, fmt.Errorf("opening multicast sender: %w", err)
	}
	listener, err := transport.NewListener(ep)
	if err != nil {
		sender.Close()
		return nil, fmt.Errorf("joining multicast group: %w", err)
	}

	mtcs := metrics.NewCollectors(o.reg)
	membership := engine.NewMembership()
	pending := engine.NewPendingTable()

	c := &Coordinator{
		config:     cfg,
		logger:     logger,
		metrics:    mtcs,
		membership: membership,
		pending:    pending,
		invoker:    o.invoker,
		sender:     sender,
		listener:   listener,
		localIP:    sender.LocalAddr(),
	}
	c.registry = newRegistry(c.newDefaultCache, c.announceInit)

	out := engine.NewOutbound(1024, sender, pending, membership, cfg.Posture, cfg.MTU, logger, mtcs)
	c.outbound = out
	c.inbound = engine.NewInbound(listener, c.registry, membership, pending, out, c.localIP, logger, mtcs)
	c.housekeep = engine.NewHousekeeper(cfg.HouseKeepSlots, out, pending, membership, c.expirables, logger, mtcs)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.invoker.Spawn(func() { out.Run(ctx) })
	c.invoker.Spawn(c.inbound.Run)
	c.invoker.Spawn(func() { c.housekeep.Run(ctx) })

	out.Enqueue(types.Operation{Code: types.NEW, TimestampNs: nowNanos()})
	return c, nil
}

// newDefaultCache builds the cache a freshly named namespace gets when no
// caller-supplied override is registered: TLRU under the pessimistic
// posture (matching its ack-tracked, invalidate-on-write semantics), LRU
// otherwise.
func (c *Coordinator) newDefaultCache(name string) store.Cache {
	maxSize := c.config.MaxSize
	var cache store.Cache
	if c.config.Posture == types.Pessimistic {
		ttl := time.Duration(c.config.TTLSeconds) * time.Second
		ttu := func(key string, value []byte, setAt time.Time) time.Time { return setAt.Add(ttl) }
		cache = store.NewTLRUCache(maxSize, ttu, store.DefaultSizeOf, c.onMutate(name))
	} else {
		cache = store.NewLRUCache(maxSize, store.DefaultSizeOf, c.onMutate(name))
	}
	return cache
}

func (c *Coordinator) announceInit(name string) {
	c.outbound.Enqueue(types.Operation{
		Code:        types.INI,
		TimestampNs: nowNanos(),
		Namespace:   name,
	})
	// A newly registered cache's housekeeping expiry sweep needs to cover
	// it too, so it is appended to the snapshot the housekeeper already
	// holds each sweep cycle via c.registry.expirables() at call time
	// rather than being wired in once here.
}

// onMutate returns the store.MutationFunc a namespace's cache invokes
// after a local write commits. Set enqueues the posture's mirror opcode
// (PUT/UPD/DEL) carrying the value; Delete, Pop and Clear always enqueue
// DEL with no value, once per removed key, regardless of posture, matching
// the original implementation's __delitem__ which multicasts OpCode.DEL
// unconditionally independent of op_level.
func (c *Coordinator) onMutate(name string) store.MutationFunc {
	return func(key string, value []byte, deleted bool) {
		op := types.Operation{
			TimestampNs: nowNanos(),
			Namespace:   name,
			Key:         []byte(key),
		}
		if deleted {
			op.Code = types.DEL
		} else {
			op.Code = c.config.Posture.PropagationOpcode()
			op.Value = value
		}
		c.outbound.Enqueue(op)
	}
}

// expirables adapts the registry's store.Expirable snapshot to the
// engine.Expirer interface the housekeeper consumes, keeping the engine
// package free of a dependency on store.
func (c *Coordinator) expirables() []engine.Expirer {
	snapshot := c.registry.expirables()
	out := make([]engine.Expirer, len(snapshot))
	for i, e := range snapshot {
		out[i] = e
	}
	return out
}

// GetCache returns the named cache, creating it on first use. override, when
// non-nil, is registered instead of the process default policy, letting a
// caller put one namespace on a different eviction variant than the rest of
// the process; it is ignored once the namespace already exists. Either way
// the returned cache propagates through this Coordinator's transport.
func (c *Coordinator) GetCache(name string, override store.Cache) store.Cache {
	return c.registry.GetOrCreate(name, override, c.onMutate(name))
}

// Shutdown announces departure to the cluster, pausing briefly so the
// outbound worker can send the BYE, then stops accepting new work and
// waits for every spawned worker to drain. Grounded in the original
// implementation's atexit-registered _goodbye hook.
func (c *Coordinator) Shutdown() {
	engine.Goodbye(c.outbound)
	time.Sleep(300 * time.Millisecond)
	c.cancel()
	c.listener.Close()
	c.sender.Close()
	c.invoker.Stop()
}

// Membership returns the known peer IPs.
func (c *Coordinator) Membership() []string { return c.membership.Peers() }
