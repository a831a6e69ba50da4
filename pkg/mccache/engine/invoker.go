// Package engine runs the three long-lived workers that give McCache its
// coherence behaviour: the outbound engine draining locally queued
// mutations onto the wire, the inbound engine applying received operations
// to local caches, and the housekeeper sweeping the pending-ack and
// membership tables. Grounded in the teacher's core.Peer worker loops and
// its Invoker abstraction for spawning them.
package engine

import "sync"

// Invoker spawns a function as a tracked goroutine. Both the production
// Invoker and the test Invoker, which mirrors the teacher's
// test.TestInvoker, track every spawn in a sync.WaitGroup, so Stop
// deterministically waits for every worker to drain.
type Invoker interface {
	Spawn(f func())
	Stop()
}

// liveInvoker is the process Invoker: goroutines run until the process
// exits or the workers themselves observe a cancelled context. Stop blocks
// on the same WaitGroup, so it still waits for orderly shutdown.
type liveInvoker struct {
	group sync.WaitGroup
}

// NewInvoker returns the production Invoker.
func NewInvoker() Invoker {
	return &liveInvoker{}
}

func (i *liveInvoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

func (i *liveInvoker) Stop() {
	i.group.Wait()
}

// testInvoker is identical in shape to liveInvoker; it exists as a
// distinct type so tests can name their intent explicitly, matching the
// teacher's test.TestInvoker / core.Invoker split between production and
// test code.
type testInvoker struct {
	group sync.WaitGroup
}

// NewTestInvoker returns an Invoker suited to tests: Stop blocks until
// every spawned goroutine has returned, giving deterministic drains
// instead of sleep-based polling.
func NewTestInvoker() Invoker {
	return &testInvoker{}
}

func (i *testInvoker) Spawn(f func()) {
	i.group.Add(1)
	go func() {
		defer i.group.Done()
		f()
	}()
}

func (i *testInvoker) Stop() {
	i.group.Wait()
}
