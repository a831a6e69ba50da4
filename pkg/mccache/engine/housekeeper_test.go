package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mccache/mccache/pkg/mccache/types"
)

// fakeExpirer records whether Expire was invoked.
type fakeExpirer struct{ calls int }

func (f *fakeExpirer) Expire(time.Time) { f.calls++ }

func TestHousekeeper_SweepRetransmitsAndExpiresCache(t *testing.T) {
	sender := &fakeSender{}
	pending := NewPendingTable()
	membership := NewMembership()
	membership.Touch("10.0.0.2", time.Now())

	id := types.OperationID{Namespace: "ns", Key: "k", TimestampNs: 1}
	fragment := []byte("frag")
	pending.Track(id, [][]byte{fragment}, []string{"10.0.0.2"})

	out := NewOutbound(4, sender, pending, membership, types.Pessimistic, 1472, testLogger(), nil)
	exp := &fakeExpirer{}
	hk := NewHousekeeper(nil, out, pending, membership, func() []Expirer { return []Expirer{exp} }, testLogger(), nil)
	hk.sleep = func(time.Duration) {}

	hk.sweep()
	require.Equal(t, 1, exp.calls)
	require.Equal(t, 1, sender.count())
	require.True(t, membership.Contains("10.0.0.2"))

	hk.sweep()
	require.False(t, membership.Contains("10.0.0.2"))
	require.False(t, pending.Contains(id))
}

func TestHousekeeper_RunStopsOnContextCancel(t *testing.T) {
	out := NewOutbound(1, &fakeSender{}, NewPendingTable(), NewMembership(), types.Neutral, 1472, testLogger(), nil)
	hk := NewHousekeeper([]int{1}, out, NewPendingTable(), NewMembership(), nil, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hk.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("housekeeper did not stop after cancel")
	}
}
