package raft

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s-macke/raftkv/internal/clock"
	"github.com/s-macke/raftkv/internal/wire"
)

// newTestCluster builds n fully-connected replicas sharing one fake clock,
// the in-process equivalent of the datagram network spec.md §6 describes.
func newTestCluster(t *testing.T, ids []string, clk *clock.Fake) map[string]*Node {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel) // keep test output quiet
	nodes := make(map[string]*Node, len(ids))
	for _, id := range ids {
		var peers []string
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}
		nodes[id] = New(id, peers, clk, logger)
	}
	return nodes
}

// pump delivers every envelope in the initial batch, plus anything the
// delivery produces in turn, until the queue dries up. Envelopes whose
// destination is not a replica in the cluster (a client reply) are
// collected and returned instead of being dropped.
func pump(nodes map[string]*Node, now time.Time, initial []wire.Envelope) []wire.Envelope {
	var clientOut []wire.Envelope
	queue := append([]wire.Envelope(nil), initial...)
	for i := 0; i < 10000 && len(queue) > 0; i++ {
		e := queue[0]
		queue = queue[1:]

		if e.Dst == wire.Broadcast {
			for id, n := range nodes {
				if id == e.Src {
					continue
				}
				queue = append(queue, n.HandleMessage(now, e)...)
			}
			continue
		}
		if n, ok := nodes[e.Dst]; ok {
			queue = append(queue, n.HandleMessage(now, e)...)
			continue
		}
		clientOut = append(clientOut, e)
	}
	return clientOut
}

// tickAll advances the clock and runs Tick on every live node, pumping
// whatever that produces through the cluster.
func tickAll(nodes map[string]*Node, clk *clock.Fake, by time.Duration) []wire.Envelope {
	clk.Advance(by)
	now := clk.Now()
	var queue []wire.Envelope
	for _, n := range nodes {
		queue = append(queue, n.Tick(now)...)
	}
	return pump(nodes, now, queue)
}

func leaderOf(nodes map[string]*Node) *Node {
	for _, n := range nodes {
		if n.Role() == Leader {
			return n
		}
	}
	return nil
}

// electLeader advances the clock in 1ms steps, so the replica with the
// shortest randomized election timeout fires first, until a leader emerges.
func electLeader(t *testing.T, nodes map[string]*Node, clk *clock.Fake) *Node {
	t.Helper()
	for step := 0; step < 2000; step++ {
		tickAll(nodes, clk, time.Millisecond)
		if l := leaderOf(nodes); l != nil {
			return l
		}
	}
	t.Fatal("no leader elected within 2s of simulated time")
	return nil
}

func put(t *testing.T, nodes map[string]*Node, clk *clock.Fake, leader *Node, client, key, value string) []wire.Envelope {
	t.Helper()
	now := clk.Now()
	req := wire.Envelope{Src: client, Dst: leader.ID(), Type: wire.Put, Key: key, Value: value, MID: "m1"}
	out := leader.HandleMessage(now, req)
	replies := pump(nodes, now, out)
	// the leader broadcasts the new entry at once, so it usually commits and
	// its ok comes back within this pump; if nothing came back, drive up to
	// five heartbeat intervals.
	for i := 0; i < 5 && len(replies) == 0; i++ {
		replies = append(replies, tickAll(nodes, clk, clock.HeartbeatInterval)...)
	}
	return replies
}

func TestElectsExactlyOneLeader(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	nodes := newTestCluster(t, []string{"a", "b", "c"}, clk)
	leader := electLeader(t, nodes, clk)
	require.NotNil(t, leader)

	count := 0
	for _, n := range nodes {
		if n.Role() == Leader {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPutThenGetRoundTrip(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	nodes := newTestCluster(t, []string{"a", "b", "c"}, clk)
	leader := electLeader(t, nodes, clk)

	replies := put(t, nodes, clk, leader, "client-1", "x", "42")
	require.Len(t, replies, 1)
	assert.Equal(t, wire.Ok, replies[0].Type)
	assert.Equal(t, "42", replies[0].Value)

	now := clk.Now()
	getReq := wire.Envelope{Src: "client-1", Dst: leader.ID(), Type: wire.Get, Key: "x", MID: "m2"}
	getReplies := pump(nodes, now, leader.HandleMessage(now, getReq))
	require.Len(t, getReplies, 1)
	assert.Equal(t, wire.Ok, getReplies[0].Type)
	assert.Equal(t, "42", getReplies[0].Value)
}

func TestNonLeaderRedirectsClient(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	nodes := newTestCluster(t, []string{"a", "b", "c"}, clk)
	leader := electLeader(t, nodes, clk)

	var follower *Node
	for _, n := range nodes {
		if n.ID() != leader.ID() {
			follower = n
			break
		}
	}

	now := clk.Now()
	req := wire.Envelope{Src: "client-1", Dst: follower.ID(), Type: wire.Put, Key: "x", Value: "1", MID: "m1"}
	out := follower.HandleMessage(now, req)
	require.Len(t, out, 1)
	assert.Equal(t, wire.Redirect, out[0].Type)
}

func TestEmptyKeyFails(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	nodes := newTestCluster(t, []string{"a", "b", "c"}, clk)
	leader := electLeader(t, nodes, clk)

	now := clk.Now()
	req := wire.Envelope{Src: "client-1", Dst: leader.ID(), Type: wire.Put, Key: "", Value: "1", MID: "m1"}
	out := leader.HandleMessage(now, req)
	require.Len(t, out, 1)
	assert.Equal(t, wire.Fail, out[0].Type)
}

func TestLeaderFailoverPreservesCommittedData(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	nodes := newTestCluster(t, []string{"a", "b", "c"}, clk)
	leader := electLeader(t, nodes, clk)

	replies := put(t, nodes, clk, leader, "client-1", "x", "42")
	require.Len(t, replies, 1)

	// one heartbeat round carries the leader's commit index to the
	// followers before the leader goes away.
	tickAll(nodes, clk, clock.HeartbeatInterval)

	live := make(map[string]*Node, 2)
	for id, n := range nodes {
		if id != leader.ID() {
			live[id] = n
		}
	}

	newLeader := electLeader(t, live, clk)
	require.NotEqual(t, leader.ID(), newLeader.ID())
	assert.Equal(t, "42", newLeader.KV().Get("x"))
}

func TestLaggingFollowerCatchesUp(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	all := newTestCluster(t, []string{"a", "b", "c"}, clk)
	leader := electLeader(t, all, clk)

	var laggingID string
	for id := range all {
		if id != leader.ID() {
			laggingID = id
			break
		}
	}
	lagging := all[laggingID]

	active := make(map[string]*Node, 2)
	for id, n := range all {
		if id != laggingID {
			active[id] = n
		}
	}

	_ = put(t, active, clk, leader, "client-1", "x", "42")

	full := map[string]*Node{leader.ID(): leader, laggingID: lagging}
	for id, n := range active {
		if id != leader.ID() {
			full[id] = n
		}
	}

	for round := 0; round < 10; round++ {
		tickAll(full, clk, clock.HeartbeatInterval)
	}

	assert.Equal(t, "42", lagging.KV().Get("x"))
}
