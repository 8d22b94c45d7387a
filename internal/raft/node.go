// Copyright 2018 Johannes Weigend
// Licensed under the Apache License, Version 2.0

package raft

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/s-macke/raftkv/internal/clock"
	"github.com/s-macke/raftkv/internal/kvstore"
	"github.com/s-macke/raftkv/internal/raftlog"
	"github.com/s-macke/raftkv/internal/wire"
)

// Node is one replica's replication engine: election module, replication
// module and state machine combined, exactly as spec.md §2 groups them.
// It owns all of its state exclusively (spec.md §3 "Ownership") and is
// driven by a single caller, one message or timer tick at a time.
type Node struct {
	id    string
	peers []string // every other replica id; this node is not in it
	n     int      // len(peers) + 1

	role     *roleState
	term     int64
	votedFor string // replica id this node voted for in the current term

	log         *raftlog.Log
	commitIndex int64
	lastApplied int64
	kv          *kvstore.Store

	// leader-only
	nextIndex  map[string]int64
	matchIndex map[string]int64

	// candidate-only
	pendingVotes map[string]bool
	votes        int

	leader string // best-known leader id, "" if unknown

	clock             clock.Clock
	electionDeadline  time.Time
	heartbeatDeadline time.Time

	log_ logrus.FieldLogger // named log_ to avoid clashing with the *raftlog.Log field
}

// New constructs a replica. peers lists every other replica's id; id must
// not appear in peers. If logger is nil, logrus.StandardLogger() is used.
func New(id string, peers []string, clk clock.Clock, logger logrus.FieldLogger) *Node {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	n := &Node{
		id:           id,
		peers:        append([]string(nil), peers...),
		n:            len(peers) + 1,
		role:         newRoleState(),
		term:         0,
		votedFor:     "",
		log:          raftlog.New(),
		commitIndex:  -1,
		lastApplied:  -1,
		kv:           kvstore.New(),
		nextIndex:    make(map[string]int64),
		matchIndex:   make(map[string]int64),
		pendingVotes: make(map[string]bool),
		clock:        clk,
		log_:         logger.WithField("replica", id),
	}
	now := clk.Now()
	n.electionDeadline = now.Add(clock.RandomElectionTimeout())
	n.heartbeatDeadline = now.Add(clock.HeartbeatInterval)
	return n
}

// ID returns this replica's id.
func (n *Node) ID() string { return n.id }

// Role returns the current role.
func (n *Node) Role() Role { return n.role.role() }

// Term returns the current term.
func (n *Node) Term() int64 { return n.term }

// Leader returns this replica's best guess at the current leader, "" if
// unknown.
func (n *Node) Leader() string { return n.leader }

// CommitIndex returns the current commit index.
func (n *Node) CommitIndex() int64 { return n.commitIndex }

// LastApplied returns the current last-applied index.
func (n *Node) LastApplied() int64 { return n.lastApplied }

// LogLen returns the length of the local log.
func (n *Node) LogLen() int { return n.log.Len() }

// KV exposes the state machine's backing store; read-only use (Get) is
// expected — the state machine is the only writer.
func (n *Node) KV() *kvstore.Store { return n.kv }

func (n *Node) baseEnvelope(dst string, t wire.Type) wire.Envelope {
	return wire.Envelope{Src: n.id, Dst: dst, Leader: n.leader, Type: t}
}

// Tick runs the deadline-driven half of the event loop (spec.md §4.1):
// heartbeat emission, election timeout, candidate vote-request re-send,
// and state-machine application. It returns any outgoing envelopes.
func (n *Node) Tick(now time.Time) []wire.Envelope {
	var out []wire.Envelope

	switch {
	case n.role.role() == Leader && !now.Before(n.heartbeatDeadline):
		out = append(out, n.broadcastAppendEntries()...)
		n.heartbeatDeadline = now.Add(clock.HeartbeatInterval)
	case n.role.role() != Leader && !now.Before(n.electionDeadline):
		out = append(out, n.startElection(now)...)
	}

	if n.role.role() == Candidate && !now.Before(n.heartbeatDeadline) {
		out = append(out, n.resendVoteRequests()...)
		n.heartbeatDeadline = now.Add(clock.HeartbeatInterval)
	}

	out = append(out, n.applyCommitted()...)
	return out
}

// HandleMessage dispatches one decoded envelope to the right handler and
// returns any envelopes produced in response. now is passed in (rather than
// read from n.clock) so a single poll batch uses one consistent timestamp.
func (n *Node) HandleMessage(now time.Time, e wire.Envelope) []wire.Envelope {
	var out []wire.Envelope
	switch e.Type {
	case wire.RequestRPC:
		out = append(out, n.handleRequestRPC(now, e))
	case wire.Vote:
		out = append(out, n.handleVote(now, e)...)
	case wire.AppendEntries:
		out = append(out, n.handleAppendEntries(now, e))
	case wire.AppendResponse:
		out = append(out, n.handleAppendResponse(e)...)
	case wire.Put:
		out = append(out, n.handlePut(e)...)
	case wire.Get:
		out = append(out, n.handleGet(e))
	default:
		// hello/ok/redirect/fail arriving at a replica are not requests
		// this replica must answer; drop silently (spec.md §7 item 3).
	}
	out = append(out, n.applyCommitted()...)
	return out
}

// resetElectionTimer draws a fresh randomized deadline. Called on any
// granted vote and on any valid append from the current leader.
func (n *Node) resetElectionTimer(now time.Time) {
	n.electionDeadline = now.Add(clock.RandomElectionTimeout())
}

func (n *Node) becomeFollower(now time.Time, term int64, leader string) {
	if term > n.term {
		n.votedFor = ""
	}
	n.term = term
	if leader != "" {
		n.leader = leader
	}
	if n.role.role() != Follower {
		n.role.next(Follower)
	}
	n.resetElectionTimer(now)
}
