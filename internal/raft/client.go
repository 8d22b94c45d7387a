package raft

import (
	"github.com/s-macke/raftkv/internal/raftlog"
	"github.com/s-macke/raftkv/internal/wire"
)

// raftEntry builds the log entry a leader appends for an incoming put.
func raftEntry(term int64, e wire.Envelope) raftlog.Entry {
	return raftlog.Entry{
		Term:     term,
		Key:      e.Key,
		Value:    e.Value,
		Client:   e.Src,
		MID:      e.MID,
		AckCount: 1, // the leader itself holds the entry
	}
}

// redirectEnvelope points a client at this replica's best-known leader,
// spec.md §7: a non-leader serves neither a put nor a get, and the reply's
// leader field carries whatever leader this replica last learned of.
func (n *Node) redirectEnvelope(e wire.Envelope) wire.Envelope {
	n.log_.WithError(ErrNotLeader).WithField("from", e.Src).Debug("redirecting client")
	reply := n.baseEnvelope(e.Src, wire.Redirect)
	reply.Key = e.Key
	reply.MID = e.MID
	return reply
}

// failEnvelope reports a request this replica cannot or will not satisfy
// even as leader (spec.md §7: empty key).
func (n *Node) failEnvelope(e wire.Envelope) wire.Envelope {
	n.log_.WithError(ErrEmptyKey).WithField("from", e.Src).Debug("failing client request")
	reply := n.baseEnvelope(e.Src, wire.Fail)
	reply.Key = e.Key
	reply.MID = e.MID
	return reply
}

// handlePut is spec.md §5's write path: only the leader accepts a put, and
// it does so by appending a log entry and waiting for replication to commit
// it before replying (see applyCommitted, which emits the eventual ok).
func (n *Node) handlePut(e wire.Envelope) []wire.Envelope {
	if n.role.role() != Leader {
		return []wire.Envelope{n.redirectEnvelope(e)}
	}
	if e.Key == "" {
		return []wire.Envelope{n.failEnvelope(e)}
	}

	n.log.Append(raftEntry(n.term, e))
	return n.broadcastAppendEntries()
}

// handleGet is spec.md §5's read path: served directly from local state by
// the leader, without going through the log (spec.md §9 item 5 flags this
// as a source of stale reads, not a bug to fix).
func (n *Node) handleGet(e wire.Envelope) wire.Envelope {
	if n.role.role() != Leader {
		return n.redirectEnvelope(e)
	}
	if e.Key == "" {
		return n.failEnvelope(e)
	}

	reply := n.baseEnvelope(e.Src, wire.Ok)
	reply.Key = e.Key
	reply.Value = n.kv.Get(e.Key)
	reply.MID = e.MID
	return reply
}
