package raft

import "github.com/s-macke/raftkv/internal/wire"

// applyCommitted drains every entry between last_applied and commit_index
// into the state machine. spec.md §9 item 2: the loop condition is
// last_applied < commit_index, not <=, so a commit_index of -1 (nothing
// committed yet) never applies log[-1] or log[0] prematurely.
//
// If this replica is the leader for the entry just applied, it also emits
// the client's ok reply — this is the only place a put's result is known
// to be durable.
func (n *Node) applyCommitted() []wire.Envelope {
	var out []wire.Envelope
	for n.lastApplied < n.commitIndex {
		n.lastApplied++
		entry := n.log.At(n.lastApplied)
		n.kv.Apply(entry.Key, entry.Value)

		if n.role.role() == Leader && entry.Client != "" {
			reply := n.baseEnvelope(entry.Client, wire.Ok)
			reply.Key = entry.Key
			reply.Value = entry.Value
			reply.MID = entry.MID
			out = append(out, reply)
		}
	}
	return out
}
