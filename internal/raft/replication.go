package raft

import (
	"time"

	"github.com/s-macke/raftkv/internal/raftlog"
	"github.com/s-macke/raftkv/internal/wire"
)

func toWireEntries(entries []raftlog.Entry) []wire.LogEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]wire.LogEntry, len(entries))
	for i, e := range entries {
		out[i] = wire.LogEntry{
			Term: e.Term, Index: e.Index, Key: e.Key, Value: e.Value,
			Client: e.Client, MID: e.MID,
		}
	}
	return out
}

func fromWireEntries(entries []wire.LogEntry) []raftlog.Entry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]raftlog.Entry, len(entries))
	for i, e := range entries {
		out[i] = raftlog.Entry{
			Term: e.Term, Index: e.Index, Key: e.Key, Value: e.Value,
			Client: e.Client, MID: e.MID, AckCount: 1,
		}
	}
	return out
}

// broadcastAppendEntries is the leader-side heartbeat/replication emission
// of spec.md §4.3.
func (n *Node) broadcastAppendEntries() []wire.Envelope {
	out := make([]wire.Envelope, 0, len(n.peers))
	for _, p := range n.peers {
		ni, ok := n.nextIndex[p]
		if !ok {
			ni = int64(n.log.Len())
			n.nextIndex[p] = ni
		}

		e := n.baseEnvelope(p, wire.AppendEntries)
		e.Term = n.term
		e.CommitIndex = n.commitIndex
		e.LeaderCommit = n.commitIndex

		if ni == int64(n.log.Len()) {
			e.PrevLogIndex = -1
			e.PrevLogTerm = -1
		} else {
			e.PrevLogIndex = ni - 1
			e.PrevLogTerm = n.log.TermAt(ni - 1)
			e.Entries = toWireEntries(n.log.Slice(ni))
		}
		out = append(out, e)
	}
	return out
}

// matchCheck runs the log-matching protocol at (prevIndex, prevTerm),
// spec.md §4.3. ok reports whether the follower's log agrees with the
// leader at that point; on disagreement it returns the back-off hint the
// leader uses (see handleAppendResponse).
func (n *Node) matchCheck(prevIndex, prevTerm int64) (ok bool, idxDiff, termDiff int64) {
	if prevIndex < 0 {
		return true, 0, 0 // no predecessor required, e.g. a follower's very first batch
	}
	if !n.log.HasIndex(prevIndex) {
		return false, n.log.LastIndex(), n.log.LastTerm()
	}
	if n.log.TermAt(prevIndex) == prevTerm {
		return true, 0, 0
	}
	hint := n.log.FirstIndexWithTerm(prevTerm)
	if hint < 0 {
		return false, n.log.LastIndex(), n.log.LastTerm()
	}
	return false, hint, prevTerm
}

// handleAppendEntries is the follower side of spec.md §4.3.
func (n *Node) handleAppendEntries(now time.Time, e wire.Envelope) wire.Envelope {
	if e.Term < n.term {
		n.log_.WithError(ErrStaleTerm).WithField("from", e.Src).Debug("rejecting append-entries")
		reply := n.baseEnvelope(e.Src, wire.AppendResponse)
		reply.Term = n.term
		reply.Success = false
		reply.IndexDiff = -1
		reply.TermDiff = -1
		reply.Entries = e.Entries
		return reply
	}

	n.becomeFollower(now, e.Term, e.Src)

	reply := n.baseEnvelope(e.Src, wire.AppendResponse)
	reply.Term = n.term
	reply.Entries = e.Entries

	// spec.md §9 item 4: the match check always runs, even for an empty
	// batch — a heartbeat whose prev-log position no longer matches
	// (e.g. after this follower was truncated by a new leader) must still
	// be rejected, not short-circuited to success.
	ok, idxDiff, termDiff := n.matchCheck(e.PrevLogIndex, e.PrevLogTerm)
	if !ok {
		reply.Success = false
		reply.IndexDiff = idxDiff
		reply.TermDiff = termDiff
		return reply
	}

	if entries := fromWireEntries(e.Entries); len(entries) > 0 {
		n.log.AppendBatch(e.PrevLogIndex, entries)
	}
	reply.Success = true

	if e.CommitIndex > n.commitIndex {
		ci := e.CommitIndex
		if last := n.log.LastIndex(); ci > last {
			ci = last
		}
		if ci > n.commitIndex {
			n.commitIndex = ci
		}
	}
	return reply
}

// handleAppendResponse is the leader side of spec.md §4.3.
func (n *Node) handleAppendResponse(e wire.Envelope) []wire.Envelope {
	if n.role.role() != Leader {
		return nil
	}
	src := e.Src

	if e.Success {
		lastEchoed := int64(-1)
		for _, we := range e.Entries {
			if !n.log.HasIndex(we.Index) {
				continue
			}
			n.log.IncrementAck(we.Index)
			if we.Index > lastEchoed {
				lastEchoed = we.Index
			}
		}
		if lastEchoed >= 0 {
			if lastEchoed > n.matchIndex[src] {
				n.matchIndex[src] = lastEchoed
			}
			n.nextIndex[src] = lastEchoed + 1
			n.maybeAdvanceCommit()
		}
		return nil
	}

	if e.IndexDiff >= 0 && e.TermDiff >= 0 {
		if n.log.TermAt(e.IndexDiff) == e.TermDiff {
			n.nextIndex[src] = e.IndexDiff
		} else {
			hi := n.log.HighestIndexWithTerm(e.TermDiff - 1)
			if hi < 0 {
				hi = 0
			}
			n.nextIndex[src] = hi
		}
	}
	return nil
}

// maybeAdvanceCommit implements spec.md §9 item 1: only an entry from the
// current term may cross the majority threshold and move commit_index,
// which transitively commits every earlier entry too.
func (n *Node) maybeAdvanceCommit() {
	for i := n.log.LastIndex(); i > n.commitIndex; i-- {
		if n.log.TermAt(i) != n.term {
			continue
		}
		count := 1 // leader's own log is authoritative, counts for itself
		for _, p := range n.peers {
			if n.matchIndex[p] >= i {
				count++
			}
		}
		if count >= majority(n.n) {
			n.commitIndex = i
			n.log_.WithField("term", n.term).Infof("commit index advanced to %d", i)
			return
		}
	}
}
