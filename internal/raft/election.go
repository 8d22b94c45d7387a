package raft

import (
	"time"

	"github.com/s-macke/raftkv/internal/clock"
	"github.com/s-macke/raftkv/internal/wire"
)

// startElection runs spec.md §4.2 steps 1-3: advance to Candidate, bump the
// term, vote for self, and broadcast a request_rpc. Also used to restart a
// stuck election (Candidate whose own election_deadline elapses again).
func (n *Node) startElection(now time.Time) []wire.Envelope {
	n.role.next(Candidate)
	n.term++
	n.votedFor = n.id
	n.votes = 1
	n.pendingVotes = make(map[string]bool, len(n.peers))
	for _, p := range n.peers {
		n.pendingVotes[p] = true
	}
	n.resetElectionTimer(now)
	n.heartbeatDeadline = now.Add(clock.HeartbeatInterval) // paces vote re-requests, spec.md §4.2 step 2

	n.log_.WithField("term", n.term).Info("election timeout, starting election")

	e := n.baseEnvelope(wire.Broadcast, wire.RequestRPC)
	e.Term = n.term
	e.LogLength = int64(n.log.Len())
	e.LastLogTerm = n.log.LastTerm()
	return []wire.Envelope{e}
}

// resendVoteRequests re-sends request_rpc to every peer that has not yet
// replied in the current election.
func (n *Node) resendVoteRequests() []wire.Envelope {
	out := make([]wire.Envelope, 0, len(n.pendingVotes))
	for peer := range n.pendingVotes {
		e := n.baseEnvelope(peer, wire.RequestRPC)
		e.Term = n.term
		e.LogLength = int64(n.log.Len())
		e.LastLogTerm = n.log.LastTerm()
		out = append(out, e)
	}
	return out
}

// handleRequestRPC is the voter side of spec.md §4.2.
func (n *Node) handleRequestRPC(now time.Time, e wire.Envelope) wire.Envelope {
	reply := n.baseEnvelope(e.Src, wire.Vote)
	candidate := e.Src
	rt := e.Term

	switch {
	case rt < n.term:
		n.log_.WithError(ErrStaleTerm).WithField("from", candidate).Debug("rejecting request_rpc")
		reply.Term = n.term
		reply.ShouldVote = false

	case rt == n.term:
		n.resetElectionTimer(now)
		reply.ShouldVote = n.votedFor == candidate
		reply.Term = n.term

	default: // rt > n.term
		n.term = rt
		n.votedFor = ""
		if n.role.role() != Candidate {
			n.role.next(Follower)
		}
		candidateUpToDate := n.isAtLeastAsUpToDate(e.LastLogTerm, e.LogLength-1)
		if candidateUpToDate {
			n.votedFor = candidate
			n.resetElectionTimer(now)
		}
		reply.ShouldVote = candidateUpToDate
		reply.Term = n.term
	}

	if reply.ShouldVote {
		n.log_.WithField("term", n.term).Infof("voted for %s", candidate)
	}
	return reply
}

// isAtLeastAsUpToDate applies the (last_log_term, last_log_index) lexicographic
// predicate spec.md §9 item 3 requires, replacing a bare log-length compare.
func (n *Node) isAtLeastAsUpToDate(otherLastTerm, otherLastIndex int64) bool {
	selfLastTerm := n.log.LastTerm()
	selfLastIndex := n.log.LastIndex()
	if otherLastTerm != selfLastTerm {
		return otherLastTerm > selfLastTerm
	}
	return otherLastIndex >= selfLastIndex
}

// handleVote is the candidate side of spec.md §4.2.
func (n *Node) handleVote(now time.Time, e wire.Envelope) []wire.Envelope {
	if n.role.role() != Candidate {
		return nil // stale reply to an election we are no longer running
	}
	peer := e.Src
	if !n.pendingVotes[peer] {
		return nil // already counted, or not a peer we asked
	}
	delete(n.pendingVotes, peer)

	if e.ShouldVote {
		n.votes++
		if n.votes >= majority(n.n) {
			return n.becomeLeader(now)
		}
		return nil
	}
	if e.Term > n.term {
		n.becomeFollower(now, e.Term, "")
	}
	return nil
}

// becomeLeader is spec.md §4.2's election-won transition.
func (n *Node) becomeLeader(now time.Time) []wire.Envelope {
	n.role.next(Leader)
	n.leader = n.id
	for _, p := range n.peers {
		n.nextIndex[p] = int64(n.log.Len())
		n.matchIndex[p] = -1
	}
	// A leader never starts its own election; keep electionDeadline clear
	// of Tick's election case regardless (Tick also guards on role).
	n.resetElectionTimer(now)
	n.log_.WithField("term", n.term).Info("election won, became leader")

	if !now.Before(n.heartbeatDeadline) {
		out := n.broadcastAppendEntries()
		n.heartbeatDeadline = now.Add(clock.HeartbeatInterval)
		return out
	}
	return nil
}
