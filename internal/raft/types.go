// Package raft implements the replication engine: leader election, log
// replication, commit advancement, and the state machine that applies
// committed commands to the KV map (spec.md §1-§4).
//
// A Node has no internal lock. It is driven by a single caller — normally
// internal/transport.Loop — one message or timer tick at a time, which
// satisfies the single-threaded cooperative model of spec.md §5 without
// needing the teacher's sync.Mutex.
package raft

// Role is one of Follower, Candidate, Leader (spec.md §3).
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "Follower"
	case Candidate:
		return "Candidate"
	case Leader:
		return "Leader"
	default:
		return "Unknown"
	}
}

// majority returns the strict majority of n replicas, including self:
// ⌈(n+1)/2⌉, computed as n/2+1 (ground truth shared by the whole corpus's
// raft implementations).
func majority(n int) int {
	return n/2 + 1
}
