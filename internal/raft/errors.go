package raft

import "errors"

// Sentinel errors, in the style of bernerdschaefer-raft's ErrNotLeader /
// ErrDeposed / ErrAppendEntriesRejected.
var (
	// ErrNotLeader marks a client request this replica cannot serve
	// because it is not the leader; logged alongside the redirect
	// envelope actually sent back, never returned to a caller.
	ErrNotLeader = errors.New("raft: not the leader")

	// ErrEmptyKey marks a get/put carrying an empty key; logged alongside
	// the fail envelope actually sent back, never returned to a caller.
	ErrEmptyKey = errors.New("raft: empty key")

	// ErrStaleTerm marks a message whose term trails this replica's
	// current term; logged, never propagated to a caller.
	ErrStaleTerm = errors.New("raft: stale term")
)
