// Package raftlog is the ordered, append-only sequence of command entries
// each replica holds: term, index, payload, and the leader-only ack tally.
package raftlog

// Entry is one log slot. Index is redundant with the entry's position in
// the owning Log's slice (entry[i].index == i is an invariant — see
// spec.md §3), but carrying it explicitly keeps echoed indices in
// append-response messages self-describing.
type Entry struct {
	Term     int64
	Index    int64
	Key      string
	Value    string
	Client   string // originating replica id, for routing the eventual ok
	MID      string // client-supplied message id, echoed back
	AckCount int    // leader-only: number of replicas known to hold this entry
}

// Log is an ordered, zero-based sequence of Entry. It is not safe for
// concurrent use — the owning raft.Node serializes all access (spec.md §5).
type Log struct {
	entries []Entry
}

// New returns an empty Log.
func New() *Log {
	return &Log{}
}

// Len returns the number of entries in the log.
func (l *Log) Len() int {
	return len(l.entries)
}

// LastIndex returns the index of the last entry, or -1 if the log is empty.
func (l *Log) LastIndex() int64 {
	return int64(len(l.entries)) - 1
}

// LastTerm returns the term of the last entry, or -1 if the log is empty.
func (l *Log) LastTerm() int64 {
	if len(l.entries) == 0 {
		return -1
	}
	return l.entries[len(l.entries)-1].Term
}

// At returns the entry at index i. It panics if i is out of range; callers
// are expected to bounds-check first (HasIndex), since out-of-range access
// here always indicates a protocol bug upstream, never client input.
func (l *Log) At(i int64) Entry {
	return l.entries[i]
}

// TermAt returns the term of the entry at index i, or -1 if i is out of
// range on either side.
func (l *Log) TermAt(i int64) int64 {
	if i < 0 || i >= int64(len(l.entries)) {
		return -1
	}
	return l.entries[i].Term
}

// HasIndex reports whether index i is within the log.
func (l *Log) HasIndex(i int64) bool {
	return i >= 0 && i < int64(len(l.entries))
}

// Append adds an entry at the end of the log and returns its index.
func (l *Log) Append(e Entry) int64 {
	e.Index = int64(len(l.entries))
	l.entries = append(l.entries, e)
	return e.Index
}

// Truncate drops every entry from index i onward (i inclusive). Truncating
// at or beyond the current length is a no-op.
func (l *Log) Truncate(i int64) {
	if i < 0 {
		i = 0
	}
	if i >= int64(len(l.entries)) {
		return
	}
	l.entries = l.entries[:i]
}

// AppendBatch drops every entry after prevIndex, whether or not it conflicts,
// and appends entries, returning the index of the last entry now in the log
// (with no entries, that is prevIndex if the log reached it).
func (l *Log) AppendBatch(prevIndex int64, entries []Entry) int64 {
	l.Truncate(prevIndex + 1)
	for _, e := range entries {
		l.Append(e)
	}
	return l.LastIndex()
}

// FirstIndexWithTerm returns the lowest index holding the given term, or -1
// if no entry holds it. Used by the leader's term-aware next-index back-off
// (spec.md §4.3).
func (l *Log) FirstIndexWithTerm(term int64) int64 {
	for i, e := range l.entries {
		if e.Term == term {
			return int64(i)
		}
	}
	return -1
}

// HighestIndexWithTerm returns the highest index holding the given term, or
// -1 if none do.
func (l *Log) HighestIndexWithTerm(term int64) int64 {
	best := int64(-1)
	for i, e := range l.entries {
		if e.Term == term {
			best = int64(i)
		}
	}
	return best
}

// IncrementAck bumps the ack count of the entry at index i by one and
// returns the new count. Leader-only bookkeeping.
func (l *Log) IncrementAck(i int64) int {
	if !l.HasIndex(i) {
		return 0
	}
	l.entries[i].AckCount++
	return l.entries[i].AckCount
}

// Slice returns entries [from, len) — the batch a leader sends a follower
// whose next_index is from.
func (l *Log) Slice(from int64) []Entry {
	if from < 0 {
		from = 0
	}
	if from >= int64(len(l.entries)) {
		return nil
	}
	out := make([]Entry, len(l.entries)-int(from))
	copy(out, l.entries[from:])
	return out
}
