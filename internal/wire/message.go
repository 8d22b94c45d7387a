// Package wire is the message codec: the tagged union of envelope variants
// spec.md §6 enumerates, and their encoding as one YAML document per
// datagram. A YAML document is the "self-describing textual object" the
// spec calls for — it is the pack's pure-Go, non-generated marshaler for
// small tagged records (see /root/module/DESIGN.md for why a
// code-generated format was rejected for this role).
package wire

// Broadcast is the distinguished destination id meaning "every peer".
const Broadcast = "FFFF"

// Type is the envelope's message-type tag.
type Type string

const (
	Hello          Type = "hello"
	RequestRPC     Type = "request_rpc"
	Vote           Type = "vote"
	AppendEntries  Type = "append-entries"
	AppendResponse Type = "append-response"
	Get            Type = "get"
	Put            Type = "put"
	Ok             Type = "ok"
	Redirect       Type = "redirect"
	Fail           Type = "fail"
)

// LogEntry is the wire shape of a raftlog.Entry. Kept distinct from
// raftlog.Entry so the log's in-memory representation can evolve without
// breaking the wire format, and vice versa.
type LogEntry struct {
	Term   int64  `yaml:"term"`
	Index  int64  `yaml:"index"`
	Key    string `yaml:"key"`
	Value  string `yaml:"value"`
	Client string `yaml:"client"`
	MID    string `yaml:"mid"`
}

// Envelope is the universal message frame (spec.md §6): every datagram
// decodes to one Envelope, and Type selects which of the payload fields
// below are meaningful. Unused fields are omitted on encode.
type Envelope struct {
	Src    string `yaml:"src"`
	Dst    string `yaml:"dst"`
	Leader string `yaml:"leader,omitempty"`
	Type   Type   `yaml:"type"`

	// request_rpc
	Term      int64 `yaml:"term,omitempty"`
	LogLength int64 `yaml:"log-length,omitempty"`
	// LastLogTerm extends spec.md §6's request_rpc beyond its literal
	// field list so voters can apply the (last_log_term, last_log_index)
	// up-to-date predicate spec.md §9 item 3 requires instead of a bare
	// log-length comparison (see DESIGN.md).
	LastLogTerm int64 `yaml:"last-log-term,omitempty"`

	// vote
	ShouldVote bool `yaml:"should_vote,omitempty"`

	// append-entries / append-response
	PrevLogIndex int64      `yaml:"prev_log_index,omitempty"`
	PrevLogTerm  int64      `yaml:"prev_log_term,omitempty"`
	Entries      []LogEntry `yaml:"entries,omitempty"`
	CommitIndex  int64      `yaml:"commit_index,omitempty"`
	LeaderCommit int64      `yaml:"leader_commit,omitempty"`
	Success      bool       `yaml:"success,omitempty"`
	IndexDiff    int64      `yaml:"index-difference,omitempty"`
	TermDiff     int64      `yaml:"term-difference,omitempty"`

	// get / put
	Key   string `yaml:"key,omitempty"`
	Value string `yaml:"value,omitempty"`
	MID   string `yaml:"MID,omitempty"`
}
