package raftlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyLog(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, int64(-1), l.LastIndex())
	assert.Equal(t, int64(-1), l.LastTerm())
	assert.False(t, l.HasIndex(0))
}

func TestAppendAssignsIndex(t *testing.T) {
	l := New()
	i0 := l.Append(Entry{Term: 1, Key: "a", Value: "1"})
	i1 := l.Append(Entry{Term: 1, Key: "b", Value: "2"})
	require.Equal(t, int64(0), i0)
	require.Equal(t, int64(1), i1)
	assert.Equal(t, int64(1), l.LastTerm())
	assert.Equal(t, int64(1), l.LastIndex())
}

func TestTruncate(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1})
	l.Append(Entry{Term: 1})
	l.Append(Entry{Term: 2})
	l.Truncate(1)
	assert.Equal(t, 1, l.Len())
}

func TestAppendBatchIdempotentAtSamePrevIndex(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1, Key: "a"})
	batch := []Entry{{Term: 2, Key: "b"}, {Term: 2, Key: "c"}}

	last1 := l.AppendBatch(0, batch)
	snapshot := append([]Entry(nil), l.entries...)

	last2 := l.AppendBatch(0, batch)

	assert.Equal(t, last1, last2)
	assert.Equal(t, snapshot, l.entries)
}

func TestFirstAndHighestIndexWithTerm(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1})
	l.Append(Entry{Term: 2})
	l.Append(Entry{Term: 2})
	l.Append(Entry{Term: 3})

	assert.Equal(t, int64(1), l.FirstIndexWithTerm(2))
	assert.Equal(t, int64(2), l.HighestIndexWithTerm(2))
	assert.Equal(t, int64(-1), l.FirstIndexWithTerm(9))
}

func TestIncrementAck(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1, AckCount: 1})
	got := l.IncrementAck(0)
	assert.Equal(t, 2, got)
	assert.Equal(t, 0, l.IncrementAck(5))
}

func TestSliceFromBeyondEndIsNil(t *testing.T) {
	l := New()
	l.Append(Entry{Term: 1})
	assert.Nil(t, l.Slice(5))
}
