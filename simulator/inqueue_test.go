package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInboundQueueOrdering(t *testing.T) {
	var q inboundQueue
	for _, tm := range []int64{15, 5, 20, 1, 10} {
		q.Push(Message{Type: MsgData, Key: tm, EffSize: 1, Time: tm})
	}
	require.Equal(t, 5, q.Len())

	var got []int64
	for q.Len() > 0 {
		got = append(got, q.Pop().Time)
	}
	require.Equal(t, []int64{1, 5, 10, 15, 20}, got)
}

func TestInboundQueuePeek(t *testing.T) {
	var q inboundQueue
	_, ok := q.Peek()
	require.False(t, ok)

	q.Push(Message{Time: 9})
	q.Push(Message{Time: 3})
	m, ok := q.Peek()
	require.True(t, ok)
	require.Equal(t, int64(3), m.Time)
	require.Equal(t, 2, q.Len(), "peek must not consume")
}

func TestInboundQueueMessagesIsACopy(t *testing.T) {
	var q inboundQueue
	q.Push(Message{Time: 1, Key: 10})
	msgs := q.Messages()
	msgs[0].Key = 99
	m, _ := q.Peek()
	require.Equal(t, int64(10), m.Key)
}
