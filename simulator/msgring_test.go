package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMsgRingFIFO(t *testing.T) {
	var r msgRing
	require.Equal(t, 0, r.Len())
	for i := int64(0); i < 5; i++ {
		r.Append(Message{Key: i})
	}
	require.Equal(t, 5, r.Len())
	for i := int64(0); i < 5; i++ {
		require.Equal(t, i, r.PopFront().Key)
	}
	require.Equal(t, 0, r.Len())
}

func TestMsgRingRandomAccessWrite(t *testing.T) {
	var r msgRing
	r.Append(Message{Key: 1, EffSize: 1})
	r.Append(Message{Key: 2, EffSize: 1})
	r.PopFront()
	r.Append(Message{Key: 3, EffSize: 1})

	// Indexing is relative to the live front
	require.Equal(t, int64(2), r.At(0).Key)
	r.At(1).EffSize = 7
	require.Equal(t, int64(7), r.At(1).EffSize)
	require.Equal(t, int64(2), r.Front().Key)
}

func TestMsgRingHeadReclaim(t *testing.T) {
	var r msgRing
	// Interleave heavy append/pop traffic so the dead prefix gets
	// reclaimed; contents must survive the compaction.
	next, expect := int64(0), int64(0)
	for round := 0; round < 100; round++ {
		for i := 0; i < 10; i++ {
			r.Append(Message{Key: next})
			next++
		}
		for i := 0; i < 9; i++ {
			require.Equal(t, expect, r.PopFront().Key)
			expect++
		}
	}
	require.Equal(t, 100, r.Len())
	for r.Len() > 0 {
		require.Equal(t, expect, r.PopFront().Key)
		expect++
	}
	require.Equal(t, next, expect)
}
