package simulator

import "container/heap"

// inboundQueue is a priority queue for messages arriving from children,
// ordered by eligibility time ascending
type inboundQueue struct {
	msgs msgHeap
}

// Push adds a message to the queue
func (q *inboundQueue) Push(m Message) {
	heap.Push(&q.msgs, m)
}

// Pop removes and returns the message with the smallest time.
// Must not be called on an empty queue.
func (q *inboundQueue) Pop() Message {
	return heap.Pop(&q.msgs).(Message)
}

// Peek returns the next message without removing it
func (q *inboundQueue) Peek() (Message, bool) {
	if q.msgs.Len() == 0 {
		return Message{}, false
	}
	return q.msgs[0], true
}

// Len returns the number of queued messages
func (q *inboundQueue) Len() int {
	return q.msgs.Len()
}

// Messages returns a copy of the queued messages in heap order
// (for inspection; not sorted)
func (q *inboundQueue) Messages() []Message {
	out := make([]Message, len(q.msgs))
	copy(out, q.msgs)
	return out
}

type msgHeap []Message

func (h msgHeap) Len() int            { return len(h) }
func (h msgHeap) Less(i, j int) bool  { return h[i].Time < h[j].Time }
func (h msgHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *msgHeap) Push(x interface{}) { *h = append(*h, x.(Message)) }
func (h *msgHeap) Pop() interface{} {
	old := *h
	n := len(old)
	m := old[n-1]
	*h = old[:n-1]
	return m
}
