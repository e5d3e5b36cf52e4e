package simulator

// Node is one element of the overlay, indexed by integer id. All
// tree-scoped state is a slice of length numTrees. The topology lives
// entirely in parent ids: parents do not know their children.
type Node struct {
	id     int
	parent []int // Parent node id per tree, -1 at the root of that tree
	level  []int // Depth per tree, root = 0; -1 for non-hub leaves

	inQueue inboundQueue // Messages pushed by children, ordered by time
	buf     []msgRing    // Per-tree hold buffer, FIFO with in-place GC

	gc      []bool  // Whether this node compacts on each tree
	gcDelay []int64 // Forwarding delay injected at admission/generation, ticks

	in, out  int64 // Bytes admitted/emitted during the current tick
	inLimit  int64 // Per-tick inbound ceiling, bytes
	outLimit int64 // Per-tick outbound ceiling, bytes

	msgsPerTick int64 // Self-generation rate

	// Per-second counters, reset by the reporter
	inPerSec     int64
	outPerSec    int64
	effOutPerSec int64
	selfPerSec   int64
	savedPerSec  int64

	// Cumulative counters, never reset
	totalInMsgs    int64
	totalOutMsgs   int64
	totalSelfMsgs  int64
	totalSavedMsgs int64
}

// isHub reports whether the node is its rack's hub
func (n *Node) isHub() bool {
	return n.level[0] >= 0
}

// admitInbound runs phase 1 of the tick: pull messages from the
// inbound queue in time order until the queue drains or the per-tick
// inbound budget is spent. Each admitted message is re-stamped against
// this node's GC delay so accumulated delay composes along the path.
func (n *Node) admitInbound(t, msgSize int64) {
	n.in = 0
	n.out = 0
	for n.inQueue.Len() > 0 && n.in+msgSize <= n.inLimit {
		m := n.inQueue.Pop()
		if n.gc[m.Tree] {
			m.Time = t + n.gcDelay[m.Tree]
		} else {
			m.Time = t
		}
		n.buf[m.Tree].Append(m)
		n.in += msgSize
		n.inPerSec += msgSize
		n.totalInMsgs++
	}
}

// generate runs phase 2 of the tick: append msgsPerTick fresh data
// messages, round-robining them across trees by (j+t) mod numTrees so
// a node's own traffic spreads uniformly over the trees.
func (n *Node) generate(t, msgSize int64, numTrees int, keys KeySource) {
	for j := int64(0); j < n.msgsPerTick; j++ {
		tree := int((j + t) % int64(numTrees))
		eligible := t
		if n.gc[tree] {
			eligible = t + n.gcDelay[tree]
		}
		n.buf[tree].Append(Message{
			Type:    MsgData,
			Key:     keys.NextKey(),
			EffSize: 1,
			Time:    eligible,
			Tree:    tree,
		})
	}
	n.selfPerSec += n.msgsPerTick * msgSize
	n.totalSelfMsgs += n.msgsPerTick
}

// gcCompact runs phase 3 of the tick: every gcPeriod ticks, walk each
// GC-enabled buffer once and merge repeated keys into their first
// occurrence. The later duplicate becomes a tombstone in place, so the
// FIFO order of surviving messages is untouched and the earliest slot
// carries the accumulated EffSize. The walk covers exactly the buffer
// length captured at its start, which includes this tick's own
// generation.
func (n *Node) gcCompact(t, gcPeriod, msgSize int64) {
	if t%gcPeriod != 0 {
		return
	}
	for k := range n.buf {
		if !n.gc[k] || n.buf[k].Len() == 0 {
			continue
		}
		b := &n.buf[k]
		length := b.Len()
		firstPos := make(map[int64]int, length)
		var saved int64
		for j := 0; j < length; j++ {
			m := b.At(j)
			if m.Type == MsgTombstone {
				continue
			}
			if idx, ok := firstPos[m.Key]; ok {
				b.At(idx).EffSize += m.EffSize
				m.Type = MsgTombstone
				saved++
			} else {
				firstPos[m.Key] = j
			}
		}
		n.savedPerSec += saved * msgSize
		n.totalSavedMsgs += saved
	}
}
