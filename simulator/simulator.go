package simulator

import (
	"fmt"
	"sync"
)

// Simulator is a tick-synchronous bulk-synchronous engine over an arena
// of nodes. Each tick runs phases 1-3 (admit, generate, GC) for every
// node, in parallel across worker threads when configured, then joins
// and runs phase 4 (emit) serially: emission pushes into peer inbound
// queues, so it must not race with anything.
//
// All state is owned by the arena; between ticks there are no live
// goroutines and the caller may inspect the simulator freely.
type Simulator struct {
	config   SimConfig
	nodes    []Node
	layouts  [][]int // Per-tree level-ordered hub layouts
	numTrees int
	levels   int // Tree depth over the racks
	keys     KeySource
	tick     int64

	// Root emission accounting: messages leaving the system
	rootMsgs     int64
	rootEffMsgs  int64
	rootBytes    int64
	rootEffBytes int64

	lastHubs []HubStats // Snapshot built by the most recent report

	// Event logging callback (optional, for CLI/server capture)
	LogEvent func(msg string)
}

// NewSimulator creates a simulator over the given key source. A nil
// source selects the synthetic one described by the configuration.
func NewSimulator(config SimConfig, keys KeySource) (*Simulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		if config.KeyDir != "" {
			keys = NewFileKeySource(config.KeyDir)
		} else {
			keys = NewRandomKeySource(config.RandomSeed, config.KeySpace, config.KeyDist, config.GeometricP)
		}
	}

	s := &Simulator{
		config:   config,
		numTrees: config.NumTrees(),
		levels:   treeLevels(config.Fanout, config.NumRacks),
		keys:     keys,
	}
	s.buildNodes()
	return s, nil
}

func (s *Simulator) buildNodes() {
	c := &s.config
	total := c.NumRacks * c.NodesPerRack
	s.nodes = make([]Node, total)
	s.layouts = buildLayouts(c.NumRacks, c.NodesPerRack, c.Fanout, s.numTrees)
	posLevels := positionLevels(c.Fanout, c.NumRacks)

	rootIn, rootOut := c.RootInLimit, c.RootOutLimit
	if rootIn == 0 {
		rootIn = c.InLimit
	}
	if rootOut == 0 {
		rootOut = c.OutLimit
	}

	for i := range s.nodes {
		n := &s.nodes[i]
		n.id = i
		n.parent = make([]int, s.numTrees)
		n.level = make([]int, s.numTrees)
		n.buf = make([]msgRing, s.numTrees)
		n.gc = make([]bool, s.numTrees)
		n.gcDelay = make([]int64, s.numTrees)
		n.inLimit = c.InLimit / c.Ticks
		n.outLimit = c.OutLimit / c.Ticks
		n.msgsPerTick = c.MsgRate / c.Ticks
		for k := range n.parent {
			n.parent[k] = -1
			n.level[k] = -1
		}
	}
	// Node 0 is the rack-0 hub; it carries the root bandwidth limits
	// whichever trees it roots.
	s.nodes[0].inLimit = rootIn / c.Ticks
	s.nodes[0].outLimit = rootOut / c.Ticks

	// Inter-rack edges from the level-ordered layouts
	for k, layout := range s.layouts {
		for pos, id := range layout {
			if pos == 0 {
				s.nodes[id].parent[k] = -1
			} else {
				s.nodes[id].parent[k] = layout[(pos-1)/c.Fanout]
			}
			s.nodes[id].level[k] = posLevels[pos]
		}
	}
	// Intra-rack stars: every non-hub funnels through its rack hub on
	// every tree.
	for r := 0; r < c.NumRacks; r++ {
		hub := r * c.NodesPerRack
		for i := 1; i < c.NodesPerRack; i++ {
			n := &s.nodes[hub+i]
			for k := range n.parent {
				n.parent[k] = hub
				n.level[k] = -1
			}
		}
	}

	assignGCPolicy(s.nodes, s.layouts, posLevels, c.GCPolicy, c.GCAccDelay, s.levels)

	s.logEvent("[INIT] %d nodes (%d racks x %d), %d tree(s), %d levels, gc=%s",
		len(s.nodes), c.NumRacks, c.NodesPerRack, s.numTrees, s.levels, c.GCPolicy)
}

// Config returns a copy of the current configuration
func (s *Simulator) Config() SimConfig {
	return s.config
}

// Tick returns the current tick
func (s *Simulator) Tick() int64 {
	return s.tick
}

// NumTrees returns the number of spanning trees built
func (s *Simulator) NumTrees() int {
	return s.numTrees
}

// Levels returns the rack-tree depth
func (s *Simulator) Levels() int {
	return s.levels
}

// Step advances the simulation by one tick
func (s *Simulator) Step() {
	t := s.tick
	nt := s.config.NumThreads
	if nt > 1 {
		// Contiguous equal chunks; the last chunk absorbs the
		// remainder. Chunks are disjoint, so phases 1-3 touch no
		// shared state except the key source.
		chunk := len(s.nodes) / nt
		var wg sync.WaitGroup
		for w := 0; w < nt; w++ {
			lo := w * chunk
			hi := lo + chunk
			if w == nt-1 {
				hi = len(s.nodes)
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				s.runChunk(t, lo, hi)
			}(lo, hi)
		}
		wg.Wait()
	} else {
		s.runChunk(t, 0, len(s.nodes))
	}

	s.emitAll(t)

	s.tick++
	if s.tick%s.config.Ticks == 0 {
		s.report(s.tick / s.config.Ticks)
	}
}

// runChunk executes phases 1-3 for nodes [lo, hi)
func (s *Simulator) runChunk(t int64, lo, hi int) {
	msgSize := s.config.MsgSize
	for i := lo; i < hi; i++ {
		n := &s.nodes[i]
		n.admitInbound(t, msgSize)
		n.generate(t, msgSize, s.numTrees, s.keys)
		n.gcCompact(t, s.config.GCPeriod, msgSize)
	}
}

// emitAll executes phase 4 serially over all nodes in id order. For
// each node, trees take turns emitting one message per pass so they
// share the outbound budget by interleaved availability; passes repeat
// until a full pass moves nothing. Tombstones are dropped from buffer
// fronts and never transmitted. Root emissions leave the system and are
// accounted against the run totals.
func (s *Simulator) emitAll(t int64) {
	msgSize := s.config.MsgSize
	for i := range s.nodes {
		n := &s.nodes[i]
		for {
			emitted := false
			for k := 0; k < s.numTrees; k++ {
				b := &n.buf[k]
				for b.Len() > 0 && b.Front().Type == MsgTombstone {
					b.PopFront()
				}
				if b.Len() == 0 {
					continue
				}
				front := b.Front()
				if front.Time > t || n.out+msgSize > n.outLimit {
					continue
				}
				if front.EffSize <= 0 {
					panic(SimError{Message: fmt.Sprintf("node %d emitting message with eff_size %d", n.id, front.EffSize)})
				}
				if p := n.parent[k]; p != -1 {
					s.nodes[p].inQueue.Push(*front)
				} else {
					s.rootMsgs++
					s.rootEffMsgs += front.EffSize
					s.rootBytes += msgSize
					s.rootEffBytes += front.EffSize * msgSize
				}
				n.out += msgSize
				n.outPerSec += msgSize
				n.effOutPerSec += front.EffSize * msgSize
				n.totalOutMsgs++
				b.PopFront()
				emitted = true
			}
			if !emitted {
				break
			}
		}
	}
}

// report emits the per-second aggregate and per-hub lines, snapshots
// hub stats, and resets the per-second counters
func (s *Simulator) report(second int64) {
	c := &s.config
	var totalSelf, totalSaved int64
	for i := range s.nodes {
		totalSelf += s.nodes[i].selfPerSec
		totalSaved += s.nodes[i].savedPerSec
	}
	s.logEvent("[REPORT] t=%ds self=%.2fMB saved=%.2fMB root_out=%.2fMB root_eff=%.2fMB",
		second, mb(totalSelf), mb(totalSaved), mb(s.rootBytes), mb(s.rootEffBytes))

	hubs := make([]HubStats, 0, c.NumRacks)
	for i := range s.nodes {
		n := &s.nodes[i]
		if !n.isHub() {
			n.resetSecond()
			continue
		}
		inCap := n.inLimit * c.Ticks
		outCap := n.outLimit * c.Ticks
		var bufMsgs int64
		for k := range n.buf {
			bufMsgs += int64(n.buf[k].Len())
		}
		h := HubStats{
			NodeID:     n.id,
			Levels:     append([]int(nil), n.level...),
			InMB:       mb(n.inPerSec + n.selfPerSec),
			OutMB:      mb(n.outPerSec),
			EffOutMB:   mb(n.effOutPerSec),
			SavedMB:    mb(n.savedPerSec),
			InUtilPct:  pct(n.inPerSec, inCap),
			OutUtilPct: pct(n.outPerSec, outCap),
			BufMsgs:    bufMsgs,
		}
		hubs = append(hubs, h)
		s.logEvent("[REPORT]   hub %d in=%.2fMB out=%.2fMB eff_out=%.2fMB in_util=%.1f%% out_util=%.1f%%",
			h.NodeID, h.InMB, h.OutMB, h.EffOutMB, h.InUtilPct, h.OutUtilPct)
		n.resetSecond()
	}
	s.lastHubs = hubs
}

// resetSecond clears the five per-second counters
func (n *Node) resetSecond() {
	n.inPerSec = 0
	n.outPerSec = 0
	n.effOutPerSec = 0
	n.selfPerSec = 0
	n.savedPerSec = 0
}

// Run advances the simulation to its configured end
func (s *Simulator) Run() {
	end := s.config.Duration * s.config.Ticks
	for s.tick < end {
		s.Step()
	}
}

// RunSeconds advances the simulation by n simulated seconds
func (s *Simulator) RunSeconds(n int64) {
	end := s.tick + n*s.config.Ticks
	for s.tick < end {
		s.Step()
	}
}

// Metrics assembles the current simulation-wide totals
func (s *Simulator) Metrics() *Metrics {
	m := &Metrics{
		Tick:         s.tick,
		Seconds:      s.tick / s.config.Ticks,
		RootMsgs:     s.rootMsgs,
		RootEffMsgs:  s.rootEffMsgs,
		RootBytes:    s.rootBytes,
		RootEffBytes: s.rootEffBytes,
		Hubs:         append([]HubStats(nil), s.lastHubs...),
	}
	m.ResidualMsgs, m.ResidualPhysMsgs = s.residual()
	for i := range s.nodes {
		n := &s.nodes[i]
		m.TotalSelfMsgs += n.totalSelfMsgs
		m.TotalSavedMsgs += n.totalSavedMsgs
		m.TotalInMsgs += n.totalInMsgs
		m.TotalOutMsgs += n.totalOutMsgs
	}
	m.SavedBytes = m.TotalSavedMsgs * s.config.MsgSize
	return m
}

// Residual returns the effective message mass still inside the system:
// the sum of EffSize over live data messages in every buffer and every
// inbound queue. Generated mass always equals root-emitted effective
// mass plus this.
func (s *Simulator) Residual() int64 {
	eff, _ := s.residual()
	return eff
}

func (s *Simulator) residual() (eff, phys int64) {
	for i := range s.nodes {
		n := &s.nodes[i]
		for k := range n.buf {
			b := &n.buf[k]
			for j := 0; j < b.Len(); j++ {
				if m := b.At(j); m.Type == MsgData {
					eff += m.EffSize
					phys++
				}
			}
		}
		for _, m := range n.inQueue.Messages() {
			if m.Type == MsgData {
				eff += m.EffSize
				phys++
			}
		}
	}
	return eff, phys
}

func (s *Simulator) logEvent(format string, args ...interface{}) {
	if s.LogEvent != nil {
		s.LogEvent(fmt.Sprintf(format, args...))
		return
	}
	fmt.Printf(format+"\n", args...)
}

func mb(bytes int64) float64 {
	return float64(bytes) / 1e6
}

func pct(used, capacity int64) float64 {
	if capacity == 0 {
		return 0
	}
	return 100 * float64(used) / float64(capacity)
}
