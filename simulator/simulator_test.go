package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newQuietSim(t *testing.T, config SimConfig, keys KeySource) *Simulator {
	t.Helper()
	sim, err := NewSimulator(config, keys)
	require.NoError(t, err)
	sim.LogEvent = func(string) {}
	return sim
}

// checkConservation asserts the two exact mass laws: effective mass
// (generated = root effective + in flight) and physical count
// (generated = compacted away + root physical + live in flight).
func checkConservation(t *testing.T, sim *Simulator) {
	t.Helper()
	m := sim.Metrics()
	require.Equal(t, m.TotalSelfMsgs, m.RootEffMsgs+m.ResidualMsgs,
		"effective mass must be conserved")
	require.Equal(t, m.TotalSelfMsgs, m.TotalSavedMsgs+m.RootMsgs+m.ResidualPhysMsgs,
		"physical message count must be conserved")
}

// Smoke: one node, no GC, 1000 msgs/s for one second flow straight out
// of the root.
func TestSingleNodeSmoke(t *testing.T) {
	config := DefaultConfig()
	config.MsgRate = 1000
	config.Duration = 1
	sim := newQuietSim(t, config, nil)

	sim.Run()

	m := sim.Metrics()
	require.Equal(t, int64(1000), m.TotalSelfMsgs)
	require.Equal(t, int64(1000*32), m.RootBytes)
	require.Equal(t, int64(1000*32), m.RootEffBytes)
	require.Zero(t, m.TotalSavedMsgs)
	require.Zero(t, m.ResidualMsgs)
	checkConservation(t, sim)
}

// Pure forwarding over four racks: every message reaches the root
// except the per-hop pipeline tail.
func TestForwardingChain(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 4
	config.MsgRate = 1000
	config.Duration = 3
	sim := newQuietSim(t, config, nil)

	sim.Run()

	// Node 1 and 2 hang one tick behind the root, node 3 two ticks:
	// 3000 + 2999 + 2999 + 2998 messages make it out.
	m := sim.Metrics()
	require.Equal(t, int64(4*3000), m.TotalSelfMsgs)
	require.Equal(t, int64(11996), m.RootMsgs)
	require.Equal(t, int64(4), m.ResidualMsgs)
	checkConservation(t, sim)
}

// Uniform GC on a duplicate-heavy stream compacts at every hub and
// inflates effective throughput above physical throughput at the root.
func TestUniformGCSavings(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 4
	config.MsgRate = 1000
	config.Duration = 2
	config.GCPolicy = GCPolicyUniform
	config.GCAccDelay = 100
	keys := NewSequenceKeySource([]int64{1, 2, 3, 4, 5})
	sim := newQuietSim(t, config, keys)

	sim.Run()

	m := sim.Metrics()
	require.Greater(t, m.TotalSavedMsgs, int64(0))
	require.Greater(t, m.RootEffBytes, m.RootBytes,
		"effective throughput must exceed physical when merges happened")
	checkConservation(t, sim)

	// Every hub must have compacted something
	for i := range sim.nodes {
		require.Greater(t, sim.nodes[i].totalSavedMsgs, int64(0), "hub %d never compacted", i)
	}
}

func TestMultiTreeBuild(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 5
	config.Fanout = 4
	config.MultiTree = true
	config.MsgRate = 3000
	config.Duration = 1
	sim := newQuietSim(t, config, nil)

	require.Equal(t, 3, sim.NumTrees())
	sim.Run()
	checkConservation(t, sim)
}

// Bandwidth cap: a root that can only admit one message per tick
// plateaus there while the backlog accumulates in its inbound queue.
func TestInboundCapPlateaus(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 2
	config.MsgRate = 10000
	config.Duration = 1
	config.RootInLimit = 32 * 1000 // one 32-byte admission per tick
	sim := newQuietSim(t, config, nil)

	sim.Run()

	root := &sim.nodes[0]
	require.Equal(t, int64(999), root.totalInMsgs,
		"admissions start one tick after the first emission")
	require.Equal(t, 9001, root.inQueue.Len(),
		"backlog grows without bound at the bottleneck")
	checkConservation(t, sim)
}

// Per-tick bandwidth discipline holds at every node on every tick
func TestBandwidthDiscipline(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 4
	config.MsgRate = 10000
	config.RootInLimit = 32 * 2000
	config.OutLimit = 32 * 5000
	config.GCPolicy = GCPolicyUniform
	sim := newQuietSim(t, config, nil)

	for tick := 0; tick < 300; tick++ {
		sim.Step()
		for i := range sim.nodes {
			n := &sim.nodes[i]
			require.LessOrEqual(t, n.in, n.inLimit, "node %d over inbound budget at tick %d", i, tick)
			require.LessOrEqual(t, n.out, n.outLimit, "node %d over outbound budget at tick %d", i, tick)
		}
	}
}

// GC composition: three copies of one key collapse at the leaf hub and
// climb to the root as a single message carrying eff_size 3.
func TestGCComposesAcrossHubs(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 2
	config.MsgRate = 0
	config.Duration = 1
	config.GCPolicy = GCPolicyUniform
	config.GCAccDelay = 100 // two levels, 50 ticks per hub
	sim := newQuietSim(t, config, NewSequenceKeySource([]int64{42}))

	for i := 0; i < 3; i++ {
		sim.nodes[1].buf[0].Append(Message{Type: MsgData, Key: 42, EffSize: 1, Time: 0, Tree: 0})
	}
	for tick := 0; tick < 60; tick++ {
		sim.Step()
	}

	m := sim.Metrics()
	require.Equal(t, int64(2), m.TotalSavedMsgs, "leaf hub merges two duplicates")
	require.Equal(t, int64(1), m.RootMsgs, "one physical message leaves the system")
	require.Equal(t, int64(3), m.RootEffMsgs, "it carries all three originals")
}

// Under a constrained outbound budget, compaction moves strictly more
// effective mass through the root than pure forwarding does.
func TestGCBeatsForwardingUnderPressure(t *testing.T) {
	base := DefaultConfig()
	base.NumRacks = 2
	base.MsgRate = 10000
	base.Duration = 2
	base.OutLimit = 32 * 2000 // two messages per tick

	run := func(policy GCPolicy) int64 {
		config := base
		config.GCPolicy = policy
		sim := newQuietSim(t, config, NewSequenceKeySource([]int64{1, 2, 3, 4, 5}))
		sim.Run()
		checkConservation(t, sim)
		return sim.Metrics().RootEffBytes
	}

	effNone := run(GCPolicyNone)
	effGC := run(GCPolicyUniform)
	t.Logf("root effective bytes: none=%d uniform=%d", effNone, effGC)
	require.Greater(t, effGC, effNone)
}

// Two runs over the identical key stream and configuration are
// indistinguishable, including their per-hub report snapshots.
func TestDeterministicSingleThread(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 4
	config.MsgRate = 2000
	config.Duration = 2
	config.GCPolicy = GCPolicyIncreasing
	config.KeyDist = KeyDistGeometric
	config.RandomSeed = 1234

	simA := newQuietSim(t, config, nil)
	simA.Run()
	simB := newQuietSim(t, config, nil)
	simB.Run()

	require.Equal(t, simA.Metrics(), simB.Metrics())
}

// Worker-thread chunking must not change per-node phase-1..3 results:
// chunks are disjoint, so only the key draw order may differ. With a
// constant key stream the runs are identical.
func TestThreadedRunMatchesSerial(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 8
	config.NodesPerRack = 2
	config.MsgRate = 1000
	config.Duration = 1
	config.GCPolicy = GCPolicyUniform

	serial := newQuietSim(t, config, NewSequenceKeySource([]int64{7}))
	serial.Run()

	config.NumThreads = 4
	threaded := newQuietSim(t, config, NewSequenceKeySource([]int64{7}))
	threaded.Run()

	require.Equal(t, serial.Metrics(), threaded.Metrics())
}

func TestReportSnapshotsHubs(t *testing.T) {
	config := DefaultConfig()
	config.NumRacks = 2
	config.NodesPerRack = 3
	config.MsgRate = 1000
	config.Duration = 1
	sim := newQuietSim(t, config, nil)

	sim.Run()

	m := sim.Metrics()
	require.Len(t, m.Hubs, 2, "one snapshot per rack hub")
	for _, h := range m.Hubs {
		require.Zero(t, h.NodeID%config.NodesPerRack)
		require.Greater(t, h.InMB, 0.0)
	}
}

func TestMetricsClone(t *testing.T) {
	config := DefaultConfig()
	config.MsgRate = 1000
	config.Duration = 1
	sim := newQuietSim(t, config, nil)
	sim.Run()

	m := sim.Metrics()
	c := m.Clone()
	require.Equal(t, m, c)
	if len(c.Hubs) > 0 {
		c.Hubs[0].InMB = -1
		require.NotEqual(t, m.Hubs[0].InMB, c.Hubs[0].InMB)
	}
}
