package simulator

// HubStats is one hub's per-second snapshot, as reported at the end of
// each simulated second
type HubStats struct {
	NodeID     int     `json:"nodeId"`
	Levels     []int   `json:"levels"`     // Depth per tree
	InMB       float64 `json:"inMB"`       // Subtree + self inbound, MB
	OutMB      float64 `json:"outMB"`      // Physical outbound, MB
	EffOutMB   float64 `json:"effOutMB"`   // Effective outbound (duplicates counted), MB
	SavedMB    float64 `json:"savedMB"`    // Bytes compacted away this second, MB
	InUtilPct  float64 `json:"inUtilPct"`  // Inbound bandwidth utilization, percent
	OutUtilPct float64 `json:"outUtilPct"` // Outbound bandwidth utilization, percent
	BufMsgs    int64   `json:"bufMsgs"`    // Messages (incl. tombstones) held across trees
}

// Metrics aggregates simulation-wide totals. All message counts are in
// original-message units: a physical message with EffSize 3 counts as 3
// where "effective" is reported.
type Metrics struct {
	Tick    int64 `json:"tick"`    // Ticks simulated so far
	Seconds int64 `json:"seconds"` // Whole simulated seconds completed

	TotalSelfMsgs  int64 `json:"totalSelfMsgs"`  // Messages generated by all nodes
	TotalSavedMsgs int64 `json:"totalSavedMsgs"` // Duplicates compacted away at hubs
	TotalInMsgs    int64 `json:"totalInMsgs"`    // Admissions summed over all nodes
	TotalOutMsgs   int64 `json:"totalOutMsgs"`   // Emissions summed over all nodes

	RootMsgs    int64 `json:"rootMsgs"`    // Physical messages emitted from tree roots
	RootEffMsgs int64 `json:"rootEffMsgs"` // Effective messages emitted from tree roots

	RootBytes    int64 `json:"rootBytes"`    // Physical bytes leaving the system
	RootEffBytes int64 `json:"rootEffBytes"` // Effective bytes leaving the system
	SavedBytes   int64 `json:"savedBytes"`   // Bytes never sent thanks to compaction

	ResidualMsgs     int64 `json:"residualMsgs"`     // Effective messages still in flight (buffers + queues)
	ResidualPhysMsgs int64 `json:"residualPhysMsgs"` // Physical data messages still in flight

	Hubs []HubStats `json:"hubs,omitempty"` // Last reported per-hub second
}

// Clone returns a deep copy of the metrics
func (m *Metrics) Clone() *Metrics {
	c := *m
	c.Hubs = make([]HubStats, len(m.Hubs))
	copy(c.Hubs, m.Hubs)
	for i := range m.Hubs {
		c.Hubs[i].Levels = append([]int(nil), m.Hubs[i].Levels...)
	}
	return &c
}
