package simulator

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// GCPolicy selects how forwarding delay is spread across tree levels so
// that duplicate keys accumulate at hubs long enough to be compacted
type GCPolicy int

const (
	GCPolicyNone       GCPolicy = iota // No GC anywhere; pure forwarding
	GCPolicyUniform                    // Every hub delays by acc_delay / levels
	GCPolicyDecreasing                 // More delay near the root, less near the leaves
	GCPolicyIncreasing                 // More delay near the leaves, less near the root
)

// String returns the string representation of GCPolicy
func (p GCPolicy) String() string {
	switch p {
	case GCPolicyNone:
		return "none"
	case GCPolicyUniform:
		return "uniform"
	case GCPolicyDecreasing:
		return "decreasing"
	case GCPolicyIncreasing:
		return "increasing"
	default:
		return "unknown"
	}
}

// ParseGCPolicy parses a string into GCPolicy
func ParseGCPolicy(s string) (GCPolicy, error) {
	switch s {
	case "none":
		return GCPolicyNone, nil
	case "uniform":
		return GCPolicyUniform, nil
	case "decreasing":
		return GCPolicyDecreasing, nil
	case "increasing":
		return GCPolicyIncreasing, nil
	default:
		return GCPolicyNone, fmt.Errorf("invalid gc policy: %s (must be 'none', 'uniform', 'decreasing' or 'increasing')", s)
	}
}

// MarshalJSON implements json.Marshaler for GCPolicy
func (p GCPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler for GCPolicy
func (p *GCPolicy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseGCPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for GCPolicy
func (p GCPolicy) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for GCPolicy
func (p *GCPolicy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseGCPolicy(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// KeyDistribution shapes the synthetic key stream. A skewed
// distribution produces hot keys and therefore more duplicates for GC
// to compact.
type KeyDistribution int

const (
	KeyDistUniform   KeyDistribution = iota // Keys drawn uniformly from the key space
	KeyDistGeometric                        // Keys skewed toward the low end of the key space
)

// String returns the string representation of KeyDistribution
func (d KeyDistribution) String() string {
	switch d {
	case KeyDistUniform:
		return "uniform"
	case KeyDistGeometric:
		return "geometric"
	default:
		return "unknown"
	}
}

// ParseKeyDistribution parses a string into KeyDistribution
func ParseKeyDistribution(s string) (KeyDistribution, error) {
	switch s {
	case "uniform":
		return KeyDistUniform, nil
	case "geometric":
		return KeyDistGeometric, nil
	default:
		return KeyDistUniform, fmt.Errorf("invalid key distribution: %s (must be 'uniform' or 'geometric')", s)
	}
}

// MarshalJSON implements json.Marshaler for KeyDistribution
func (d KeyDistribution) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler for KeyDistribution
func (d *KeyDistribution) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKeyDistribution(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for KeyDistribution
func (d KeyDistribution) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for KeyDistribution
func (d *KeyDistribution) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseKeyDistribution(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SimConfig holds all simulation parameters
type SimConfig struct {
	// Topology
	NumRacks     int  `json:"numRacks" yaml:"numRacks"`         // Number of racks
	NodesPerRack int  `json:"nodesPerRack" yaml:"nodesPerRack"` // Nodes per rack; index 0 within a rack is the hub
	Fanout       int  `json:"fanout" yaml:"fanout"`             // Rack-tree fanout
	MultiTree    bool `json:"multiTree" yaml:"multiTree"`       // Build max(2, fanout-1) trees instead of one

	// Traffic
	MsgRate int64 `json:"msgRate" yaml:"msgRate"` // Self-generated messages per node per second
	MsgSize int64 `json:"msgSize" yaml:"msgSize"` // Wire size of one message, bytes

	// GC
	GCPolicy   GCPolicy `json:"gcPolicy" yaml:"gcPolicy"`     // Delay-spreading policy
	GCPeriod   int64    `json:"gcPeriod" yaml:"gcPeriod"`     // Compaction runs every GCPeriod ticks
	GCAccDelay int64    `json:"gcAccDelay" yaml:"gcAccDelay"` // Accumulated leaf-to-root delay budget, ticks

	// Bandwidth, bytes per second. Per-tick ceilings are limit / Ticks.
	InLimit      int64 `json:"inLimit" yaml:"inLimit"`
	OutLimit     int64 `json:"outLimit" yaml:"outLimit"`
	RootInLimit  int64 `json:"rootInLimit" yaml:"rootInLimit"`   // 0 = same as InLimit
	RootOutLimit int64 `json:"rootOutLimit" yaml:"rootOutLimit"` // 0 = same as OutLimit

	// Clock
	Duration   int64 `json:"duration" yaml:"duration"`     // Simulated seconds
	Ticks      int64 `json:"ticks" yaml:"ticks"`           // Ticks per simulated second
	NumThreads int   `json:"numThreads" yaml:"numThreads"` // Worker threads for the parallel phases

	// Key stream. KeyDir selects the file-backed source ("data-0",
	// "data-1", ... under that directory); empty means synthetic.
	KeyDir     string          `json:"keyDir" yaml:"keyDir"`
	KeySpace   int64           `json:"keySpace" yaml:"keySpace"`     // Synthetic source: number of distinct keys
	KeyDist    KeyDistribution `json:"keyDist" yaml:"keyDist"`       // Synthetic source: key distribution
	GeometricP float64         `json:"geometricP" yaml:"geometricP"` // Geometric distribution parameter
	RandomSeed int64           `json:"randomSeed" yaml:"randomSeed"` // Synthetic source seed
}

// DefaultConfig returns the defaults used by the reference experiments
func DefaultConfig() SimConfig {
	return SimConfig{
		NumRacks:     1,
		NodesPerRack: 1,
		Fanout:       2,
		MultiTree:    false,
		MsgRate:      4000,
		MsgSize:      32,
		GCPolicy:     GCPolicyNone,
		GCPeriod:     10,
		GCAccDelay:   100,
		InLimit:      125_000_000, // 1 Gbps
		OutLimit:     125_000_000,
		Duration:     60,
		Ticks:        1000,
		NumThreads:   1,
		KeySpace:     1 << 20,
		KeyDist:      KeyDistUniform,
		GeometricP:   0.3,
		RandomSeed:   1,
	}
}

// NumTrees returns the number of spanning trees this configuration builds
func (c *SimConfig) NumTrees() int {
	if !c.MultiTree {
		return 1
	}
	if c.Fanout-1 > 2 {
		return c.Fanout - 1
	}
	return 2
}

// Validate checks if configuration values are reasonable
func (c *SimConfig) Validate() error {
	if c.NumRacks <= 0 {
		return ErrInvalidConfig("numRacks must be > 0")
	}
	if c.NodesPerRack <= 0 {
		return ErrInvalidConfig("nodesPerRack must be > 0")
	}
	if c.Fanout < 2 {
		return ErrInvalidConfig("fanout must be >= 2")
	}
	if c.MsgRate < 0 {
		return ErrInvalidConfig("msgRate must be >= 0")
	}
	if c.MsgSize <= 0 {
		return ErrInvalidConfig("msgSize must be > 0")
	}
	if c.GCPolicy < GCPolicyNone || c.GCPolicy > GCPolicyIncreasing {
		return ErrInvalidConfig("gcPolicy out of range")
	}
	if c.GCPeriod <= 0 {
		return ErrInvalidConfig("gcPeriod must be > 0")
	}
	if c.GCAccDelay < 0 {
		return ErrInvalidConfig("gcAccDelay must be >= 0")
	}
	if c.InLimit <= 0 || c.OutLimit <= 0 {
		return ErrInvalidConfig("bandwidth limits must be > 0")
	}
	if c.RootInLimit < 0 || c.RootOutLimit < 0 {
		return ErrInvalidConfig("root bandwidth limits must be >= 0")
	}
	if c.Duration < 0 {
		return ErrInvalidConfig("duration must be >= 0")
	}
	if c.Ticks <= 0 {
		return ErrInvalidConfig("ticks must be > 0")
	}
	if c.NumThreads < 1 {
		return ErrInvalidConfig("numThreads must be >= 1")
	}
	if c.KeyDir == "" {
		if c.KeySpace <= 0 {
			return ErrInvalidConfig("keySpace must be > 0 for the synthetic key source")
		}
		if c.KeyDist == KeyDistGeometric && (c.GeometricP <= 0 || c.GeometricP >= 1) {
			return ErrInvalidConfig("geometricP must be in (0, 1)")
		}
	}
	return nil
}
