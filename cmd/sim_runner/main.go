package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aquario/treesim/simulator"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON or YAML configuration file (flags override it)")
	outputFile := flag.String("output", "", "Path to output JSON file (prints to stdout if not specified)")
	quiet := flag.Bool("quiet", false, "Suppress per-second report lines")

	nracks := flag.Int("nracks", 1, "Number of racks")
	nodesPerRack := flag.Int("nodes_per_rack", 1, "Nodes per rack (rack hub is index 0)")
	fanout := flag.Int("fanout", 2, "Rack-tree fanout")
	multitree := flag.Bool("multitree", false, "Build max(2, fanout-1) trees")
	msgRate := flag.Int64("msg_rate", 4000, "Self-generated messages per node per second")
	msgSize := flag.Int64("msg_size", 32, "Message size in bytes")
	gcPolicy := flag.Int("gc_policy", 0, "GC policy: 0 none, 1 uniform, 2 decreasing-down, 3 increasing-down")
	gcPeriod := flag.Int64("gc_period", 10, "GC runs every gc_period ticks")
	gcAccDelay := flag.Int64("gc_acc_delay", 100, "Accumulated delay budget, root to leaf, in ticks")
	inLimit := flag.Int64("in_limit", 125_000_000, "Inbound bandwidth limit per second, bytes")
	outLimit := flag.Int64("out_limit", 125_000_000, "Outbound bandwidth limit per second, bytes")
	rootInLimit := flag.Int64("in_limit_root", 0, "Root inbound limit per second, bytes (0 = in_limit)")
	rootOutLimit := flag.Int64("out_limit_root", 0, "Root outbound limit per second, bytes (0 = out_limit)")
	duration := flag.Int64("duration", 60, "Simulated seconds")
	ticks := flag.Int64("ticks", 1000, "Ticks per simulated second")
	nthreads := flag.Int("nthreads", 1, "Worker threads")
	keyDir := flag.String("key_dir", "", "Directory holding data-0, data-1, ... key files (empty = synthetic keys)")
	keySpace := flag.Int64("key_space", 1<<20, "Synthetic source: number of distinct keys")
	keyDist := flag.String("key_dist", "uniform", "Synthetic source: key distribution (uniform or geometric)")
	seed := flag.Int64("seed", 1, "Synthetic source seed")
	flag.Parse()

	config := simulator.DefaultConfig()
	if *configFile != "" {
		if err := loadConfig(*configFile, &config); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}

	// Flags set on the command line override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nracks":
			config.NumRacks = *nracks
		case "nodes_per_rack":
			config.NodesPerRack = *nodesPerRack
		case "fanout":
			config.Fanout = *fanout
		case "multitree":
			config.MultiTree = *multitree
		case "msg_rate":
			config.MsgRate = *msgRate
		case "msg_size":
			config.MsgSize = *msgSize
		case "gc_policy":
			config.GCPolicy = simulator.GCPolicy(*gcPolicy)
		case "gc_period":
			config.GCPeriod = *gcPeriod
		case "gc_acc_delay":
			config.GCAccDelay = *gcAccDelay
		case "in_limit":
			config.InLimit = *inLimit
		case "out_limit":
			config.OutLimit = *outLimit
		case "in_limit_root":
			config.RootInLimit = *rootInLimit
		case "out_limit_root":
			config.RootOutLimit = *rootOutLimit
		case "duration":
			config.Duration = *duration
		case "ticks":
			config.Ticks = *ticks
		case "nthreads":
			config.NumThreads = *nthreads
		case "key_dir":
			config.KeyDir = *keyDir
		case "key_space":
			config.KeySpace = *keySpace
		case "key_dist":
			d, err := simulator.ParseKeyDistribution(*keyDist)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				os.Exit(1)
			}
			config.KeyDist = d
		case "seed":
			config.RandomSeed = *seed
		}
	})

	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	sim, err := simulator.NewSimulator(config, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating simulator: %v\n", err)
		os.Exit(1)
	}
	if *quiet {
		sim.LogEvent = func(string) {}
	}

	runID := uuid.NewString()
	fmt.Fprintf(os.Stderr, "Starting run %s: %d racks x %d nodes, %d tree(s), %d simulated seconds\n",
		runID, config.NumRacks, config.NodesPerRack, sim.NumTrees(), config.Duration)
	startTime := time.Now()
	sim.Run()
	elapsed := time.Since(startTime)
	fmt.Fprintf(os.Stderr, "Simulation completed in %v (%d ticks)\n", elapsed, sim.Tick())

	results := map[string]interface{}{
		"runId":    runID,
		"config":   config,
		"ticks":    sim.Tick(),
		"realTime": elapsed.Seconds(),
		"metrics":  sim.Metrics(),
	}

	output, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling results: %v\n", err)
		os.Exit(1)
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, output, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Results written to %s\n", *outputFile)
	} else {
		fmt.Println(string(output))
	}
}

// loadConfig reads a JSON or YAML config file into config, keyed on the
// file extension
func loadConfig(path string, config *simulator.SimConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return json.Unmarshal(data, config)
	}
}
