// Package integration runs matrices of simulations over the same key
// stream and aggregates the results, for comparing GC policies and
// delay budgets side by side.
package integration

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/aquario/treesim/simulator"
)

// RunResult captures one simulation run of a sweep
type RunResult struct {
	Policy     simulator.GCPolicy `json:"policy"`
	GCAccDelay int64              `json:"gcAccDelay"`
	RootMB     float64            `json:"rootMB"`     // Physical MB leaving the root
	RootEffMB  float64            `json:"rootEffMB"`  // Effective MB leaving the root
	SavedMB    float64            `json:"savedMB"`    // MB compacted away
	SavingsPct float64            `json:"savingsPct"` // Saved / generated, percent
}

// SweepResult is the aggregate outcome of a policy sweep
type SweepResult struct {
	Runs []RunResult `json:"runs"`

	// Savings distribution across the GC-enabled runs
	MeanSavingsPct   float64 `json:"meanSavingsPct"`
	StdDevSavingsPct float64 `json:"stdDevSavingsPct"`
}

// RunSweep executes one simulation per (policy, delay) pair. Every run
// replays the identical key stream (same seed, fresh source), so the
// runs differ only in GC behavior.
func RunSweep(base simulator.SimConfig, policies []simulator.GCPolicy, delays []int64) (*SweepResult, error) {
	result := &SweepResult{}
	var savings []float64
	for _, policy := range policies {
		for _, delay := range delays {
			config := base
			config.GCPolicy = policy
			config.GCAccDelay = delay
			run, err := runOne(config)
			if err != nil {
				return nil, fmt.Errorf("sweep %s/%d: %w", policy, delay, err)
			}
			result.Runs = append(result.Runs, run)
			if policy != simulator.GCPolicyNone {
				savings = append(savings, run.SavingsPct)
			}
		}
	}
	if len(savings) > 0 {
		result.MeanSavingsPct = stat.Mean(savings, nil)
	}
	if len(savings) > 1 {
		result.StdDevSavingsPct = stat.StdDev(savings, nil)
	}
	return result, nil
}

func runOne(config simulator.SimConfig) (RunResult, error) {
	keys := simulator.NewRandomKeySource(config.RandomSeed, config.KeySpace, config.KeyDist, config.GeometricP)
	sim, err := simulator.NewSimulator(config, keys)
	if err != nil {
		return RunResult{}, err
	}
	sim.LogEvent = func(string) {}
	sim.Run()

	m := sim.Metrics()
	generatedMB := float64(m.TotalSelfMsgs*config.MsgSize) / 1e6
	run := RunResult{
		Policy:     config.GCPolicy,
		GCAccDelay: config.GCAccDelay,
		RootMB:     float64(m.RootBytes) / 1e6,
		RootEffMB:  float64(m.RootEffBytes) / 1e6,
		SavedMB:    float64(m.SavedBytes) / 1e6,
	}
	if generatedMB > 0 {
		run.SavingsPct = 100 * run.SavedMB / generatedMB
	}
	return run, nil
}
