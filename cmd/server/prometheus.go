package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aquario/treesim/simulator"
)

var (
	// Prometheus metrics (gauges)
	promMetrics = struct {
		simSeconds    prometheus.Gauge
		rootOutMB     prometheus.Gauge
		rootEffOutMB  prometheus.Gauge
		savedMB       prometheus.Gauge
		residualMsgs  prometheus.Gauge
		bufferedMsgs  prometheus.Gauge
		rootInUtilPct prometheus.Gauge
	}{
		simSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesim_seconds",
			Help: "Simulated seconds completed",
		}),
		rootOutMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesim_root_out_mb",
			Help: "Physical MB emitted from the tree roots",
		}),
		rootEffOutMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesim_root_eff_out_mb",
			Help: "Effective MB emitted from the tree roots",
		}),
		savedMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesim_saved_mb",
			Help: "MB never transmitted thanks to in-buffer compaction",
		}),
		residualMsgs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesim_residual_msgs",
			Help: "Effective messages still in flight",
		}),
		bufferedMsgs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesim_buffered_msgs",
			Help: "Messages (including tombstones) held across all hub buffers",
		}),
		rootInUtilPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "treesim_root_in_util_pct",
			Help: "Root hub inbound bandwidth utilization percent",
		}),
	}
)

func initPrometheusMetrics() {
	prometheus.MustRegister(
		promMetrics.simSeconds,
		promMetrics.rootOutMB,
		promMetrics.rootEffOutMB,
		promMetrics.savedMB,
		promMetrics.residualMsgs,
		promMetrics.bufferedMsgs,
		promMetrics.rootInUtilPct,
	)
}

func updatePrometheusMetrics(m *simulator.Metrics) {
	promMetrics.simSeconds.Set(float64(m.Seconds))
	promMetrics.rootOutMB.Set(float64(m.RootBytes) / 1e6)
	promMetrics.rootEffOutMB.Set(float64(m.RootEffBytes) / 1e6)
	promMetrics.savedMB.Set(float64(m.SavedBytes) / 1e6)
	promMetrics.residualMsgs.Set(float64(m.ResidualMsgs))

	var buffered int64
	for _, h := range m.Hubs {
		buffered += h.BufMsgs
		if h.NodeID == 0 {
			promMetrics.rootInUtilPct.Set(h.InUtilPct)
		}
	}
	promMetrics.bufferedMsgs.Set(float64(buffered))
}
