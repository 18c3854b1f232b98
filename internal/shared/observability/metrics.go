package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reachgraph_parsing_seconds",
		Help:    "Time spent parsing a Python source file.",
		Buckets: prometheus.DefBuckets,
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reachgraph_stage_seconds",
		Help:    "Time spent in each analysis stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	PassRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reachgraph_pass_runs_total",
		Help: "Total number of analysis pass invocations per stage.",
	}, []string{"stage"})

	FixedPointIterations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reachgraph_fixed_point_iterations",
		Help: "Number of fixed-point iterations performed by the last run.",
	})

	ImportSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reachgraph_import_skips_total",
		Help: "Total number of imports that could not be resolved to an internal module.",
	})

	ImportGraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reachgraph_import_graph_nodes_total",
		Help: "Total number of nodes in the import graph of the last run.",
	})

	CallGraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reachgraph_call_graph_nodes_total",
		Help: "Total number of nodes in the call graph of the last run.",
	})

	CallGraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reachgraph_call_graph_edges_total",
		Help: "Total number of deduplicated edges in the call graph of the last run.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reachgraph_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
