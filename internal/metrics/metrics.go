// Package metrics holds the Prometheus collectors shared by the core
// packages. There is no HTTP listener; collectors are exported to a
// node-exporter textfile on shutdown when configured.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promai",
			Subsystem: "model",
			Name:      "loads_total",
			Help:      "Total number of model loads by result",
		},
		[]string{"result"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "promai",
			Subsystem: "model",
			Name:      "load_duration_seconds",
			Help:      "Duration of successful model loads in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promai",
			Subsystem: "generation",
			Name:      "total",
			Help:      "Total number of generations by terminal state",
		},
		[]string{"outcome"},
	)

	chunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "promai",
			Subsystem: "generation",
			Name:      "chunks_total",
			Help:      "Total text chunks delivered to consumers",
		},
	)

	busyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "promai",
			Subsystem: "generation",
			Name:      "busy_rejections_total",
			Help:      "Generation requests rejected because the session was busy",
		},
	)

	repairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "promai",
			Subsystem: "store",
			Name:      "repairs_total",
			Help:      "Conversation records repaired on load by kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, generationsTotal, chunksTotal, busyTotal, repairsTotal)
}

// ObserveLoad records a load attempt. result is "ok" or a failure kind.
func ObserveLoad(result string, d time.Duration) {
	if result == "" {
		result = "unspecified"
	}
	loadsTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		loadDuration.Observe(d.Seconds())
	}
}

// ObserveGeneration records a stream reaching a terminal state.
func ObserveGeneration(outcome string) {
	generationsTotal.WithLabelValues(outcome).Inc()
}

// IncChunks counts one delivered chunk.
func IncChunks() { chunksTotal.Inc() }

// IncBusy counts one busy rejection.
func IncBusy() { busyTotal.Inc() }

// IncRepair counts one store repair of the given kind.
func IncRepair(kind string) {
	repairsTotal.WithLabelValues(kind).Inc()
}

// WriteTextfile writes every registered collector to path in the text
// exposition format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
