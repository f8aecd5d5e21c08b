// Package metrics declares the driver's Prometheus instrumentation,
// following the teacher pack's promauto-per-concern layout.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctm",
		Subsystem: "driver",
		Name:      "batches_dispatched_total",
		Help:      "Total machine-code batches dispatched to workers",
	}, []string{"n_states", "mode"})

	BatchesMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctm",
		Subsystem: "driver",
		Name:      "batches_merged_total",
		Help:      "Total batch results merged into the run aggregator",
	}, []string{"n_states", "mode"})

	MachinesHalted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctm",
		Subsystem: "driver",
		Name:      "machines_halted_total",
		Help:      "Total simulated machines that halted",
	}, []string{"n_states"})

	MachinesNonHalting = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctm",
		Subsystem: "driver",
		Name:      "machines_nonhalting_total",
		Help:      "Total simulated machines judged non-halting, by reason",
	}, []string{"n_states", "reason"})

	WorkerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctm",
		Subsystem: "driver",
		Name:      "worker_errors_total",
		Help:      "Total worker failures, by retry classification",
	}, []string{"class"})

	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ctm",
		Subsystem: "driver",
		Name:      "batch_duration_seconds",
		Help:      "Wall-clock time to simulate one dispatched batch",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
	}, []string{"n_states"})

	CheckpointSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ctm",
		Subsystem: "checkpoint",
		Name:      "saves_total",
		Help:      "Total checkpoint persistence attempts, by outcome",
	}, []string{"outcome"})

	CheckpointWatermark = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ctm",
		Subsystem: "checkpoint",
		Name:      "watermark",
		Help:      "Contiguous prefix of batches completed so far, in batches",
	}, []string{"n_states"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ctm",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current number of dispatched batches not yet taken by a worker",
	}, []string{"backend"})
)
