package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "segd",
			Subsystem: "inference",
			Name:      "duration_seconds",
			Help:      "Duration of model work by stage (encode, decode, generate)",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"model", "stage"},
	)

	inferenceInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "segd",
			Subsystem: "inference",
			Name:      "inflight",
			Help:      "Requests holding a model's inference slot",
		},
		[]string{"model"},
	)

	modelLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "manager",
			Name:      "model_loads_total",
			Help:      "Model load attempts by result",
		},
		[]string{"model", "result"},
	)

	admissionRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "manager",
			Name:      "admission_rejected_total",
			Help:      "Requests rejected by admission control",
		},
		[]string{"reason"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Embedding cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	cacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Embeddings evicted from the cache",
		},
	)

	masksGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "segd",
			Subsystem: "inference",
			Name:      "masks_generated_total",
			Help:      "Masks returned to clients",
		},
		[]string{"model", "op"},
	)
)

func init() {
	prometheus.MustRegister(
		inferenceDuration,
		inferenceInflight,
		modelLoadsTotal,
		admissionRejectedTotal,
		cacheLookupsTotal,
		cacheEvictionsTotal,
		masksGeneratedTotal,
	)
}
