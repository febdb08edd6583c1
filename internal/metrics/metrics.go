package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest outcomes use the service error kinds plus "completed" and "reused".
var (
	IngestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storagebridge_ingestions_total",
		Help: "Ingestion requests by outcome",
	}, []string{"outcome"})

	IngestionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storagebridge_ingestion_duration_seconds",
		Help:    "End-to-end ingestion latency including the settlement wait",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	RetrievalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storagebridge_retrievals_total",
		Help: "Retrieval requests by outcome",
	}, []string{"outcome"})

	SettlementPollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storagebridge_settlement_polls_total",
		Help: "Settlement status polls issued by transfer watchers",
	})

	ReconcilerSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storagebridge_reconciler_sweeps_total",
		Help: "Reconciler sweep cycles",
	})

	ReconciledFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storagebridge_reconciled_failures_total",
		Help: "Pending records marked failed by the reconciler",
	})
)
