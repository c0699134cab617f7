package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refmill_jobs_completed_total",
		Help: "Jobs that finished successfully.",
	})
	jobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refmill_jobs_failed_total",
		Help: "Jobs that failed permanently.",
	})
	jobsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refmill_jobs_retried_total",
		Help: "Job attempts released back to the queue after a transient failure.",
	})
	documentsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refmill_documents_stored_total",
		Help: "Documents written to the catalog.",
	})
	enrichmentHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refmill_enrichment_hits_total",
		Help: "Records that received at least one field from CrossRef.",
	})
	enrichmentMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refmill_enrichment_misses_total",
		Help: "Enrichment lookups that found no matching work.",
	})
	heuristicFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refmill_heuristic_fallbacks_total",
		Help: "Extractions where the pattern parser beat the structured result.",
	})
)
