// Package metrics exposes the counters, gauges, and histograms spec.md §2
// calls for via github.com/prometheus/client_golang, plus a small health
// registry independent of the HTTP admin surface spec.md treats as an
// out-of-scope external collaborator — callers wire Registry.Gather into
// whatever transport they stand up.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the metrics this store emits during ingestion,
// retrieval, and background maintenance.
type Registry struct {
	reg *prometheus.Registry

	IngestedChunks   prometheus.Counter
	IngestedNeurons  prometheus.Counter
	SearchRequests   prometheus.Counter
	SearchLatency    prometheus.Histogram
	HNSWSize         prometheus.Gauge
	HNSWTombstones   prometheus.Gauge
	JournalSequence  prometheus.Gauge
	SyncConflicts    prometheus.Counter
	CompactionRuns   prometheus.Counter
	CompactionErrors prometheus.Counter
}

// New registers and returns a fresh metric set on its own registry (not
// the global default), so multiple stores in one process don't collide.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		IngestedChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memstore_ingested_chunks_total",
			Help: "Chunks written during ingestion.",
		}),
		IngestedNeurons: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memstore_ingested_neurons_total",
			Help: "Neurons created during ingestion.",
		}),
		SearchRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memstore_search_requests_total",
			Help: "Hybrid retrieval requests served.",
		}),
		SearchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memstore_search_latency_seconds",
			Help:    "End-to-end hybrid retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}),
		HNSWSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memstore_hnsw_live_nodes",
			Help: "Live (non-tombstoned) HNSW nodes.",
		}),
		HNSWTombstones: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memstore_hnsw_tombstones",
			Help: "Tombstoned HNSW nodes awaiting compaction.",
		}),
		JournalSequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memstore_journal_sequence",
			Help: "Last assigned change-journal sequence number.",
		}),
		SyncConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memstore_sync_conflicts_total",
			Help: "Concurrent-clock conflicts resolved by the sync kernel.",
		}),
		CompactionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memstore_compaction_runs_total",
			Help: "Scheduled compaction passes executed.",
		}),
		CompactionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memstore_compaction_errors_total",
			Help: "Scheduled compaction passes that returned an error.",
		}),
	}

	reg.MustRegister(
		r.IngestedChunks, r.IngestedNeurons, r.SearchRequests, r.SearchLatency,
		r.HNSWSize, r.HNSWTombstones, r.JournalSequence, r.SyncConflicts,
		r.CompactionRuns, r.CompactionErrors,
	)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for an HTTP /metrics
// handler (the admin server itself is out of scope; this is the seam it
// would attach to).
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Status is one named health check's outcome.
type Status struct {
	Healthy bool
	Detail  string
}

// CheckFunc reports the current health of one component.
type CheckFunc func() Status

// Health aggregates named component health checks.
type Health struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewHealth returns an empty health registry.
func NewHealth() *Health {
	return &Health{checks: make(map[string]CheckFunc)}
}

// Register adds or replaces the check for name.
func (h *Health) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs every registered check and returns the per-name results plus
// whether every component reported healthy.
func (h *Health) Check() (map[string]Status, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]Status, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		s := check()
		out[name] = s
		if !s.Healthy {
			healthy = false
		}
	}
	return out, healthy
}
