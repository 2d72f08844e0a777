// Package nmt is the top-level orchestrator spec.md §6 describes: it wires
// the KV backend, typed stores, HNSW index, neuron graph manager, attractor
// planner, ingestion pipeline, change journal, sync kernel, compaction
// scheduler, and metrics registry into one Store and exposes the public
// operation surface (ingestText, search, verify*, connect, attractors,
// sync.*) as plain Go methods.
package nmt

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nmtsys/memstore/pkg/attractor"
	"github.com/nmtsys/memstore/pkg/config"
	"github.com/nmtsys/memstore/pkg/embed"
	"github.com/nmtsys/memstore/pkg/errs"
	"github.com/nmtsys/memstore/pkg/graph"
	"github.com/nmtsys/memstore/pkg/hnsw"
	"github.com/nmtsys/memstore/pkg/ids"
	"github.com/nmtsys/memstore/pkg/ingest"
	"github.com/nmtsys/memstore/pkg/journal"
	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/metrics"
	"github.com/nmtsys/memstore/pkg/scheduler"
	"github.com/nmtsys/memstore/pkg/store"
	"github.com/nmtsys/memstore/pkg/syncstate"
	"go.uber.org/zap"
)

// Store is the assembled, running system. Build one with Open.
type Store struct {
	Config *config.Config
	Log    *zap.Logger

	kv kv.Store

	Chunks     *store.ChunkStore
	Neurons    *store.NeuronStore
	Synapses   *store.SynapseStore
	Attractors *store.AttractorStore
	Indexes    *store.IndexStore

	Index     *hnsw.Index
	Embedder  embed.Embedder
	Graph     *graph.Manager
	Planner   *attractor.Planner
	Ingest    *ingest.Pipeline
	Jobs      *ingest.JobManager
	Journal   *journal.Journal
	Sync      *syncstate.Kernel
	Metrics   *metrics.Registry
	Health    *metrics.Health
	Compactor *scheduler.CompactionScheduler
	queue     *scheduler.SerialTaskQueue

	nodeID  string
	peersMu sync.RWMutex
	peers   map[string]syncstate.RemoteState
}

// Open builds and wires a Store from cfg. It opens (or creates) the data
// directory, loads any saved HNSW snapshot, and starts the background
// compaction scheduler. Call Close to flush and shut down cleanly.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("nmt: invalid config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	cfg.Runtime.ApplyRuntime()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("nmt: creating data dir: %w", err)
	}

	backing, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	s := &Store{
		Config:     cfg,
		Log:        log,
		kv:         backing,
		Chunks:     store.NewChunkStore(backing),
		Neurons:    store.NewNeuronStore(backing),
		Synapses:   store.NewSynapseStore(backing),
		Attractors: store.NewAttractorStore(backing),
		Indexes:    store.NewIndexStore(backing),
		Metrics:    metrics.New(),
		Health:     metrics.NewHealth(),
		nodeID:     nodeID(cfg),
		peers:      make(map[string]syncstate.RemoteState),
	}

	s.Embedder = buildEmbedder(cfg)

	idx, err := loadOrCreateIndex(ctx, s.Indexes, cfg)
	if err != nil {
		return nil, err
	}
	s.Index = idx

	s.queue = scheduler.NewSerialTaskQueue(log)
	s.Graph = graph.New(s.Neurons, s.Synapses, s.Index, s.Embedder, s.queue)
	s.Planner = attractor.New(s.Neurons, s.Synapses, s.Attractors)
	s.Planner.InfluenceRadius = cfg.Planner.InfluenceRadius
	s.Ingest = ingest.New(s.Chunks, s.Graph, s.Embedder)
	s.Jobs = ingest.NewJobManager(s.Ingest)

	j, err := journal.Open(ctx, backing, s.nodeID, log)
	if err != nil {
		return nil, fmt.Errorf("nmt: opening journal: %w", err)
	}
	s.Journal = j
	s.Sync = syncstate.New(s.nodeID, j, syncstate.VectorClockWins{})

	s.registerHealthChecks()
	s.startCompaction(ctx)

	return s, nil
}

func nodeID(cfg *config.Config) string {
	if id := os.Getenv("NMT_NODE_ID"); id != "" {
		return id
	}
	return ids.New()
}

func openBackend(cfg *config.Config) (kv.Store, error) {
	if cfg.Storage.Backend == "memory" {
		return kv.NewMemoryStore(), nil
	}
	return kv.OpenBadger(kv.BadgerOptions{DataDir: filepath.Join(cfg.Storage.DataDir, "badger")})
}

func buildEmbedder(cfg *config.Config) embed.Embedder {
	hashed := embed.NewHashed(cfg.Embedding.Dimensions)
	var base embed.Embedder = hashed
	if cfg.Embedding.Provider == "http" && cfg.Embedding.APIURL != "" {
		httpEmbedder := embed.NewHTTP(embed.Config{
			APIURL:     cfg.Embedding.APIURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		base = embed.NewFallback(httpEmbedder, hashed)
	}
	if cfg.Embedding.CacheSize > 0 {
		return embed.NewCached(base, cfg.Embedding.CacheSize)
	}
	return base
}

func loadOrCreateIndex(ctx context.Context, indexes *store.IndexStore, cfg *config.Config) (*hnsw.Index, error) {
	names, err := indexes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("nmt: listing hnsw snapshots: %w", err)
	}
	hcfg := hnsw.DefaultConfig()
	hcfg.M = cfg.Index.M
	hcfg.EfConstruction = cfg.Index.EfConstruction
	hcfg.EfSearch = cfg.Index.EfSearch
	hcfg.LevelMultiplier = 1.0 / math.Log(float64(cfg.Index.M))

	for _, name := range names {
		if name == indexSnapshotName {
			idx, err := indexes.Load(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("nmt: loading hnsw snapshot: %w", err)
			}
			return idx, nil
		}
	}
	return hnsw.New(cfg.Embedding.Dimensions, hcfg), nil
}

const indexSnapshotName = "primary"

func (s *Store) registerHealthChecks() {
	s.Health.Register("storage", func() metrics.Status {
		_, err := s.kv.Get(context.Background(), []byte("__health__"))
		if err != nil && !errs.IsNotFound(err) {
			return metrics.Status{Healthy: false, Detail: err.Error()}
		}
		return metrics.Status{Healthy: true, Detail: "reachable"}
	})
	s.Health.Register("hnsw", func() metrics.Status {
		s.Metrics.HNSWSize.Set(float64(s.Index.Size()))
		s.Metrics.HNSWTombstones.Set(float64(s.Index.TombstoneCount()))
		return metrics.Status{Healthy: true, Detail: fmt.Sprintf("%d live nodes", s.Index.Size())}
	})
	s.Health.Register("journal", func() metrics.Status {
		s.Metrics.JournalSequence.Set(float64(s.Journal.Sequence()))
		return metrics.Status{Healthy: true}
	})
}

func (s *Store) startCompaction(ctx context.Context) {
	stores := []scheduler.Compactable{
		compactFunc(s.Chunks.Count),
		compactAdapter{s.kv},
	}
	s.Compactor = scheduler.New(scheduler.CompactionConfig{
		TombstoneThreshold: s.Config.Storage.TombstoneThreshold,
		Interval:           s.Config.Storage.CompactionInterval,
	}, s.Index, stores, s.Log)
	s.Compactor.Start(ctx)
}

type compactAdapter struct{ kv kv.Store }

func (c compactAdapter) Compact(ctx context.Context) error { return c.kv.Compact(ctx) }

// compactFunc adapts a stats-only call into a no-op Compactable so
// ChunkStore's lazy counting participates in the scheduler's tick without
// pretending it needs real compaction work of its own.
type compactFunc func(ctx context.Context) (int, error)

func (f compactFunc) Compact(ctx context.Context) error {
	_, err := f(ctx)
	return err
}

// Close flushes a final compaction if there are pending tombstones, saves
// the HNSW index snapshot, and closes the underlying store.
func (s *Store) Close(ctx context.Context) error {
	if s.Compactor != nil {
		s.Compactor.ShutdownCompact(ctx)
		s.Compactor.Stop()
	}
	if s.queue != nil {
		s.queue.Wait()
	}
	if err := s.Indexes.Save(ctx, indexSnapshotName, s.Index); err != nil {
		return fmt.Errorf("nmt: saving hnsw snapshot: %w", err)
	}
	return s.kv.Close()
}

// NodeID returns this store's sync-kernel node identifier.
func (s *Store) NodeID() string { return s.nodeID }

// now is split out purely so tests can't accidentally depend on wall-clock
// ordering across fast successive calls within the same assertion.
func now() time.Time { return time.Now().UTC() }
