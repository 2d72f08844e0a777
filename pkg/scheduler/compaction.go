package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// HNSWIndex is the subset of *hnsw.Index the compaction loop needs. Kept
// as a narrow interface so this package does not import pkg/hnsw.
type HNSWIndex interface {
	TombstoneCount() int
	Compact()
}

// Compactable is a store (or anything else) with its own background
// compaction step, run unconditionally every tick.
type Compactable interface {
	Compact(ctx context.Context) error
}

// CompactionConfig configures CompactionScheduler, defaulting to spec.md
// §4.5's tombstoneThreshold=50, intervalMs=5min.
type CompactionConfig struct {
	TombstoneThreshold int
	Interval           time.Duration
}

// DefaultCompactionConfig returns threshold=50, interval=5m.
func DefaultCompactionConfig() CompactionConfig {
	return CompactionConfig{TombstoneThreshold: 50, Interval: 5 * time.Minute}
}

// CompactionScheduler runs a periodic tick that compacts the HNSW index
// once its tombstone count exceeds the configured threshold, and always
// compacts every registered store.
type CompactionScheduler struct {
	cfg    CompactionConfig
	index  HNSWIndex
	stores []Compactable
	log    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a scheduler over index and stores. log may be nil.
func New(cfg CompactionConfig, index HNSWIndex, stores []Compactable, log *zap.Logger) *CompactionScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg = DefaultCompactionConfig()
	}
	return &CompactionScheduler{cfg: cfg, index: index, stores: stores, log: log}
}

// Start runs the periodic tick in a background goroutine until Stop is
// called or ctx is cancelled.
func (s *CompactionScheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick runs one compaction pass synchronously: the HNSW index compacts
// only past the tombstone threshold; every store compacts unconditionally.
func (s *CompactionScheduler) Tick(ctx context.Context) {
	if s.index != nil && s.index.TombstoneCount() > s.cfg.TombstoneThreshold {
		s.index.Compact()
	}
	for _, st := range s.stores {
		if err := st.Compact(ctx); err != nil {
			s.log.Warn("scheduler: store compaction failed", zap.Error(err))
		}
	}
}

// ShutdownCompact runs a final compaction pass unconditionally on
// tombstones being non-zero (spec.md §4.5: "final compaction runs on
// shutdown when tombstones are non-zero").
func (s *CompactionScheduler) ShutdownCompact(ctx context.Context) {
	if s.index != nil && s.index.TombstoneCount() > 0 {
		s.index.Compact()
	}
	for _, st := range s.stores {
		if err := st.Compact(ctx); err != nil {
			s.log.Warn("scheduler: shutdown compaction failed", zap.Error(err))
		}
	}
}

// Stop cancels the background tick loop and waits for it to exit.
func (s *CompactionScheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
