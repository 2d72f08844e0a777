// Package scheduler implements the serialized task queue and periodic
// compaction scheduler spec.md §4.3/§4.5 require: a chain of fire-and-forget
// learning updates that must observe serial order per synapse, and a
// background loop that compacts the HNSW index and the stores once
// tombstones accumulate.
package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task is one unit of fire-and-forget work enqueued after a retrieval
// (Hebbian reinforcement, inhibition, episode encoding).
type Task func(ctx context.Context) error

// SerialTaskQueue runs enqueued tasks strictly one at a time, in the order
// they were submitted, so concurrent read-modify-write on a single synapse
// can never interleave. Errors are logged and do not break the chain
// (spec.md §4.3).
type SerialTaskQueue struct {
	log *zap.Logger

	mu   sync.Mutex
	last chan struct{}
}

// NewSerialTaskQueue returns an empty queue. log may be nil (a no-op
// logger is used).
func NewSerialTaskQueue(log *zap.Logger) *SerialTaskQueue {
	if log == nil {
		log = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)
	return &SerialTaskQueue{log: log, last: done}
}

// Enqueue chains task after every previously enqueued task has finished,
// regardless of which goroutine called Enqueue. It returns immediately;
// the task runs asynchronously.
func (q *SerialTaskQueue) Enqueue(ctx context.Context, task Task) {
	q.mu.Lock()
	prev := q.last
	next := make(chan struct{})
	q.last = next
	q.mu.Unlock()

	go func() {
		defer close(next)
		<-prev
		if err := task(ctx); err != nil {
			q.log.Warn("scheduler: serial task failed", zap.Error(err))
		}
	}()
}

// Wait blocks until every task enqueued before this call has completed.
// Intended for tests and graceful shutdown, not the retrieval hot path.
func (q *SerialTaskQueue) Wait() {
	q.mu.Lock()
	last := q.last
	q.mu.Unlock()
	<-last
}
