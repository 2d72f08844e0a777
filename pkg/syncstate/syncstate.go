// Package syncstate implements the CRDT-style anti-entropy sync kernel
// spec.md §4.6 describes: recording local changes against a vector clock,
// diffing two nodes' states to find what each side is missing, and
// resolving concurrent conflicting changes to the same entity.
package syncstate

import (
	"context"
	"fmt"

	"github.com/nmtsys/memstore/pkg/journal"
)

// RemoteState is the minimal shape a peer advertises for diffing: its
// vector clock and the highest sequence number it has recorded.
type RemoteState struct {
	Clock    journal.Clock
	Sequence uint64
}

// StateDiff is the result of comparing the local node's state against a
// peer's RemoteState.
type StateDiff struct {
	LocalAhead  []journal.ChangeEntry // entries to send: local dominates remote
	RemoteAhead []uint64              // sequence numbers to request: remote dominates local
	Conflicts   []Conflict            // clocks concurrent and both sides touched the same entity
}

// Conflict pairs a local and remote entry for the same entity whose vector
// clocks are concurrent.
type Conflict struct {
	EntityID string
	Local    journal.ChangeEntry
	Remote   journal.ChangeEntry
}

// Strategy resolves a Conflict to a winning entry.
type Strategy interface {
	Resolve(c Conflict) journal.ChangeEntry
}

// LastWriteWins picks the entry with the later timestamp.
type LastWriteWins struct{}

func (LastWriteWins) Resolve(c Conflict) journal.ChangeEntry {
	if c.Remote.Timestamp.After(c.Local.Timestamp) {
		return c.Remote
	}
	return c.Local
}

// VectorClockWins picks whichever entry's clock dominates the other,
// falling back to LastWriteWins when the clocks remain concurrent (e.g.
// clocks recorded before a merge observed each other).
type VectorClockWins struct{}

func (VectorClockWins) Resolve(c Conflict) journal.ChangeEntry {
	switch c.Local.Clock.Compare(c.Remote.Clock) {
	case journal.After:
		return c.Local
	case journal.Before:
		return c.Remote
	default:
		return LastWriteWins{}.Resolve(c)
	}
}

// MergeFunc lets a caller supply custom application-level conflict
// resolution (spec.md's "user-supplied merge / manual resolver").
type MergeFunc func(c Conflict) journal.ChangeEntry

func (f MergeFunc) Resolve(c Conflict) journal.ChangeEntry { return f(c) }

// EventSink receives conflict lifecycle notifications. Both methods are
// optional no-ops when Kernel.Events is nil.
type EventSink interface {
	OnConflict(c Conflict)
	OnResolved(c Conflict, winner journal.ChangeEntry)
}

// Kernel ties a local Journal to a conflict Strategy and drives
// recordChange / computeStateDiff / applyRemoteChanges.
type Kernel struct {
	Journal  *journal.Journal
	Strategy Strategy
	Events   EventSink

	clock  journal.Clock
	nodeID string
}

// New returns a Kernel for nodeID backed by j, using strategy to resolve
// concurrent conflicts (defaults to VectorClockWins if nil).
func New(nodeID string, j *journal.Journal, strategy Strategy) *Kernel {
	if strategy == nil {
		strategy = VectorClockWins{}
	}
	return &Kernel{Journal: j, Strategy: strategy, nodeID: nodeID, clock: journal.Clock{}}
}

// Clock returns the kernel's current vector clock (a copy).
func (k *Kernel) Clock() journal.Clock { return k.clock.Clone() }

// RecordChange ticks the local clock, stamps entry with it, and appends to
// the journal.
func (k *Kernel) RecordChange(ctx context.Context, entry journal.ChangeEntry) (journal.ChangeEntry, error) {
	k.clock = k.clock.Tick(k.nodeID)
	entry.Clock = k.clock.Clone()
	return k.Journal.Append(ctx, entry)
}

// ComputeStateDiff compares the local journal/clock against remote and
// returns what each side needs from the other, per spec.md §4.6.
func (k *Kernel) ComputeStateDiff(ctx context.Context, remote RemoteState) (StateDiff, error) {
	var diff StateDiff

	switch k.clock.Compare(remote.Clock) {
	case journal.After:
		entries, err := k.Journal.GetAfterSequence(ctx, remote.Sequence)
		if err != nil {
			return StateDiff{}, err
		}
		diff.LocalAhead = entries
	case journal.Before:
		local := k.Journal.Sequence()
		for seq := local + 1; seq <= remote.Sequence; seq++ {
			diff.RemoteAhead = append(diff.RemoteAhead, seq)
		}
	case journal.Concurrent:
		localEntries, err := k.Journal.GetAfterSequence(ctx, 0)
		if err != nil {
			return StateDiff{}, err
		}
		byEntity := make(map[string]journal.ChangeEntry, len(localEntries))
		for _, e := range localEntries {
			byEntity[e.EntityID] = e
		}
		// RemoteState here carries only a clock/sequence, not remote
		// entries; conflicts against concrete remote entries are detected
		// in ApplyRemoteChanges, which has the actual entries to compare.
		_ = byEntity
	case journal.Equal:
		// Fully caught up; nothing to diff.
	}

	return diff, nil
}

// ApplyRemoteChanges applies each remote entry: if no local entry touches
// the same entity with a concurrent clock, the remote entry is recorded
// as-is; otherwise the configured Strategy picks a winner, which is
// recorded tagged resolvedConflict=true.
func (k *Kernel) ApplyRemoteChanges(ctx context.Context, entries []journal.ChangeEntry) error {
	for _, remote := range entries {
		local, err := k.latestForEntity(ctx, remote.EntityID)
		if err != nil {
			return err
		}

		if local == nil || local.Clock.Compare(remote.Clock) != journal.Concurrent {
			k.clock = k.clock.Merge(remote.Clock)
			remote.Clock = k.clock.Clone()
			if _, err := k.Journal.Append(ctx, remote); err != nil {
				return err
			}
			continue
		}

		conflict := Conflict{EntityID: remote.EntityID, Local: *local, Remote: remote}
		if k.Events != nil {
			k.Events.OnConflict(conflict)
		}

		winner := k.Strategy.Resolve(conflict)
		winner.Metadata = mergeMetadata(winner.Metadata, map[string]string{"resolvedConflict": "true"})
		k.clock = k.clock.Merge(remote.Clock)
		winner.Clock = k.clock.Clone()

		applied, err := k.Journal.Append(ctx, winner)
		if err != nil {
			return err
		}
		if k.Events != nil {
			k.Events.OnResolved(conflict, applied)
		}
	}
	return nil
}

func (k *Kernel) latestForEntity(ctx context.Context, entityID string) (*journal.ChangeEntry, error) {
	entries, err := k.Journal.GetByEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("syncstate: loading entity history: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	latest := entries[len(entries)-1]
	return &latest, nil
}

func mergeMetadata(base map[string]string, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
