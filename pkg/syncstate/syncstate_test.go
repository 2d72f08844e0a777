package syncstate

import (
	"context"
	"testing"
	"time"

	"github.com/nmtsys/memstore/pkg/journal"
	"github.com/nmtsys/memstore/pkg/kv"
)

func newKernel(t *testing.T, nodeID string, strategy Strategy) *Kernel {
	t.Helper()
	j, err := journal.Open(context.Background(), kv.NewMemoryStore(), nodeID, nil)
	if err != nil {
		t.Fatal(err)
	}
	return New(nodeID, j, strategy)
}

func TestRecordChangeTicksClock(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t, "nodeA", nil)

	e1, err := k.RecordChange(ctx, journal.ChangeEntry{Type: "neuron", Operation: journal.OpCreate, EntityID: "n1"})
	if err != nil {
		t.Fatal(err)
	}
	if e1.Clock["nodeA"] != 1 {
		t.Fatalf("expected clock nodeA=1, got %+v", e1.Clock)
	}

	e2, err := k.RecordChange(ctx, journal.ChangeEntry{Type: "neuron", Operation: journal.OpUpdate, EntityID: "n1"})
	if err != nil {
		t.Fatal(err)
	}
	if e2.Clock["nodeA"] != 2 {
		t.Fatalf("expected clock nodeA=2, got %+v", e2.Clock)
	}
}

func TestComputeStateDiffLocalAhead(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t, "nodeA", nil)
	k.RecordChange(ctx, journal.ChangeEntry{Type: "neuron", Operation: journal.OpCreate, EntityID: "n1"})
	k.RecordChange(ctx, journal.ChangeEntry{Type: "neuron", Operation: journal.OpCreate, EntityID: "n2"})

	diff, err := k.ComputeStateDiff(ctx, RemoteState{Clock: journal.Clock{}, Sequence: 0})
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.LocalAhead) != 2 {
		t.Fatalf("expected 2 local-ahead entries, got %d", len(diff.LocalAhead))
	}
}

func TestComputeStateDiffRemoteAhead(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t, "nodeA", nil)

	remoteClock := journal.Clock{"nodeA": 0, "nodeB": 5}
	diff, err := k.ComputeStateDiff(ctx, RemoteState{Clock: remoteClock, Sequence: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(diff.RemoteAhead) != 5 {
		t.Fatalf("expected 5 remote-ahead sequence numbers, got %d", len(diff.RemoteAhead))
	}
}

func TestApplyRemoteChangesNoConflictAppendsDirectly(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t, "nodeA", nil)

	remote := journal.ChangeEntry{
		Type: "neuron", Operation: journal.OpCreate, EntityID: "n1",
		Clock: journal.Clock{"nodeB": 1}, Timestamp: time.Now(), NodeID: "nodeB",
	}
	if err := k.ApplyRemoteChanges(ctx, []journal.ChangeEntry{remote}); err != nil {
		t.Fatal(err)
	}

	entries, err := k.Journal.GetByEntity(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if k.Clock()["nodeB"] != 1 {
		t.Fatalf("expected local clock to merge nodeB=1, got %+v", k.Clock())
	}
}

func TestApplyRemoteChangesConcurrentConflictResolvesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t, "nodeA", LastWriteWins{})

	k.RecordChange(ctx, journal.ChangeEntry{
		Type: "neuron", Operation: journal.OpUpdate, EntityID: "n1", Timestamp: time.Now(),
	})

	remote := journal.ChangeEntry{
		Type: "neuron", Operation: journal.OpUpdate, EntityID: "n1",
		Clock: journal.Clock{"nodeB": 1}, // concurrent with local {nodeA:1}
		Timestamp: time.Now().Add(time.Hour),
		NodeID:    "nodeB",
	}

	if err := k.ApplyRemoteChanges(ctx, []journal.ChangeEntry{remote}); err != nil {
		t.Fatal(err)
	}

	entries, err := k.Journal.GetByEntity(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	last := entries[len(entries)-1]
	if last.Metadata["resolvedConflict"] != "true" {
		t.Fatalf("expected winning entry tagged resolvedConflict, got %+v", last.Metadata)
	}
	if last.NodeID != "nodeB" {
		t.Fatalf("expected the later (remote) write to win, got node %s", last.NodeID)
	}
}

func TestApplyRemoteChangesEmitsConflictEvents(t *testing.T) {
	ctx := context.Background()
	k := newKernel(t, "nodeA", LastWriteWins{})

	var gotConflict, gotResolved bool
	k.Events = recordingSink{
		conflict: func(Conflict) { gotConflict = true },
		resolved: func(Conflict, journal.ChangeEntry) { gotResolved = true },
	}

	k.RecordChange(ctx, journal.ChangeEntry{Type: "neuron", Operation: journal.OpUpdate, EntityID: "n1"})
	remote := journal.ChangeEntry{
		Type: "neuron", Operation: journal.OpUpdate, EntityID: "n1",
		Clock: journal.Clock{"nodeB": 1}, Timestamp: time.Now(), NodeID: "nodeB",
	}
	if err := k.ApplyRemoteChanges(ctx, []journal.ChangeEntry{remote}); err != nil {
		t.Fatal(err)
	}
	if !gotConflict || !gotResolved {
		t.Fatalf("expected both conflict and resolved events, got conflict=%v resolved=%v", gotConflict, gotResolved)
	}
}

type recordingSink struct {
	conflict func(Conflict)
	resolved func(Conflict, journal.ChangeEntry)
}

func (r recordingSink) OnConflict(c Conflict)                        { r.conflict(c) }
func (r recordingSink) OnResolved(c Conflict, w journal.ChangeEntry) { r.resolved(c, w) }
