package graph

import (
	"context"
	"testing"

	"github.com/nmtsys/memstore/pkg/embed"
	"github.com/nmtsys/memstore/pkg/hnsw"
	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/store"
	"github.com/nmtsys/memstore/pkg/vector"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	memKV := kv.NewMemoryStore()
	neurons := store.NewNeuronStore(memKV)
	synapses := store.NewSynapseStore(memKV)
	idx := hnsw.New(16, hnsw.DefaultConfig())
	embedder := embed.NewHashed(16)
	return New(neurons, synapses, idx, embedder, nil)
}

func embedText(t *testing.T, m *Manager, text string) []float32 {
	t.Helper()
	v, err := m.Embedder.Embed(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestCreateNeuronAddsToIndex(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	n, err := m.CreateNeuron(ctx, CreateNeuronInput{
		Embedding:  embedText(t, m, "hello world"),
		MerkleRoot: "root1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !m.Index.Has(n.ID) {
		t.Fatal("expected neuron embedding added to HNSW")
	}
	got, err := m.Neurons.Get(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.MerkleRoot != "root1" {
		t.Fatalf("expected stored neuron to round-trip, got %+v", got)
	}
}

func TestCreateNeuronAutoConnectsToSimilarNeighbors(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, err := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "cats are great pets")})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.CreateNeuron(ctx, CreateNeuronInput{
		Embedding:           embedText(t, m, "cats are great pets"), // identical -> score 1.0
		AutoConnect:         true,
		AutoConnectK:        5,
		ConnectionThreshold: 0.5,
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := m.Synapses.Outgoing(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range out {
		if s.TargetID == a.ID && s.Type == model.SynapseSemantic {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected auto-connect synapse from %s to %s, got %+v", b.ID, a.ID, out)
	}
}

func TestConnectBidirectionalCreatesTwoRecords(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})
	b, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "b")})

	syns, err := m.Connect(ctx, a.ID, b.ID, model.SynapseCausal, 0.5, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(syns) != 2 {
		t.Fatalf("expected 2 synapse records for bidirectional connect, got %d", len(syns))
	}

	aOut, _ := m.Synapses.Outgoing(ctx, a.ID)
	bOut, _ := m.Synapses.Outgoing(ctx, b.ID)
	if len(aOut) != 1 || len(bOut) != 1 {
		t.Fatalf("expected one outgoing synapse each way, got a=%d b=%d", len(aOut), len(bOut))
	}
}

func TestDeleteNeuronCascadesSynapses(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})
	b, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "b")})
	if _, err := m.Connect(ctx, a.ID, b.ID, model.SynapseAssociative, 0.4, true); err != nil {
		t.Fatal(err)
	}

	if err := m.DeleteNeuron(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if m.Index.Has(a.ID) {
		t.Fatal("expected HNSW node removed")
	}
	bOut, err := m.Synapses.Outgoing(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(bOut) != 0 {
		t.Fatalf("expected b's synapse back to a removed, got %+v", bOut)
	}
}

func TestFindSimilarOrdersByScoreDescending(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "apple")})
	m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "banana")})
	target, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "apple")})

	hits, err := m.FindSimilar(ctx, target.Embedding, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("expected descending scores, got %+v", hits)
		}
	}
}

func TestPatternCompleteReturnsUnitNormAndIsStableOnEmptyIndex(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	q := embedText(t, m, "anything")
	refined, err := m.PatternComplete(ctx, q, 10, 3, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	if len(refined) != len(q) {
		t.Fatalf("expected same dimensionality, got %d vs %d", len(refined), len(q))
	}
	if norm := vector.Norm(refined); norm < 0.999 || norm > 1.001 {
		t.Fatalf("expected unit-norm result, got norm %f", norm)
	}
}

func TestUpdateNeuronEmbeddingReplacesHNSWEntry(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	n, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "original")})
	newVec := embedText(t, m, "replacement")

	if err := m.UpdateNeuronEmbedding(ctx, n.ID, newVec); err != nil {
		t.Fatal(err)
	}
	got, err := m.Neurons.Get(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Embedding[0] != newVec[0] {
		t.Fatal("expected stored embedding updated")
	}
	hits, err := m.Index.Search(newVec, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != n.ID || hits[0].Score < 0.999 {
		t.Fatalf("expected HNSW entry to hold the replacement vector, got %+v", hits)
	}
}

func TestPruneSynapsesDryRunDoesNotDelete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})
	b, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "b")})
	m.Connect(ctx, a.ID, b.ID, model.SynapseAssociative, 0.01, false)

	pruned, err := m.PruneSynapses(ctx, PruneSynapsesOptions{MinWeight: 0.5, MinActivations: 10, DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(pruned) != 1 {
		t.Fatalf("expected 1 candidate for pruning, got %d", len(pruned))
	}
	out, _ := m.Synapses.Outgoing(ctx, a.ID)
	if len(out) != 1 {
		t.Fatal("dry run must not delete anything")
	}
}
