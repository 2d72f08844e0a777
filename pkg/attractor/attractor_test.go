package attractor

import (
	"context"
	"testing"
	"time"

	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/store"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	memKV := kv.NewMemoryStore()
	return New(store.NewNeuronStore(memKV), store.NewSynapseStore(memKV), store.NewAttractorStore(memKV))
}

func vec(vals ...float32) []float32 { return vals }

func putNeuron(t *testing.T, p *Planner, id string, embedding []float32) model.Neuron {
	t.Helper()
	n := model.Neuron{ID: id, Embedding: embedding, Metadata: model.NeuronMetadata{CreatedAt: time.Now(), UpdatedAt: time.Now()}}
	if err := p.Neurons.Put(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	return n
}

func connect(t *testing.T, p *Planner, src, tgt string, weight float64) {
	t.Helper()
	s := model.Synapse{ID: src + "-" + tgt, SourceID: src, TargetID: tgt, Type: model.SynapseSemantic, Weight: weight,
		Metadata: model.SynapseMetadata{CreatedAt: time.Now(), UpdatedAt: time.Now()}}
	if err := p.Synapses.Put(context.Background(), s); err != nil {
		t.Fatal(err)
	}
}

func TestCalculateInfluenceDecaysWithDistance(t *testing.T) {
	a := model.Attractor{Strength: 1, Priority: 10, Embedding: vec(1, 0, 0)}
	near := CalculateInfluence(vec(1, 0, 0), a, DefaultInfluenceRadius)
	far := CalculateInfluence(vec(0, 1, 0), a, DefaultInfluenceRadius)
	if near <= far {
		t.Fatalf("expected closer embedding to have higher influence: near=%f far=%f", near, far)
	}
	if near != 1.0 {
		t.Fatalf("expected influence 1.0 at zero distance with strength/priority maxed, got %f", near)
	}
}

func TestTransitionProbabilitiesSumToOne(t *testing.T) {
	attractors := []model.Attractor{{Strength: 0.8, Priority: 5, Embedding: vec(1, 0, 0)}}
	candidates := [][]float32{vec(1, 0, 0), vec(0, 1, 0), vec(0, 0, 1)}
	probs := TransitionProbabilities(vec(0.5, 0.5, 0), candidates, attractors, DefaultInfluenceRadius)

	var sum float64
	for _, p := range probs {
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("expected probabilities to sum to 1, got %f (%v)", sum, probs)
	}
}

func TestFindPathOnFiveNodeChain(t *testing.T) {
	p := newTestPlanner(t)
	ctx := context.Background()

	// 5-node chain with strictly decreasing distance to the goal embedding.
	putNeuron(t, p, "n0", vec(0, 0, 1))
	putNeuron(t, p, "n1", vec(0.2, 0, 0.98))
	putNeuron(t, p, "n2", vec(0.5, 0, 0.87))
	putNeuron(t, p, "n3", vec(0.8, 0, 0.6))
	putNeuron(t, p, "n4", vec(1, 0, 0))

	connect(t, p, "n0", "n1", 0.9)
	connect(t, p, "n1", "n2", 0.9)
	connect(t, p, "n2", "n3", 0.9)
	connect(t, p, "n3", "n4", 0.9)

	path, err := p.FindPath(ctx, "n0", "n4", 10)
	if err != nil {
		t.Fatal(err)
	}
	if path.NodeIDs[0] != "n0" || path.NodeIDs[len(path.NodeIDs)-1] != "n4" {
		t.Fatalf("expected full chain n0..n4, got %v", path.NodeIDs)
	}
	if path.Probability <= 0 {
		t.Fatalf("expected positive path probability, got %f", path.Probability)
	}
}

func TestFindPathReturnsErrorWhenDisconnected(t *testing.T) {
	p := newTestPlanner(t)
	ctx := context.Background()
	putNeuron(t, p, "a", vec(1, 0, 0))
	putNeuron(t, p, "b", vec(0, 1, 0))

	if _, err := p.FindPath(ctx, "a", "b", 5); err == nil {
		t.Fatal("expected error for disconnected nodes")
	}
}

func TestFindAlternativePathsStopsOnFirstFailure(t *testing.T) {
	p := newTestPlanner(t)
	ctx := context.Background()
	putNeuron(t, p, "a", vec(1, 0, 0))
	putNeuron(t, p, "b", vec(0.9, 0.1, 0))
	connect(t, p, "a", "b", 0.95)

	paths, err := p.FindAlternativePaths(ctx, "a", "b", 5, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected exactly 1 path (no alternatives exist), got %d", len(paths))
	}
}

func TestBidirectionalAStarFindsPath(t *testing.T) {
	p := newTestPlanner(t)
	ctx := context.Background()
	putNeuron(t, p, "n0", vec(0, 0, 1))
	putNeuron(t, p, "n1", vec(0.3, 0, 0.95))
	putNeuron(t, p, "n2", vec(0.7, 0, 0.7))
	putNeuron(t, p, "n3", vec(1, 0, 0))
	connect(t, p, "n0", "n1", 0.8)
	connect(t, p, "n1", "n2", 0.8)
	connect(t, p, "n2", "n3", 0.8)

	path, err := p.BidirectionalAStar(ctx, "n0", "n3", 10)
	if err != nil {
		t.Fatal(err)
	}
	if path.NodeIDs[0] != "n0" || path.NodeIDs[len(path.NodeIDs)-1] != "n3" {
		t.Fatalf("expected path from n0 to n3, got %v", path.NodeIDs)
	}
}

func TestCreateAttractorEvictsWeakestWhenAtCapacity(t *testing.T) {
	p := newTestPlanner(t)
	ctx := context.Background()

	var firstID string
	for i := 0; i < MaxAttractors; i++ {
		a, err := p.CreateAttractor(ctx, CreateAttractorInput{Name: "a", Embedding: vec(1, 0, 0), Strength: 0.1 + float64(i)*0.001, Priority: 5})
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			firstID = a.ID
		}
	}
	if _, err := p.CreateAttractor(ctx, CreateAttractorInput{Name: "overflow", Embedding: vec(1, 0, 0), Strength: 0.9, Priority: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Attractors.Get(ctx, firstID); err == nil {
		t.Fatal("expected weakest (first, lowest strength) attractor evicted")
	}
}

func TestDecaySweepPrunesWeakStaleAttractors(t *testing.T) {
	p := newTestPlanner(t)
	ctx := context.Background()

	a, err := p.CreateAttractor(ctx, CreateAttractorInput{Name: "stale", Embedding: vec(1, 0, 0), Strength: 0.02, Priority: 1})
	if err != nil {
		t.Fatal(err)
	}
	a.UpdatedAt = time.Now().Add(-240 * time.Hour) // 10 half-lives ago
	if err := p.Attractors.Put(ctx, a); err != nil {
		t.Fatal(err)
	}

	_, pruned, err := p.DecaySweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned attractor, got %d", pruned)
	}
	if _, err := p.Attractors.Get(ctx, a.ID); err == nil {
		t.Fatal("expected stale attractor deleted")
	}
}

func TestDecayStrengthHalvesAfterHalfLife(t *testing.T) {
	now := time.Now()
	decayed := DecayStrength(1.0, now.Add(-24*time.Hour), now)
	if decayed < 0.45 || decayed > 0.55 {
		t.Fatalf("expected strength to roughly halve after 24h, got %f", decayed)
	}
}
