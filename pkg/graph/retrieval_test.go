package graph

import (
	"context"
	"testing"

	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/vector"
)

func TestSearchReturnsHybridScoredHits(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.CreateNeuron(ctx, CreateNeuronInput{
		Embedding: embedText(t, m, "the quick brown fox"),
		Text:      "the quick brown fox jumps over the lazy dog",
	})
	m.CreateNeuron(ctx, CreateNeuronInput{
		Embedding: embedText(t, m, "stock market analysis"),
		Text:      "stock market analysis and quarterly earnings reports",
	})

	hits, err := m.Search(ctx, "quick brown fox", embedText(t, m, "quick brown fox"), DefaultSearchOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least one hit")
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].FinalScore > hits[i-1].FinalScore {
			t.Fatalf("expected descending final scores, got %+v", hits)
		}
	}
}

func TestSearchRecordsEpisodeAndTouchesWorkingMemory(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	n, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "hello")})

	_, err := m.Search(ctx, "hello", embedText(t, m, "hello"), DefaultSearchOptions())
	if err != nil {
		t.Fatal(err)
	}

	episodes := m.episodes.Recent()
	if len(episodes) != 1 {
		t.Fatalf("expected 1 recorded episode, got %d", len(episodes))
	}
	if !m.working.Contains(n.ID) {
		t.Fatal("expected searched neuron touched into working memory")
	}
}

func TestAdaptiveKeywordWeightThresholds(t *testing.T) {
	cases := []struct {
		tokens int
		want   float64
	}{
		{1, 0.15}, {3, 0.15}, {4, 0.25}, {7, 0.25}, {8, 0.35},
	}
	for _, c := range cases {
		if got := adaptiveKeywordWeight(c.tokens); got != c.want {
			t.Fatalf("tokens=%d: expected weight %f, got %f", c.tokens, c.want, got)
		}
	}
}

func TestReinforceCoActivationCreatesAssociativeSynapses(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})
	b, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "b")})

	if err := m.reinforceCoActivation(ctx, []string{a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	out, err := m.Synapses.Outgoing(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Weight <= 0 {
		t.Fatalf("expected one reinforced associative synapse, got %+v", out)
	}

	// A second co-activation should strengthen, not duplicate.
	if err := m.reinforceCoActivation(ctx, []string{a.ID, b.ID}); err != nil {
		t.Fatal(err)
	}
	out2, _ := m.Synapses.Outgoing(ctx, a.ID)
	if len(out2) != 1 {
		t.Fatalf("expected strengthening to reuse the existing synapse, got %d records", len(out2))
	}
	if out2[0].Weight <= out[0].Weight {
		t.Fatalf("expected weight to increase on repeated co-activation: %f -> %f", out[0].Weight, out2[0].Weight)
	}
}

func TestInhibitCoActivationStrengthensFromTopScorerOnly(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	top, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})
	peer1, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "b")})
	peer2, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "c")})

	if err := m.inhibitCoActivation(ctx, []string{top.ID, peer1.ID, peer2.ID}); err != nil {
		t.Fatal(err)
	}

	out, err := m.Synapses.Outgoing(ctx, top.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected top scorer to gain 2 inhibitory synapses, got %d", len(out))
	}
	for _, s := range out {
		if s.Type != model.SynapseInhibitory {
			t.Fatalf("expected INHIBITORY synapse, got %s", s.Type)
		}
	}

	peerOut, err := m.Synapses.Outgoing(ctx, peer1.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(peerOut) != 0 {
		t.Fatalf("expected no inhibitory synapses originating from a non-top peer, got %d", len(peerOut))
	}
}

func TestEncodeEpisodeLinksRingOfTemporalSynapses(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})
	b, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "b")})
	c, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "c")})

	if err := m.encodeEpisode(ctx, []string{a.ID, b.ID, c.ID}); err != nil {
		t.Fatal(err)
	}

	for _, pair := range [][2]string{{a.ID, b.ID}, {b.ID, c.ID}, {c.ID, a.ID}} {
		out, err := m.Synapses.Outgoing(ctx, pair[0])
		if err != nil {
			t.Fatal(err)
		}
		found := false
		for _, s := range out {
			if s.TargetID == pair[1] && s.Type == model.SynapseTemporal {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected TEMPORAL ring edge %s -> %s", pair[0], pair[1])
		}
	}
}

func TestFireLearningFiresAllThreeStep7Updates(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})
	b, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "b")})

	m.fireLearning(ctx, []string{a.ID, b.ID})

	out, err := m.Synapses.Outgoing(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	var types []model.SynapseType
	for _, s := range out {
		types = append(types, s.Type)
	}
	hasAssociative, hasInhibitory, hasTemporal := false, false, false
	for _, ty := range types {
		switch ty {
		case model.SynapseAssociative:
			hasAssociative = true
		case model.SynapseInhibitory:
			hasInhibitory = true
		case model.SynapseTemporal:
			hasTemporal = true
		}
	}
	if !hasAssociative || !hasInhibitory || !hasTemporal {
		t.Fatalf("expected ASSOCIATIVE, INHIBITORY, and TEMPORAL synapses from %s, got %v", a.ID, types)
	}
}

func TestFireLearningSkipsWhenResultSetBelowTwo(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "a")})

	m.fireLearning(ctx, []string{a.ID})

	out, err := m.Synapses.Outgoing(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no synapses created for a single-id result set, got %d", len(out))
	}
}

func TestRecordFeedbackPositiveMovesEmbeddingTowardQuery(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	n, _ := m.CreateNeuron(ctx, CreateNeuronInput{Embedding: embedText(t, m, "alpha")})
	query := embedText(t, m, "beta")

	if err := m.RecordFeedback(ctx, n.ID, query, true); err != nil {
		t.Fatal(err)
	}
	updated, err := m.Neurons.Get(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Metadata.FeedbackCount != 1 {
		t.Fatalf("expected feedback count incremented, got %d", updated.Metadata.FeedbackCount)
	}
	if vector.CosineSimilarity(updated.Embedding, query) <= vector.CosineSimilarity(n.Embedding, query) {
		t.Fatal("expected positive feedback to move the embedding toward the query")
	}
}

func TestTokenizeSplitsCJKIntoMultipleTokens(t *testing.T) {
	tokens := tokenize("自然言語処理")
	if len(tokens) < 2 {
		t.Fatalf("expected CJK text to split into multiple tokens, got %v", tokens)
	}
}

func TestTokenizeFiltersStopWordsAndShortTokens(t *testing.T) {
	tokens := tokenize("the a of quick fox")
	for _, tok := range tokens {
		if tok == "the" || tok == "a" || tok == "of" {
			t.Fatalf("expected stop word %q filtered out of %v", tok, tokens)
		}
	}
}
