package graph

import (
	"context"
	"sort"
	"time"

	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/vector"
)

// Reinforcement constants per spec.md §4.3.
const (
	hebbianEta            = 0.05 // Hebbian reinforcement learning rate
	inhibitoryEta         = 0.08 // inhibitory-synapse learning rate
	maxCoActivationWeight = 1.0
	maxInhibitoryWeight   = 1.0

	patternCompleteAlpha      = 0.3
	patternCompleteIterations = 3
	patternCompleteCandidates = 2000

	coActivationBoost  = 0.10
	inhibitoryPenalty  = 0.08
	workingMemoryBoost = 0.15

	onlineLearnEta = 0.1 // base rate for recordFeedback's LTP/LTD update
)

// SearchOptions configures Search.
type SearchOptions struct {
	K                  int
	EF                 int
	UsePatternComplete bool
	Filter             func(model.Neuron) bool
}

// DefaultSearchOptions returns the spec's defaults: top 10, no filter.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{K: 10, EF: 0, UsePatternComplete: true}
}

// Hit is one ranked retrieval result: the neuron, its blended hybrid score,
// and the semantic/keyword components that produced it (for callers that
// want to explain a ranking).
type Hit struct {
	Neuron        model.Neuron
	SemanticScore float64
	KeywordScore  float64
	HybridScore   float64
	FinalScore    float64
}

// Search runs the full hybrid retrieval pipeline (spec.md §4.3):
//
//  1. embed the query text
//  2. optionally refine it via Hopfield pattern completion
//  3. fetch HNSW candidates
//  4. apply the caller's filter
//  5. score candidates against the query with BM25
//  6. blend semantic and keyword scores with an adaptive weight based on
//     query token count
//  7. re-score with co-activation/inhibition/working-memory boosts
//  8. fire-and-forget reinforcement, inhibition, and episode encoding over
//     what fired together
//  9. record the episode and decay dopamine
//  10. touch working memory with the winners
func (m *Manager) Search(ctx context.Context, queryText string, queryEmbedding []float32, opts SearchOptions) ([]Hit, error) {
	q := vector.Normalize(queryEmbedding)
	if opts.UsePatternComplete {
		refined, err := m.PatternComplete(ctx, q, patternCompleteCandidates, patternCompleteIterations, patternCompleteAlpha)
		if err != nil {
			return nil, err
		}
		q = refined
	}

	k := opts.K
	if k <= 0 {
		k = 10
	}
	candidates, err := m.FindSimilar(ctx, q, 2*k, opts.EF)
	if err != nil {
		return nil, err
	}

	if opts.Filter != nil {
		filtered := candidates[:0]
		for _, c := range candidates {
			if opts.Filter(c.Neuron) {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}

	keywordHits := m.keywords.Search(queryText)
	keywordByID := make(map[string]float64, len(keywordHits))
	for _, kh := range keywordHits {
		keywordByID[kh.ID] = kh.Score
	}

	weight := adaptiveKeywordWeight(tokenCount(queryText))

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		kw := keywordByID[c.ID]
		hybrid := (1-weight)*c.Score + weight*kw
		hits = append(hits, Hit{
			Neuron:        c.Neuron,
			SemanticScore: c.Score,
			KeywordScore:  kw,
			HybridScore:   hybrid,
		})
	}

	m.boostedRescore(ctx, hits)

	sort.Slice(hits, func(i, j int) bool { return hits[i].FinalScore > hits[j].FinalScore })
	if len(hits) > k {
		hits = hits[:k]
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Neuron.ID
	}
	m.fireLearning(ctx, ids)

	m.episodes.Append(Episode{Query: queryText, NeuronIDs: ids, At: time.Now().UTC()})
	m.dopamine.Decay()
	for _, id := range ids {
		m.working.Touch(id)
	}

	return hits, nil
}

// adaptiveKeywordWeight implements spec.md §4.3's query-length-adaptive
// hybrid weight: short queries (likely keyword lookups, e.g. an id or a
// proper noun) lean further into BM25; long queries lean on semantics.
func adaptiveKeywordWeight(tokens int) float64 {
	switch {
	case tokens <= 3:
		return 0.15
	case tokens <= 7:
		return 0.25
	default:
		return 0.35
	}
}

// boostedRescore applies the co-activation/inhibition/working-memory boost
// to each hit's HybridScore in place, writing the result to FinalScore.
// maxCoActivation/maxInhibitory look at each hit's synapses to the OTHER
// candidates in this same result set, so a pair of neurons that fire
// together frequently lift each other's rank.
func (m *Manager) boostedRescore(ctx context.Context, hits []Hit) {
	present := make(map[string]bool, len(hits))
	for _, h := range hits {
		present[h.Neuron.ID] = true
	}

	for i := range hits {
		n := hits[i].Neuron
		var maxCoActivation, maxInhibitory float64
		for _, synID := range n.OutgoingSynapses {
			s, err := m.Synapses.Get(ctx, synID)
			if err != nil || !present[s.TargetID] {
				continue
			}
			switch s.Type {
			case model.SynapseAssociative, model.SynapseSemantic:
				if s.Weight > maxCoActivation {
					maxCoActivation = s.Weight
				}
			case model.SynapseInhibitory:
				if s.Weight > maxInhibitory {
					maxInhibitory = s.Weight
				}
			}
		}
		hits[i].FinalScore = hits[i].HybridScore +
			coActivationBoost*maxCoActivation -
			inhibitoryPenalty*maxInhibitory
		if m.working.Contains(n.ID) {
			hits[i].FinalScore += workingMemoryBoost
		}
	}
}

// fireLearning schedules the three retrieval-driven learning updates spec.md
// §4.3 step 7 names — reinforceCoActivation, inhibitCoActivation, and
// encodeEpisode — as one fire-and-forget background task so none of them add
// latency to the search call itself. Gated on |ids| >= 2, matching the
// spec's |result| >= 2 condition.
func (m *Manager) fireLearning(ctx context.Context, ids []string) {
	if len(ids) < 2 {
		return
	}
	task := func(taskCtx context.Context) error {
		if err := m.reinforceCoActivation(taskCtx, ids); err != nil {
			return err
		}
		if err := m.inhibitCoActivation(taskCtx, ids); err != nil {
			return err
		}
		return m.encodeEpisode(taskCtx, ids)
	}
	if m.Queue != nil {
		m.Queue.Enqueue(ctx, task)
		return
	}
	_ = task(ctx)
}

// reinforceCoActivation strengthens (or creates) an ASSOCIATIVE synapse
// between every pair of neurons in ids using the Hebbian update
// w <- clamp(w + eta*(1-w), 0, maxCoActivationWeight).
func (m *Manager) reinforceCoActivation(ctx context.Context, ids []string) error {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if err := m.strengthenOrCreate(ctx, ids[i], ids[j], model.SynapseAssociative, hebbianEta, maxCoActivationWeight); err != nil {
				return err
			}
		}
	}
	return nil
}

// inhibitCoActivation strengthens (or creates) an INHIBITORY synapse from
// the top-scoring neuron in a retrieval result set to every other neuron in
// it (spec.md §4.3: ids is already ranked by FinalScore descending when
// fireLearning calls this, so ids[0] is the top scorer).
func (m *Manager) inhibitCoActivation(ctx context.Context, ids []string) error {
	top := ids[0]
	for _, peer := range ids[1:] {
		if err := m.strengthenOrCreate(ctx, top, peer, model.SynapseInhibitory, inhibitoryEta, maxInhibitoryWeight); err != nil {
			return err
		}
	}
	return nil
}

// encodeEpisode links the co-retrieved ids into a ring of TEMPORAL synapses
// (spec.md §4.3): ids[0]->ids[1]->...->ids[n-1]->ids[0]. It reuses the same
// increment-or-create reinforcement as reinforceCoActivation, since the spec
// gives temporal edges no learning rate of their own.
func (m *Manager) encodeEpisode(ctx context.Context, ids []string) error {
	n := len(ids)
	for i := 0; i < n; i++ {
		a, b := ids[i], ids[(i+1)%n]
		if err := m.strengthenOrCreate(ctx, a, b, model.SynapseTemporal, hebbianEta, maxCoActivationWeight); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) strengthenOrCreate(ctx context.Context, a, b string, typ model.SynapseType, eta, weightCap float64) error {
	out, err := m.Synapses.Outgoing(ctx, a)
	if err != nil {
		return err
	}
	for _, s := range out {
		if s.TargetID == b && s.Type == typ {
			s.Weight = clamp01(s.Weight + eta*(weightCap-s.Weight))
			s.Metadata.ActivationCount++
			s.Metadata.LastActivated = time.Now().UTC()
			s.Metadata.UpdatedAt = s.Metadata.LastActivated
			return m.Synapses.Put(ctx, s)
		}
	}
	_, err = m.Connect(ctx, a, b, typ, eta, false)
	return err
}

// RecordFeedback applies online embedding learning (spec.md §4.3): LTP
// (positive == true) moves n's embedding toward the query it was a good
// match for; LTD moves it away. It also nudges the dopamine scalar, which
// amplifies future reinforcement via EffectiveLearningRate.
func (m *Manager) RecordFeedback(ctx context.Context, neuronID string, queryEmbedding []float32, positive bool) error {
	n, err := m.Neurons.Get(ctx, neuronID)
	if err != nil {
		return err
	}

	sign := 1.0
	if !positive {
		sign = -1.0
	}
	etaEff := m.dopamine.EffectiveLearningRate(onlineLearnEta)

	q := vector.Normalize(queryEmbedding)
	delta := vector.Sub(q, n.Embedding)
	updated := make([]float32, len(n.Embedding))
	for i := range updated {
		updated[i] = n.Embedding[i] + float32(sign*etaEff)*delta[i]
	}

	n.Metadata.FeedbackCount++
	n.Metadata.EmbeddingDrift += vector.Distance(n.Embedding, vector.Normalize(updated))
	m.dopamine.Feedback(positive)

	if err := m.Neurons.Put(ctx, n); err != nil {
		return err
	}
	return m.UpdateNeuronEmbedding(ctx, neuronID, updated)
}
