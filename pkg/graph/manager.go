// Package graph implements the neuron graph manager (spec.md §4.3): CRUD
// over neurons and typed synapses on top of pkg/store and pkg/hnsw, Hopfield
// pattern completion, Hebbian/inhibitory reinforcement, working memory,
// dopamine-modulated online embedding learning, and the hybrid retrieval
// pipeline (pkg/graph/retrieval.go).
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/nmtsys/memstore/pkg/embed"
	"github.com/nmtsys/memstore/pkg/errs"
	"github.com/nmtsys/memstore/pkg/hnsw"
	"github.com/nmtsys/memstore/pkg/ids"
	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/scheduler"
	"github.com/nmtsys/memstore/pkg/store"
	"github.com/nmtsys/memstore/pkg/vector"
)

// CreateNeuronInput is the input to CreateNeuron.
type CreateNeuronInput struct {
	Embedding           []float32
	Text                string // indexed for BM25 keyword retrieval; not stored verbatim
	ChunkHashes         []string
	MerkleRoot          string
	SourceType          string
	Tags                []string
	Class               model.NeuronClass
	TTL                 *time.Duration
	Provenance          *model.Provenance
	AutoConnect         bool
	AutoConnectK        int
	ConnectionThreshold float64
}

// Manager owns the semantic graph: neuron/synapse persistence, the HNSW
// index, reinforcement learning, and working memory/dopamine state.
type Manager struct {
	Neurons  *store.NeuronStore
	Synapses *store.SynapseStore
	Index    *hnsw.Index
	Embedder embed.Embedder
	Queue    *scheduler.SerialTaskQueue

	keywords *keywordIndex
	working  *workingMemory
	episodes *episodeBuffer
	dopamine *dopamine
}

// New returns a Manager. queue may be nil, in which case reinforcement
// fire-and-forget work runs synchronously (used by tests).
func New(neurons *store.NeuronStore, synapses *store.SynapseStore, index *hnsw.Index, embedder embed.Embedder, queue *scheduler.SerialTaskQueue) *Manager {
	return &Manager{
		Neurons:  neurons,
		Synapses: synapses,
		Index:    index,
		Embedder: embedder,
		Queue:    queue,
		keywords: newKeywordIndex(),
		working:  newWorkingMemory(7),
		episodes: newEpisodeBuffer(10),
		dopamine: newDopamine(),
	}
}

// CreateNeuron persists a neuron, inserts its embedding into HNSW, and
// optionally auto-connects it to its top-k nearest neighbors above
// threshold with SEMANTIC synapses weighted by similarity.
func (m *Manager) CreateNeuron(ctx context.Context, in CreateNeuronInput) (model.Neuron, error) {
	if len(in.Embedding) == 0 {
		return model.Neuron{}, fmt.Errorf("%w: empty embedding", errs.InvalidInput)
	}

	now := time.Now().UTC()
	n := model.Neuron{
		ID:          ids.New(),
		Embedding:   vector.Normalize(in.Embedding),
		ChunkHashes: in.ChunkHashes,
		MerkleRoot:  in.MerkleRoot,
		Metadata: model.NeuronMetadata{
			CreatedAt:      now,
			UpdatedAt:      now,
			LastAccessedAt: now,
			SourceType:     in.SourceType,
			Tags:           in.Tags,
			Class:          in.Class,
			TTL:            in.TTL,
			Provenance:     in.Provenance,
		},
	}

	if err := m.Neurons.Put(ctx, n); err != nil {
		return model.Neuron{}, err
	}
	if err := m.Index.Add(n.ID, n.Embedding); err != nil {
		return model.Neuron{}, err
	}
	if in.Text != "" {
		m.keywords.Index(n.ID, in.Text)
	}

	if in.AutoConnect {
		k := in.AutoConnectK
		if k <= 0 {
			k = 5
		}
		neighbors, err := m.FindSimilar(ctx, n.Embedding, k+1, 0)
		if err != nil {
			return model.Neuron{}, err
		}
		for _, nb := range neighbors {
			if nb.ID == n.ID || nb.Score < in.ConnectionThreshold {
				continue
			}
			if _, err := m.Connect(ctx, n.ID, nb.ID, model.SynapseSemantic, nb.Score, false); err != nil {
				return model.Neuron{}, err
			}
		}
	}

	return n, nil
}

// Connect creates a directed synapse src -> tgt (and, if bidirectional, a
// second independent tgt -> src record).
func (m *Manager) Connect(ctx context.Context, src, tgt string, typ model.SynapseType, weight float64, bidirectional bool) ([]model.Synapse, error) {
	now := time.Now().UTC()
	forward := model.Synapse{
		ID: ids.New(), SourceID: src, TargetID: tgt, Type: typ, Weight: clamp01(weight),
		Metadata: model.SynapseMetadata{CreatedAt: now, UpdatedAt: now, Bidirectional: bidirectional},
	}
	if err := m.Synapses.Put(ctx, forward); err != nil {
		return nil, err
	}
	if err := m.appendAdjacency(ctx, src, tgt, forward.ID); err != nil {
		return nil, err
	}

	out := []model.Synapse{forward}
	if bidirectional {
		back := model.Synapse{
			ID: ids.New(), SourceID: tgt, TargetID: src, Type: typ, Weight: clamp01(weight),
			Metadata: model.SynapseMetadata{CreatedAt: now, UpdatedAt: now, Bidirectional: true},
		}
		if err := m.Synapses.Put(ctx, back); err != nil {
			return nil, err
		}
		if err := m.appendAdjacency(ctx, tgt, src, back.ID); err != nil {
			return nil, err
		}
		out = append(out, back)
	}
	return out, nil
}

func (m *Manager) appendAdjacency(ctx context.Context, src, tgt, synID string) error {
	srcN, err := m.Neurons.Get(ctx, src)
	if err == nil {
		srcN.OutgoingSynapses = append(srcN.OutgoingSynapses, synID)
		if err := m.Neurons.Put(ctx, srcN); err != nil {
			return err
		}
	}
	tgtN, err := m.Neurons.Get(ctx, tgt)
	if err == nil {
		tgtN.IncomingSynapses = append(tgtN.IncomingSynapses, synID)
		if err := m.Neurons.Put(ctx, tgtN); err != nil {
			return err
		}
	}
	return nil
}

// DeleteNeuron cascades: deletes every synapse touching id in either
// direction, tombstones the HNSW node, and removes the neuron record.
func (m *Manager) DeleteNeuron(ctx context.Context, id string) error {
	n, err := m.Neurons.Get(ctx, id)
	if err != nil {
		return err
	}

	out, err := m.Synapses.Outgoing(ctx, id)
	if err != nil {
		return err
	}
	in, err := m.Synapses.Incoming(ctx, id)
	if err != nil {
		return err
	}
	for _, s := range out {
		if err := m.Synapses.Delete(ctx, s); err != nil {
			return err
		}
	}
	for _, s := range in {
		if err := m.Synapses.Delete(ctx, s); err != nil {
			return err
		}
	}

	m.Index.Remove(id)
	m.keywords.Remove(id)
	return m.Neurons.Delete(ctx, n)
}

// SimilarNeuron pairs a stored neuron with its retrieval score.
type SimilarNeuron struct {
	model.Neuron
	Score float64
}

// FindSimilar runs an HNSW search for embedding and hydrates full Neuron
// records for the hits, ordered by score descending.
func (m *Manager) FindSimilar(ctx context.Context, embedding []float32, k int, ef int) ([]SimilarNeuron, error) {
	hits, err := m.Index.Search(embedding, k, ef)
	if err != nil {
		return nil, err
	}
	out := make([]SimilarNeuron, 0, len(hits))
	for _, h := range hits {
		n, err := m.Neurons.Get(ctx, h.ID)
		if err != nil {
			continue // referential integrity repaired by delete cascade; tolerate races
		}
		out = append(out, SimilarNeuron{Neuron: n, Score: h.Score})
	}
	return out, nil
}

// PatternComplete refines query toward the embedding-space attractor
// basin its nearest neighbors define (Hopfield-style completion). It
// performs `iterations` rounds of: fetch candidateCount nearest neighbors,
// take their score-weighted mean, and blend it into the query with
// weight alpha. Skips gracefully (returns query unchanged) when the index
// is empty.
func (m *Manager) PatternComplete(ctx context.Context, query []float32, candidateCount, iterations int, alpha float64) ([]float32, error) {
	q := vector.Normalize(query)
	if m.Index.Size() == 0 {
		return q, nil
	}

	for i := 0; i < iterations; i++ {
		candidates, err := m.FindSimilar(ctx, q, candidateCount, 0)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}

		vectors := make([][]float32, len(candidates))
		weights := make([]float64, len(candidates))
		for j, c := range candidates {
			vectors[j] = c.Embedding
			weights[j] = c.Score
		}
		mean := vector.WeightedMean(vectors, weights, len(q))

		blended := make([]float32, len(q))
		for d := range blended {
			blended[d] = float32(alpha)*q[d] + float32(1-alpha)*mean[d]
		}
		q = vector.Normalize(blended)
	}
	return q, nil
}

// UpdateNeuronEmbedding replaces n's vector in the store and HNSW (remove
// + reinsert under the same id, since HNSW has no in-place update).
func (m *Manager) UpdateNeuronEmbedding(ctx context.Context, id string, v []float32) error {
	n, err := m.Neurons.Get(ctx, id)
	if err != nil {
		return err
	}
	n.Embedding = vector.Normalize(v)
	n.Metadata.UpdatedAt = time.Now().UTC()

	if err := m.Neurons.Put(ctx, n); err != nil {
		return err
	}
	m.Index.Remove(id)
	return m.Index.Add(id, n.Embedding)
}

// PruneSynapsesOptions bounds PruneSynapses.
type PruneSynapsesOptions struct {
	MinWeight      float64
	MinActivations int64
	DryRun         bool
}

// PruneSynapses deletes every synapse whose weight AND activation count
// both fall below the configured minimums; DryRun reports what would be
// deleted without mutating storage.
func (m *Manager) PruneSynapses(ctx context.Context, opts PruneSynapsesOptions) ([]model.Synapse, error) {
	var toPrune []model.Synapse
	err := m.Synapses.All(ctx, func(s model.Synapse) bool {
		if s.Weight < opts.MinWeight && s.Metadata.ActivationCount < opts.MinActivations {
			toPrune = append(toPrune, s)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return toPrune, nil
	}
	for _, s := range toPrune {
		if err := m.Synapses.Delete(ctx, s); err != nil {
			return nil, err
		}
	}
	return toPrune, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
