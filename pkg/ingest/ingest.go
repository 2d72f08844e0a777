// Package ingest turns raw text into committed, embedded, graph-linked
// memory: chunk it, build a Merkle commitment over the chunk sequence,
// embed it, and hand the result to the neuron graph manager (spec.md §4.1,
// §6's ingestText/startIngestionJob operations).
package ingest

import (
	"context"
	"fmt"

	"github.com/nmtsys/memstore/pkg/chunk"
	"github.com/nmtsys/memstore/pkg/embed"
	"github.com/nmtsys/memstore/pkg/errs"
	"github.com/nmtsys/memstore/pkg/graph"
	"github.com/nmtsys/memstore/pkg/merkle"
	"github.com/nmtsys/memstore/pkg/model"
	"github.com/nmtsys/memstore/pkg/store"
)

// Options configures one ingestText call.
type Options struct {
	SourceType          string
	Tags                []string
	UseCDC              bool // false selects fixed-size chunking
	ChunkSize           int  // fixed-size mode only; 0 selects chunk.DefaultFixedSize
	AutoConnect         bool
	ConnectionThreshold float64
	Provenance          *model.Provenance
}

// Pipeline wires chunking + Merkle commitment + embedding + the graph
// manager into one ingestText operation.
type Pipeline struct {
	Chunks   *store.ChunkStore
	Graph    *graph.Manager
	Embedder embed.Embedder
}

// New returns a Pipeline.
func New(chunks *store.ChunkStore, g *graph.Manager, embedder embed.Embedder) *Pipeline {
	return &Pipeline{Chunks: chunks, Graph: g, Embedder: embedder}
}

// IngestText chunks text, persists the chunks (deduplicated by hash),
// builds a Merkle tree over the ordered chunk hashes, embeds the full text,
// and creates a Neuron committing to all of it.
func (p *Pipeline) IngestText(ctx context.Context, text string, opts Options) (model.Neuron, error) {
	if text == "" {
		return model.Neuron{}, fmt.Errorf("%w: empty text", errs.InvalidInput)
	}

	data := []byte(text)
	var chunks []chunk.Chunk
	if opts.UseCDC {
		chunks = chunk.CDC(data, chunk.CDCOptions{})
	} else {
		chunks = chunk.FixedSize(data, opts.ChunkSize)
	}

	leaves := make([]merkle.Digest, len(chunks))
	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		leaves[i] = c.Hash
		hashes[i] = string(c.Hash)
	}
	tree := merkle.Build(leaves)

	if err := p.Chunks.PutBatch(ctx, chunks); err != nil {
		return model.Neuron{}, fmt.Errorf("ingest: storing chunks: %w", err)
	}

	embedding, err := p.Embedder.Embed(ctx, text)
	if err != nil {
		return model.Neuron{}, fmt.Errorf("ingest: embedding text: %w", err)
	}

	input := ingestNeuronInput(text, hashes, string(tree.Root()), opts)
	input.Embedding = embedding
	return p.Graph.CreateNeuron(ctx, input)
}

// ingestNeuronInput builds the CreateNeuronInput shared by the synchronous
// IngestText path and the asynchronous job loop (job.go), minus the
// embedding (computed separately by each caller once chunking/cancellation
// has been resolved).
func ingestNeuronInput(text string, hashes []string, merkleRoot string, opts Options) graph.CreateNeuronInput {
	return graph.CreateNeuronInput{
		Text:                text,
		ChunkHashes:         hashes,
		MerkleRoot:          merkleRoot,
		SourceType:          opts.SourceType,
		Tags:                opts.Tags,
		Class:               model.NeuronFact,
		Provenance:          opts.Provenance,
		AutoConnect:         opts.AutoConnect,
		ConnectionThreshold: opts.ConnectionThreshold,
	}
}
