package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nmtsys/memstore/pkg/embed"
	"github.com/nmtsys/memstore/pkg/graph"
	"github.com/nmtsys/memstore/pkg/hnsw"
	"github.com/nmtsys/memstore/pkg/kv"
	"github.com/nmtsys/memstore/pkg/store"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	memKV := kv.NewMemoryStore()
	chunks := store.NewChunkStore(memKV)
	neurons := store.NewNeuronStore(memKV)
	synapses := store.NewSynapseStore(memKV)
	embedder := embed.NewHashed(16)
	idx := hnsw.New(16, hnsw.DefaultConfig())
	g := graph.New(neurons, synapses, idx, embedder, nil)
	return New(chunks, g, embedder)
}

func TestIngestTextFixedSizeProducesCommittedNeuron(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	n, err := p.IngestText(ctx, "hello world, this is a test document", Options{ChunkSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	if n.MerkleRoot == "" {
		t.Fatal("expected non-empty merkle root")
	}
	if len(n.ChunkHashes) == 0 {
		t.Fatal("expected chunk hashes recorded")
	}
	if !p.Graph.Index.Has(n.ID) {
		t.Fatal("expected neuron embedded into the index")
	}
}

func TestIngestTextCDCProducesCommittedNeuron(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 500)
	n, err := p.IngestText(ctx, text, Options{UseCDC: true})
	if err != nil {
		t.Fatal(err)
	}
	if n.MerkleRoot == "" {
		t.Fatal("expected non-empty merkle root")
	}
}

func TestIngestTextRejectsEmptyInput(t *testing.T) {
	p := newTestPipeline(t)
	if _, err := p.IngestText(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestStartIngestionJobCompletesAndIsRetrievable(t *testing.T) {
	p := newTestPipeline(t)
	jm := NewJobManager(p)

	id := jm.StartIngestionJob(context.Background(), "a short document", Options{ChunkSize: 4})
	deadline := time.Now().Add(2 * time.Second)
	var status JobStatus
	for time.Now().Before(deadline) {
		status, _ = jm.Job(id).Status()
		if status == JobCompleted || status == JobFailed {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if status != JobCompleted {
		t.Fatalf("expected job to complete, got status %s", status)
	}
	if jm.Job(id).Neuron().MerkleRoot == "" {
		t.Fatal("expected completed job to carry the resulting neuron")
	}
}

func TestCancelJobStopsBeforeCompletion(t *testing.T) {
	p := newTestPipeline(t)
	jm := NewJobManager(p)

	id := jm.StartIngestionJob(context.Background(), strings.Repeat("x", 100000), Options{ChunkSize: 4})
	jm.CancelJob(id)

	deadline := time.Now().Add(2 * time.Second)
	var status JobStatus
	for time.Now().Before(deadline) {
		status, _ = jm.Job(id).Status()
		if status == JobCompleted || status == JobFailed || status == JobCancelled {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if status != JobCancelled && status != JobCompleted {
		t.Fatalf("expected job cancelled (or to have raced to completion first), got %s", status)
	}
}
