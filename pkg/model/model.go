// Package model holds the domain types shared by the persistent stores, the
// neuron graph manager, the attractor planner, and the sync kernel: Neuron,
// Synapse, Attractor, and their metadata (spec.md §3).
package model

import "time"

// SynapseType enumerates the directed-edge kinds spec.md §3 defines.
type SynapseType string

const (
	SynapseSemantic     SynapseType = "SEMANTIC"
	SynapseTemporal     SynapseType = "TEMPORAL"
	SynapseCausal       SynapseType = "CAUSAL"
	SynapseAssociative  SynapseType = "ASSOCIATIVE"
	SynapseHierarchical SynapseType = "HIERARCHICAL"
	SynapseDuplicate    SynapseType = "DUPLICATE"
	SynapseInhibitory   SynapseType = "INHIBITORY"
)

// NeuronClass distinguishes a fact (no expiry) from a transient memory with
// a TTL, per the optional `type` field on Neuron metadata.
type NeuronClass string

const (
	NeuronFact      NeuronClass = "fact"
	NeuronTransient NeuronClass = "transient"
)

// Provenance carries the round-trip schema metadata for a neuron imported
// from an external relational row, so re-export can reconstruct the source
// shape. All fields are optional; a neuron created from raw text leaves this
// nil.
type Provenance struct {
	SourcePath    string   `msgpack:"source_path,omitempty"`
	SourceTable   string   `msgpack:"source_table,omitempty"`
	Columns       []string `msgpack:"columns,omitempty"`
	ForeignKeys   []string `msgpack:"foreign_keys,omitempty"`
	Indexes       []string `msgpack:"indexes,omitempty"`
	CheckContract []string `msgpack:"check_constraints,omitempty"`
	Triggers      []string `msgpack:"triggers,omitempty"`
	Engine        string   `msgpack:"engine,omitempty"`
	Charset       string   `msgpack:"charset,omitempty"`
}

// NeuronMetadata is the mutable bookkeeping attached to a Neuron: access
// history, tagging, feedback-driven drift accounting, and optional TTL.
type NeuronMetadata struct {
	CreatedAt      time.Time      `msgpack:"created_at"`
	UpdatedAt      time.Time      `msgpack:"updated_at"`
	LastAccessedAt time.Time      `msgpack:"last_accessed_at"`
	AccessCount    int64          `msgpack:"access_count"`
	SourceType     string         `msgpack:"source_type,omitempty"`
	Tags           []string       `msgpack:"tags,omitempty"`
	Class          NeuronClass    `msgpack:"class,omitempty"`
	TTL            *time.Duration `msgpack:"ttl,omitempty"`
	FeedbackCount  int64          `msgpack:"feedback_count"`
	EmbeddingDrift float64        `msgpack:"embedding_drift"`
	Provenance     *Provenance    `msgpack:"provenance,omitempty"`
}

// Neuron is one unit of semantic memory: a unit-norm embedding, the ordered
// chunk hashes it was built from, the Merkle root committing that sequence,
// and its graph adjacency.
type Neuron struct {
	ID               string         `msgpack:"id"`
	Embedding        []float32      `msgpack:"-"` // stored separately, raw f32 LE; see pkg/store
	ChunkHashes      []string       `msgpack:"chunk_hashes"`
	MerkleRoot       string         `msgpack:"merkle_root"`
	Metadata         NeuronMetadata `msgpack:"metadata"`
	OutgoingSynapses []string       `msgpack:"outgoing_synapses,omitempty"`
	IncomingSynapses []string       `msgpack:"incoming_synapses,omitempty"`
}

// SynapseMetadata tracks reinforcement history for one edge.
type SynapseMetadata struct {
	CreatedAt       time.Time `msgpack:"created_at"`
	UpdatedAt       time.Time `msgpack:"updated_at"`
	ActivationCount int64     `msgpack:"activation_count"`
	LastActivated   time.Time `msgpack:"last_activated"`
	Bidirectional   bool      `msgpack:"bidirectional"`
}

// Synapse is one directed, weighted graph edge. A bidirectional connect
// call materializes two independent Synapse records (spec.md §3), not one
// record flagged both ways.
type Synapse struct {
	ID       string          `msgpack:"id"`
	SourceID string          `msgpack:"source_id"`
	TargetID string          `msgpack:"target_id"`
	Type     SynapseType     `msgpack:"type"`
	Weight   float64         `msgpack:"weight"`
	Metadata SynapseMetadata `msgpack:"metadata"`
}

// Attractor defines a goal region in embedding space that the path planner
// (pkg/attractor) navigates toward.
type Attractor struct {
	ID            string     `msgpack:"id"`
	Name          string     `msgpack:"name"`
	Description   string     `msgpack:"description,omitempty"`
	Embedding     []float32  `msgpack:"embedding"`
	Strength      float64    `msgpack:"strength"`
	Probability   float64    `msgpack:"probability"`
	Priority      int        `msgpack:"priority"`
	Deadline      *time.Time `msgpack:"deadline,omitempty"`
	Prerequisites []string   `msgpack:"prerequisites,omitempty"`
	CreatedAt     time.Time  `msgpack:"created_at"`
	UpdatedAt     time.Time  `msgpack:"updated_at"`
	Activations   int64      `msgpack:"activations"`
}
