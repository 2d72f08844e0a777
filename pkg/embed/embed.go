// Package embed defines the text-to-embedding capability this store
// consumes via a thin interface (spec.md §1 treats the embedding provider
// as an external collaborator injected by the caller). It ships an
// HTTP-backed provider in the teacher's Ollama-client style plus a
// deterministic hashed fallback for tests and offline operation, both
// wrapped in an LRU-cached decorator.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nmtsys/memstore/pkg/vector"
)

// Embedder turns text into a unit-norm vector of a fixed dimension. All
// implementations in this package return normalized embeddings; callers
// must not assume a provider-external Embedder does the same.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// Config configures the HTTP embedding provider.
type Config struct {
	APIURL     string
	APIPath    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// DefaultConfig targets a local Ollama-compatible embeddings endpoint at
// 384 dimensions, the store's default embedding width (spec.md §1).
func DefaultConfig() Config {
	return Config{
		APIURL:     "http://localhost:11434",
		APIPath:    "/api/embeddings",
		Model:      "nomic-embed-text",
		Dimensions: 384,
		Timeout:    30 * time.Second,
	}
}

// HTTPEmbedder calls an Ollama-shaped embeddings endpoint: POST
// {model, prompt} -> {embedding}. Returned vectors are normalized before
// being handed back, since the store's invariant requires every stored
// embedding be unit-norm (spec.md §3) regardless of what the provider did.
type HTTPEmbedder struct {
	config Config
	client *http.Client
}

// NewHTTP returns an HTTPEmbedder for cfg.
func NewHTTP(cfg Config) *HTTPEmbedder {
	return &HTTPEmbedder{config: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates a normalized embedding for text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.config.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embed: marshaling request: %w", err)
	}

	url := e.config.APIURL + e.config.APIPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embed: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed: provider returned %d: %s", resp.StatusCode, string(b))
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embed: decoding response: %w", err)
	}
	if len(out.Embedding) != e.config.Dimensions {
		return nil, fmt.Errorf("embed: provider returned %d dimensions, want %d", len(out.Embedding), e.config.Dimensions)
	}
	return vector.Normalize(out.Embedding), nil
}

// EmbedBatch embeds each text in sequence; the Ollama-shaped API this
// provider targets has no native batch endpoint.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed: batch item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *HTTPEmbedder) Dimensions() int { return e.config.Dimensions }
func (e *HTTPEmbedder) Model() string   { return e.config.Model }

// HashedEmbedder deterministically derives a unit-norm vector from
// SHA3-256(text) expanded to the configured dimension. It has no semantic
// content whatsoever — equal only up to exact text match — but is useful
// for tests and as an offline fallback so ingestion never blocks on a
// provider being reachable.
type HashedEmbedder struct {
	dims int
}

// NewHashed returns a HashedEmbedder producing dims-dimensional vectors.
func NewHashed(dims int) *HashedEmbedder {
	return &HashedEmbedder{dims: dims}
}

func (e *HashedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, e.dims)
	seed := sha3.Sum256([]byte(text))
	for i := range v {
		// Re-hash the seed with the output index folded in so dims beyond
		// 32 bytes' worth of seed bits still vary.
		block := sha3.Sum256(append(append([]byte(nil), seed[:]...), byte(i), byte(i>>8)))
		v[i] = float32(int8(block[0])) / 128.0
	}
	return vector.Normalize(v), nil
}

func (e *HashedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *HashedEmbedder) Dimensions() int { return e.dims }
func (e *HashedEmbedder) Model() string   { return "hashed-fallback" }

// FallbackEmbedder tries primary first and falls back to secondary on
// error, so a provider outage degrades ingestion to content-addressed
// (non-semantic) embeddings rather than failing it outright.
type FallbackEmbedder struct {
	primary   Embedder
	secondary Embedder
}

// NewFallback returns a FallbackEmbedder.
func NewFallback(primary, secondary Embedder) *FallbackEmbedder {
	return &FallbackEmbedder{primary: primary, secondary: secondary}
}

func (e *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.primary.Embed(ctx, text)
	if err == nil {
		return v, nil
	}
	return e.secondary.Embed(ctx, text)
}

func (e *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := e.primary.EmbedBatch(ctx, texts)
	if err == nil {
		return v, nil
	}
	return e.secondary.EmbedBatch(ctx, texts)
}

func (e *FallbackEmbedder) Dimensions() int { return e.primary.Dimensions() }
func (e *FallbackEmbedder) Model() string   { return e.primary.Model() }
