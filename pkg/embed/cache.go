package embed

import (
	"context"
	"crypto/sha256"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes Embed/EmbedBatch results keyed by SHA-256 of
// the input text, via the ecosystem's typed generic LRU — replacing the
// teacher's hand-rolled container/list cache (pkg/embed/cached_embedder.go
// in the original tree) with github.com/hashicorp/golang-lru/v2.
type CachedEmbedder struct {
	base  Embedder
	cache *lru.Cache[[32]byte, []float32]
}

// NewCached wraps base with an LRU cache of the given capacity.
func NewCached(base Embedder, size int) *CachedEmbedder {
	cache, err := lru.New[[32]byte, []float32](size)
	if err != nil {
		// Only returned for size <= 0; a programmer error, not a runtime
		// condition callers should need to handle.
		panic(err)
	}
	return &CachedEmbedder{base: base, cache: cache}
}

func cacheKey(text string) [32]byte {
	return sha256.Sum256([]byte(text))
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.base.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var misses []string
	var missIdx []int

	for i, text := range texts {
		if v, ok := c.cache.Get(cacheKey(text)); ok {
			out[i] = v
			continue
		}
		misses = append(misses, text)
		missIdx = append(missIdx, i)
	}

	if len(misses) == 0 {
		return out, nil
	}

	embedded, err := c.base.EmbedBatch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = embedded[j]
		c.cache.Add(cacheKey(misses[j]), embedded[j])
	}
	return out, nil
}

func (c *CachedEmbedder) Dimensions() int { return c.base.Dimensions() }
func (c *CachedEmbedder) Model() string   { return c.base.Model() }

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// Clear empties the cache.
func (c *CachedEmbedder) Clear() { c.cache.Purge() }
