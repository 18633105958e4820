// Package cache memoizes embeddings in front of another Embedder.
//
// Only text-to-vector results are cached. Search results are never cached:
// every Search still queries the backend.
package cache

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-memory/memory"
)

// Embedder wraps an Embedder with a bounded ristretto cache keyed by text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New creates a cache holding at most maxEntries vectors.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache: maxEntries must be positive (got %d)", maxEntries)
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: create ristretto cache: %w", err)
	}

	return &Embedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text or computes and caches it.
// Callers get their own copy of the vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return slices.Clone(v.([]float32)), nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e.cache.Set(text, slices.Clone(vec), 1)
	return vec, nil
}

// Wait blocks until pending cache writes are applied.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close stops the cache's background goroutines and closes the wrapped
// embedder when it holds resources.
func (e *Embedder) Close() error {
	e.cache.Close()
	if c, ok := e.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
