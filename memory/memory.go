package memory

import (
	"context"
)

// Memory is one stored unit of text as returned by List.
type Memory struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result is a single Search hit.
//
// ID is empty when the backend does not surface identifiers on search.
// Score is nil when the backend produced no relevance figure; it is never
// defaulted to 0 or 1.
type Result struct {
	ID       string         `json:"id,omitempty"`
	Content  string         `json:"content"`
	Score    *float64       `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Receipt is returned by Store.
//
// Message is a human-readable confirmation for display only. ID holds the
// full identifier when the backend knows it at store time.
type Receipt struct {
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Store is the semantic memory contract.
// Implementations: chromem.Store (self-hosted), supermemory.Store (remote),
// rpc.Client (a Store served by another process).
type Store interface {
	// Store saves content with optional tags and metadata.
	// Empty content is rejected with ErrInvalidInput before the backend is contacted.
	Store(ctx context.Context, content string, opts ...Option) (Receipt, error)

	// Search returns up to the requested limit (default 10) memories ranked
	// by similarity to query, most similar first. A limit of 0 yields an
	// empty slice.
	Search(ctx context.Context, query string, opts ...Option) ([]Result, error)

	// List enumerates memories in backend order without ranking (default limit 20).
	List(ctx context.Context, opts ...Option) ([]Memory, error)

	// Delete removes a memory. It never returns an error: any failure,
	// including an unknown id, is reported as false.
	Delete(ctx context.Context, id string) bool

	// Close releases backend resources.
	Close() error
}

// Embedder converts text to embedding vectors.
// Implementations: hashing.Embedder (offline), openai.Embedder,
// onnx.Embedder, cache.Embedder (wrapper).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a plain function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
