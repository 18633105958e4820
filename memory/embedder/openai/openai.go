// Package openai embeds text through an OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/becomeliminal/nim-memory/memory"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = string(openai.EmbeddingModelTextEmbedding3Small)

// Config configures the OpenAI embedder.
type Config struct {
	// APIKey is required.
	APIKey string

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string

	// Model is the embedding model name.
	Model string
}

// Embedder calls the embeddings endpoint once per text.
type Embedder struct {
	client *openai.Client
	model  string
}

// New creates an OpenAI embedder.
func New(cfg Config, opts ...option.RequestOption) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, &memory.ConfigError{Setting: "OPENAI_API_KEY"}
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)

	client := openai.NewClient(clientOpts...)
	return &Embedder{client: &client, model: cfg.Model}, nil
}

// Embed converts text to a unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: empty embedding response")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return memory.Normalize(vec), nil
}
