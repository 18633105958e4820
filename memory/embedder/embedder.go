// Package embedder builds the configured memory.Embedder.
package embedder

import (
	"fmt"
	"log/slog"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cache"
	"github.com/becomeliminal/nim-memory/memory/embedder/hashing"
	"github.com/becomeliminal/nim-memory/memory/embedder/onnx"
	"github.com/becomeliminal/nim-memory/memory/embedder/openai"
)

const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"

	// DefaultOllamaModel is used when no model is configured for Ollama.
	DefaultOllamaModel = "nomic-embed-text"
)

// New returns the embedder selected by cfg.Provider, wrapped in a cache
// when cfg.CacheSize is positive. Embedders holding resources implement
// io.Closer.
func New(cfg config.Embedder, logger *slog.Logger) (memory.Embedder, error) {
	log := logging.OrDiscard(logger).With("component", "memory.embedder")

	var (
		e   memory.Embedder
		err error
	)
	switch cfg.Provider {
	case "", ProviderHash:
		e = hashing.New(cfg.Dimensions)
	case ProviderOpenAI:
		e, err = openai.New(openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
	case ProviderOllama:
		model := cfg.Model
		if model == "" {
			model = DefaultOllamaModel
		}
		// An empty base URL selects the local Ollama default.
		e = memory.EmbedderFunc(chromem.NewEmbeddingFuncOllama(model, cfg.BaseURL))
	case ProviderONNX:
		e, err = onnx.New(onnx.Config{
			ModelPath:     cfg.ONNX.ModelPath,
			TokenizerPath: cfg.ONNX.TokenizerPath,
			LibraryPath:   cfg.ONNX.LibraryPath,
			Dimensions:    cfg.Dimensions,
		})
	default:
		return nil, &memory.ConfigError{
			Setting: "EMBEDDER",
			Reason:  fmt.Sprintf("unknown provider %q", cfg.Provider),
		}
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		cached, err := cache.New(e, cfg.CacheSize)
		if err != nil {
			return nil, &memory.ConfigError{Setting: "EMBEDDER_CACHE_SIZE", Reason: err.Error()}
		}
		e = cached
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderHash
	}
	log.Info("embedder ready", "provider", provider, "model", cfg.Model, "cache_size", cfg.CacheSize)
	return e, nil
}
