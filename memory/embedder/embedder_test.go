package embedder_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder"
	"github.com/becomeliminal/nim-memory/memory/embedder/cache"
	"github.com/becomeliminal/nim-memory/memory/embedder/hashing"
)

func TestNew_DefaultIsHashing(t *testing.T) {
	e, err := embedder.New(config.Embedder{}, nil)
	require.NoError(t, err)

	h, ok := e.(*hashing.Embedder)
	require.True(t, ok)
	assert.Equal(t, hashing.DefaultDimensions, h.Dimensions())

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, hashing.DefaultDimensions)
}

func TestNew_Cached(t *testing.T) {
	e, err := embedder.New(config.Embedder{Provider: "hash", Dimensions: 16, CacheSize: 8}, nil)
	require.NoError(t, err)

	_, ok := e.(*cache.Embedder)
	assert.True(t, ok)

	c, ok := e.(io.Closer)
	require.True(t, ok)
	assert.NoError(t, c.Close())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Embedder
		setting string
	}{
		{"unknown provider", config.Embedder{Provider: "word2vec"}, "EMBEDDER"},
		{"openai without key", config.Embedder{Provider: "openai"}, "OPENAI_API_KEY"},
		{"onnx without model", config.Embedder{Provider: "onnx"}, "ONNX_MODEL_PATH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := embedder.New(tt.cfg, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, memory.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.setting)
		})
	}
}

func TestNew_OllamaNeedsNoCredentials(t *testing.T) {
	e, err := embedder.New(config.Embedder{Provider: "ollama", BaseURL: "http://127.0.0.1:1/api"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, e)
}
