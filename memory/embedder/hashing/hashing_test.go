package hashing_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory/embedder/hashing"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func norm(v []float32) float64 {
	return math.Sqrt(cosine(v, v))
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := hashing.New(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "User prefers dark mode")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "User prefers dark mode")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, hashing.DefaultDimensions)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestEmbedder_SharedWordsScoreHigher(t *testing.T) {
	e := hashing.New(256)
	ctx := context.Background()

	stored, _ := e.Embed(ctx, "User prefers dark mode")
	related, _ := e.Embed(ctx, "user preferences")
	unrelated, _ := e.Embed(ctx, "quarterly budget allocation")

	assert.Greater(t, cosine(stored, related), cosine(stored, unrelated))
}

func TestEmbedder_PunctuationOnly(t *testing.T) {
	e := hashing.New(32)

	vec, err := e.Embed(context.Background(), "?!...")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(vec), 1e-5)
	assert.Equal(t, 32, e.Dimensions())
}

func TestEmbedder_CancellingTokens(t *testing.T) {
	e := hashing.New(0)
	ctx := context.Background()

	for _, text := range []string{"a gb", "a a gb gb", "x"} {
		vec, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, norm(vec), 1e-5, "text %q", text)
	}
}

func TestEmbedder_ZeroDimensionsFallBackToDefault(t *testing.T) {
	assert.Equal(t, hashing.DefaultDimensions, hashing.New(-3).Dimensions())
}
