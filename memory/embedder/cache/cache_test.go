package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder/cache"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func TestEmbedder_CachesVectors(t *testing.T) {
	inner := &countingEmbedder{}
	e, err := cache.New(inner, 100)
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	first, err := e.Embed(ctx, "dark mode")
	require.NoError(t, err)
	e.Wait()

	second, err := e.Embed(ctx, "dark mode")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())

	// Mutating a returned vector must not poison the cache.
	second[0] = 42
	third, _ := e.Embed(ctx, "dark mode")
	assert.Equal(t, first, third)
}

func TestEmbedder_DoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("model offline")}
	e, err := cache.New(inner, 10)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "x")
	require.Error(t, err)
	e.Wait()
	_, err = e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	_, err := cache.New(memory.EmbedderFunc(nil), 0)
	require.Error(t, err)
}
