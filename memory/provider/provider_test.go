package provider_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/provider"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/memory/store/supermemory"
)

func chromemConfig(t *testing.T) config.Memory {
	cfg := config.Default().Memory
	cfg.Path = filepath.Join(t.TempDir(), "nested", "memory")
	return cfg
}

func TestGet_ChromemCreatesDirectory(t *testing.T) {
	cfg := chromemConfig(t)
	p := provider.New(cfg, nil)
	t.Cleanup(func() { _ = p.Close() })

	s, err := p.Get()
	require.NoError(t, err)
	assert.IsType(t, &chromem.Store{}, s)

	info, err := os.Stat(cfg.Path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestGet_ReturnsSameInstance(t *testing.T) {
	p := provider.New(chromemConfig(t), nil)
	t.Cleanup(func() { _ = p.Close() })

	var wg sync.WaitGroup
	stores := make([]memory.Store, 8)
	for i := range stores {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Get()
			assert.NoError(t, err)
			stores[i] = s
		}()
	}
	wg.Wait()

	for _, s := range stores[1:] {
		assert.Same(t, stores[0], s)
	}

	_, err := stores[0].Store(context.Background(), "shared handle")
	require.NoError(t, err)
}

func TestGet_SupermemoryMissingKey(t *testing.T) {
	cfg := config.Default().Memory
	cfg.Backend = config.BackendSupermemory

	p := provider.New(cfg, nil)
	s, err := p.Get()
	require.Error(t, err)
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, memory.ErrConfiguration))
	assert.Contains(t, err.Error(), "SUPERMEMORY_API_KEY")

	// The failure is remembered.
	_, again := p.Get()
	assert.Same(t, err, again)
	assert.NoError(t, p.Close())
}

func TestGet_Supermemory(t *testing.T) {
	cfg := config.Default().Memory
	cfg.Backend = config.BackendSupermemory
	cfg.Supermemory.APIKey = "sm_test"

	p := provider.New(cfg, nil)
	s, err := p.Get()
	require.NoError(t, err)
	assert.IsType(t, &supermemory.Store{}, s)
	assert.NoError(t, p.Close())
}

func TestGet_UnknownBackend(t *testing.T) {
	cfg := config.Default().Memory
	cfg.Backend = "redis"

	_, err := provider.New(cfg, nil).Get()
	require.Error(t, err)
	assert.True(t, errors.Is(err, memory.ErrConfiguration))
	assert.Contains(t, err.Error(), "MEMORY_BACKEND")
}

func TestGet_BadEmbedder(t *testing.T) {
	cfg := chromemConfig(t)
	cfg.Embedder.Provider = "openai"

	_, err := provider.New(cfg, nil).Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}
