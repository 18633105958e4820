// Package provider owns the process's single memory backend handle.
package provider

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/embedder"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/memory/store/supermemory"
)

// Provider builds the configured Store on first use and hands the same
// instance to every caller. A construction failure is also remembered, so
// a misconfigured process keeps reporting the same ConfigError.
type Provider struct {
	cfg config.Memory
	log *slog.Logger

	once     sync.Once
	store    memory.Store
	embedder memory.Embedder
	err      error
}

func New(cfg config.Memory, logger *slog.Logger) *Provider {
	return &Provider{cfg: cfg, log: logging.OrDiscard(logger)}
}

// Get returns the shared store.
func (p *Provider) Get() (memory.Store, error) {
	p.once.Do(func() {
		p.store, p.err = p.open()
		if p.err != nil {
			p.log.Error("memory backend unavailable", "backend", p.cfg.Backend, "error", p.err)
		}
	})
	return p.store, p.err
}

func (p *Provider) open() (memory.Store, error) {
	switch p.cfg.Backend {
	case "", config.BackendChromem:
		e, err := embedder.New(p.cfg.Embedder, p.log)
		if err != nil {
			return nil, err
		}
		s, err := chromem.Open(chromem.Config{
			Path:       p.cfg.Path,
			Collection: p.cfg.Collection,
		}, e, chromem.WithLogger(p.log))
		if err != nil {
			_ = closeEmbedder(e)
			return nil, err
		}
		p.embedder = e
		return s, nil

	case config.BackendSupermemory:
		s, err := supermemory.New(supermemory.Config{
			APIKey:  p.cfg.Supermemory.APIKey,
			BaseURL: p.cfg.Supermemory.BaseURL,
		}, supermemory.WithLogger(p.log))
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, &memory.ConfigError{
			Setting: "MEMORY_BACKEND",
			Reason:  fmt.Sprintf("unknown backend %q", p.cfg.Backend),
		}
	}
}

// Close releases the store and embedder if they were opened.
func (p *Provider) Close() error {
	var err error
	if p.store != nil {
		err = p.store.Close()
	}
	if p.embedder != nil {
		if cerr := closeEmbedder(p.embedder); err == nil {
			err = cerr
		}
	}
	return err
}

func closeEmbedder(e memory.Embedder) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
