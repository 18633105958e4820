package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/provider"
	"github.com/becomeliminal/nim-memory/rpc"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	ctx := context.Background()

	a := &app{}
	rootCmd := NewRootCmd(version, a.open)
	err := fang.Execute(ctx, rootCmd)
	if cerr := a.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "mem: close: %v\n", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}

// storeFunc resolves the store a command operates on.
type storeFunc func(cmd *cobra.Command) (memory.Store, error)

// app opens the store once per invocation, either locally through the
// configured provider or against a daemon given by --remote.
type app struct {
	mu     sync.Mutex
	store  memory.Store
	closer func() error
}

func (a *app) open(cmd *cobra.Command) (memory.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.store != nil {
		return a.store, nil
	}

	if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
		client, err := rpc.Dial(remote)
		if err != nil {
			return nil, err
		}
		a.store, a.closer = client, client.Close
		return client, nil
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level, JSON: cfg.Log.JSON, Writer: cmd.ErrOrStderr()})

	p := provider.New(cfg.Memory, logger)
	store, err := p.Get()
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	a.store, a.closer = store, p.Close
	return store, nil
}

func (a *app) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer == nil {
		return nil
	}
	err := a.closer()
	a.store, a.closer = nil, nil
	return err
}
