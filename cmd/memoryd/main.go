// Command memoryd serves the memory operations over HTTP, a websocket and,
// when GRPC_ADDR is set, gRPC.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory/provider"
	"github.com/becomeliminal/nim-memory/rpc"
	"github.com/becomeliminal/nim-memory/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var path string
	if len(args) > 0 {
		path = args[0]
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if cfg.Debug {
		level = "debug"
	}
	logger := logging.New(logging.Options{Level: level, JSON: cfg.Log.JSON})
	logger.Info("starting up",
		"app", cfg.AppName, "version", cfg.AppVersion,
		"backend", cfg.Memory.Backend, "http_addr", cfg.HTTPAddr, "grpc_addr", cfg.GRPCAddr)

	stores := provider.New(cfg.Memory, logger)
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("close memory backend", "error", err)
		}
	}()

	// Configuration problems are reported per request; the health check
	// stays up so the process can be inspected.
	if _, err := stores.Get(); err != nil {
		logger.Warn("memory backend unavailable", "error", err)
	}

	srv, err := server.New(server.Config{
		Stores:         stores,
		AppName:        cfg.AppName,
		AppVersion:     cfg.AppVersion,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	running := 1
	go func() { errc <- srv.Run(ctx, cfg.HTTPAddr) }()

	if cfg.GRPCAddr != "" {
		ln, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			cancel()
			<-errc
			return fmt.Errorf("listen grpc: %w", err)
		}
		running++
		go func() { errc <- rpc.NewServer(stores, logger).Serve(ctx, ln) }()
	}

	var firstErr error
	for range running {
		if err := <-errc; err != nil && firstErr == nil {
			firstErr = err
			logger.Error("listener failed", "error", err)
		}
		// Either listener stopping takes the other down with it.
		cancel()
	}

	logger.Info("shutting down", slog.Bool("clean", firstErr == nil))
	return firstErr
}
