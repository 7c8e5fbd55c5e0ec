package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alxayo/opcua-server/internal/logger"
	"github.com/alxayo/opcua-server/internal/metrics"
	srv "github.com/alxayo/opcua-server/server"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		// The flag package has printed its own parse errors and usage;
		// validation errors from parseFlags exit without a message.
		os.Exit(2)
	}
	if cfg.showVersion {
		fmt.Println(version)
		return
	}

	logger.Init()
	if err := logger.SetLevel(cfg.logLevel); err != nil {
		fmt.Printf("Warning: invalid log level %q, using default\n", cfg.logLevel)
	}
	log := logger.Logger().With("component", "cli")

	met := metrics.New(prometheus.DefaultRegisterer)
	server, err := srv.New(cfg.serverConfig(), met)
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() { done <- server.Run(ctx) }()
	log.Info("server started", "version", version)

	select {
	case err := <-done:
		if err != nil {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")
	server.Abort()

	select {
	case err := <-done:
		if err != nil {
			log.Error("server stop error", "error", err)
			os.Exit(1)
		}
		log.Info("server stopped cleanly")
	case <-time.After(30 * time.Second):
		log.Error("forced exit after timeout")
		os.Exit(1)
	}
}
