package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/codeblock-sh/codeblock/internal/config"
	"github.com/codeblock-sh/codeblock/internal/logging"
	"github.com/codeblock-sh/codeblock/internal/server"
)

func main() {
	port := flag.String("port", "", "listen port (overrides PORT)")
	snapshotPath := flag.String("snapshot", "", "workspace snapshot path (overrides SNAPSHOT_PATH)")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *snapshotPath != "" {
		cfg.Snapshot.Path = *snapshotPath
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
