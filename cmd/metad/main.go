// Command metad runs one shard's table metadata core: it loads config,
// opens the action log under meta.root_dir, replays it into a fresh
// Registry, and serves read-only introspection over HTTP until signaled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tsdbmeta/internal/config"
	"tsdbmeta/internal/httpapi"
	"tsdbmeta/pkg/meta"
	"tsdbmeta/pkg/persistence"
)

func main() {
	configPath := flag.String("config", "metad.yaml", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.InitLogger(&cfg)

	registry := meta.New(meta.Config{
		ShardID:            cfg.Meta.ShardID,
		MaxTables:          cfg.Meta.MaxTables,
		MaxSchemasPerTable: cfg.Meta.MaxSchemasPerTable,
		MaxNameLen:         cfg.Meta.MaxNameLen,
	})

	driver, err := persistence.Open(cfg.Meta.RootDir, registry, cfg.Meta.MaxLogSegmentBytes)
	if err != nil {
		slog.Error("failed to open persistence driver", "error", err)
		os.Exit(1)
	}

	slog.Info("registry restored",
		"shard_id", registry.ShardID(),
		"n_tables", registry.NTables(),
		"n_supers", registry.SuperCount(),
	)

	server := httpapi.NewServer(registry, cfg.Server.Address)
	if err := server.Start(); err != nil {
		slog.Error("failed to start httpapi server", "error", err)
		os.Exit(1)
	}

	slog.Info("metad is running", "addr", cfg.Server.Address)
	<-ctx.Done()

	slog.Info("metad shutting down")
	if err := server.Stop(); err != nil {
		slog.Error("error stopping httpapi server", "error", err)
	}
	if err := driver.Close(); err != nil {
		slog.Error("error closing persistence driver", "error", err)
	}
}
