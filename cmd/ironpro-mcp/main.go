package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/meltforce/ironpro/internal/config"
	ironmcp "github.com/meltforce/ironpro/internal/mcp"
	"github.com/meltforce/ironpro/internal/models"
	"github.com/meltforce/ironpro/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to server config file (direct database access)")
	serverURL := flag.String("server", "", "IronPro server URL on the tailnet (remote mode)")
	trainer := flag.String("trainer", "", "trainer login the tools act for (direct mode)")
	flag.Parse()

	// stdout carries the MCP protocol, so logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(*configPath, *serverURL, *trainer, log); err != nil {
		log.Error("ironpro-mcp failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, serverURL, trainer string, log *slog.Logger) error {
	ctx := context.Background()

	switch {
	case serverURL != "":
		log.Info("remote mode", "server", serverURL)
		s := ironmcp.New(ironmcp.NewHTTPClient(serverURL), Version, nil, log)
		return server.ServeStdio(s)

	case configPath != "":
		if trainer == "" {
			return fmt.Errorf("-trainer is required with -config")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		loc, err := cfg.Ranking.Location()
		if err != nil {
			return err
		}
		db, err := storage.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting database: %w", err)
		}
		defer db.Close()

		p, err := db.GetProfileByLogin(ctx, trainer)
		if err != nil {
			return fmt.Errorf("resolving trainer %s: %w", trainer, err)
		}
		if p.Role != models.RoleTrainer {
			return fmt.Errorf("%s is not a trainer", trainer)
		}
		log.Info("direct mode", "trainer", p.Login)

		s := ironmcp.New(db, Version, loc, log)
		return server.ServeStdio(s, server.WithStdioContextFunc(func(ctx context.Context) context.Context {
			return ironmcp.WithTrainerID(ctx, p.ID)
		}))
	}

	return fmt.Errorf("one of -server or -config is required")
}
