package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/SFTtech/openage-lobbyserver/internal/config"
	"github.com/SFTtech/openage-lobbyserver/internal/db"
	"github.com/SFTtech/openage-lobbyserver/internal/masterserver"
)

const ConfigPath = "config/masterserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("openage master server starting")

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("MASTERSERVER_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadMasterServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "accepted_version", cfg.AcceptedVersion)

	// Connect to database
	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	// Run migrations
	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	players := db.NewPostgresPlayerRepository(database.Pool())
	server := masterserver.NewServer(cfg, players)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting master server")
		if err := server.Run(gctx); err != nil {
			return fmt.Errorf("master server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := config.Watch(gctx, cfgPath, server.ApplyConfig); err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
