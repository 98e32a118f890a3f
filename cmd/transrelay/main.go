package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/transrelay/external/audio"
	configloader "github.com/foxseedlab/transrelay/external/config"
	"github.com/foxseedlab/transrelay/external/discord"
	repositoryimpl "github.com/foxseedlab/transrelay/external/repository"
	transcriberimpl "github.com/foxseedlab/transrelay/external/transcriber"
	translatorimpl "github.com/foxseedlab/transrelay/external/translator"
	webhookimpl "github.com/foxseedlab/transrelay/external/webhook"
	"github.com/foxseedlab/transrelay/internal/api"
	"github.com/foxseedlab/transrelay/internal/config"
	discordpkg "github.com/foxseedlab/transrelay/internal/discord"
	"github.com/foxseedlab/transrelay/internal/session"
	"github.com/foxseedlab/transrelay/internal/target"
	"github.com/foxseedlab/transrelay/internal/transcriber"
	"github.com/samber/do/v2"
	"golang.org/x/sync/errgroup"
)

const discordConnectTimeout = 20 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "engine", cfg.Engine, "listen_addr", cfg.ListenAddr)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)
	defer injector.Shutdown()

	if err := run(cfg, injector); err != nil {
		slog.Error("relay stopped with error", "error", err)
		injector.Shutdown()
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	translatorimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	api.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) error {
	engine, err := do.Invoke[transcriber.Engine](injector)
	if err != nil {
		return err
	}
	controller, err := do.Invoke[*session.Controller](injector)
	if err != nil {
		return err
	}
	targets, err := do.Invoke[*target.Set](injector)
	if err != nil {
		return err
	}
	server, err := do.Invoke[*api.Server](injector)
	if err != nil {
		return err
	}
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		return err
	}

	if dc.Enabled() {
		connectCtx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
		err := dc.Connect(connectCtx)
		cancel()
		if err != nil {
			return err
		}
		slog.Info("startup: discord mirror connected", "channel_id", cfg.DiscordMirrorChannelID)
		defer func() {
			if err := dc.Close(); err != nil {
				slog.Error("discord close failed", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Reads from stdin cannot be interrupted, so the engine input pump is not
	// joined on shutdown.
	go func() {
		if err := engine.Run(ctx); err != nil {
			slog.Error("engine input failed", "error", err)
		}
	}()

	if initial := targets.Snapshot(); len(initial) > 0 || cfg.AutoStart {
		controller.RequestRestart(initial)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})
	err = g.Wait()
	slog.Info("shutting down")
	return err
}
