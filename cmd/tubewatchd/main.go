package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tubewatch/internal/config"
	"tubewatch/internal/daemon"
	"tubewatch/internal/engine"
	"tubewatch/internal/logging"
	"tubewatch/internal/metrics"
	"tubewatch/internal/notifications"
	"tubewatch/internal/preflight"
	"tubewatch/internal/reconciler"
	"tubewatch/internal/server"
	"tubewatch/internal/storage"
	"tubewatch/internal/websub"
	"tubewatch/internal/youtube"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(os.Getenv("TUBEWATCH_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "tubewatchd.log")},
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail))
	}

	store, err := storage.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		os.Exit(1)
	}

	m := metrics.New()
	videos, err := youtube.New(cfg.YouTube.APIKey, cfg.YouTube.BaseURL, cfg.YouTube.WatcherChannelID)
	if err != nil {
		logger.Error("build youtube client", logging.Error(err))
		os.Exit(1)
	}
	notifier := notifications.NewService(cfg)

	eng, err := engine.New(cfg, videos, store, notifier, m, logging.NewComponentLogger(logger, "engine"))
	if err != nil {
		logger.Error("build engine", logging.Error(err))
		os.Exit(1)
	}

	srv, err := server.New(cfg, store, eng, m, logging.NewComponentLogger(logger, "server"))
	if err != nil {
		logger.Error("build server", logging.Error(err))
		os.Exit(1)
	}

	hub := websub.NewHub(cfg.Hub.URL, cfg.Hub.CallbackURL, cfg.Hub.Secret, cfg.Hub.LeaseSeconds)
	rec := reconciler.New(cfg, videos, store, hub, m, logging.NewComponentLogger(logger, "reconciler"))

	d, err := daemon.New(cfg, store, srv, rec, logging.NewComponentLogger(logger, "daemon"))
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		os.Exit(1)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := d.Wait(ctx); err != nil {
		logger.Error("daemon terminated", logging.Error(err))
		d.Stop()
		os.Exit(1)
	}
	logger.Info("tubewatchd shutting down")
	d.Stop()
}
