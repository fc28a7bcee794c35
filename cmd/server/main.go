package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dhiway/jobstack-bap/internal/adapter"
	"github.com/dhiway/jobstack-bap/internal/api"
	"github.com/dhiway/jobstack-bap/internal/apply"
	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/correlator"
	"github.com/dhiway/jobstack-bap/internal/embedding"
	"github.com/dhiway/jobstack-bap/internal/events"
	"github.com/dhiway/jobstack-bap/internal/jobsync"
	"github.com/dhiway/jobstack-bap/internal/match"
	"github.com/dhiway/jobstack-bap/internal/metrics"
	"github.com/dhiway/jobstack-bap/internal/notify"
	"github.com/dhiway/jobstack-bap/internal/profilesync"
	"github.com/dhiway/jobstack-bap/internal/scheduler"
	"github.com/dhiway/jobstack-bap/internal/search"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// shutdownGrace is how long in-flight requests get to drain.
const shutdownGrace = 15 * time.Second

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		slog.Error("usage: server <config.yaml>")
		os.Exit(1)
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	rules, err := config.LoadRules(cfg.MatchScorePath)
	if err != nil {
		slog.Error("scoring rules load failed", "path", cfg.MatchScorePath, "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DB.URL)
	if err != nil {
		slog.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	cacheClient, err := cache.New(cfg.Redis.URL)
	if err != nil {
		slog.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer cacheClient.Close()

	m := metrics.New()
	adapterClient := adapter.New(cfg.Bap.CallerURI, m)
	seekerClient := adapter.NewSeeker(cfg.Services.Seeker.BaseURL, cfg.Services.Seeker.APIKey)
	embedder := embedding.New(cfg.GCP, cacheClient)
	reg := correlator.New()

	engine := match.NewEngine(cfg, rules, st, embedder, m)
	jobSyncer := jobsync.NewSyncer(st)
	searchCoord := search.NewCoordinator(cfg, rules, cacheClient, adapterClient, embedder, jobSyncer, m, engine.Trigger)
	profileSyncer := profilesync.NewSyncer(seekerClient, st, engine.Trigger)
	mirror := profilesync.NewMirror(cfg, st, adapterClient)
	applyCoord := apply.NewCoordinator(cfg, adapterClient, reg, st)
	notifier := notify.NewDispatcher(cfg, st)
	publisher := events.NewPublisher(cacheClient)
	worker := events.NewWorker(cacheClient, profileSyncer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx)

	sched := scheduler.New(
		func(ctx context.Context) {
			if err := searchCoord.StartSweep(ctx, "cron"); err != nil {
				slog.Error("job sweep start failed", "error", err)
			}
		},
		func(ctx context.Context) {
			if err := profileSyncer.SyncAll(ctx); err != nil {
				slog.Error("profile sync failed", "error", err)
			}
		},
		engine.Trigger,
		notifier.Run,
	)
	if err := sched.Start(ctx, cfg); err != nil {
		slog.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(cfg, searchCoord, applyCoord, mirror, st, publisher, m)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server failed", "error", err)
		sched.Stop()
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown incomplete", "error", err)
	}
	sched.Stop()
	cancel()
	slog.Info("shutdown complete")
}
