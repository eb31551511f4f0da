// Command vaultkeepd runs the vault simulation daemon: it ticks every
// active vault on a wall-clock interval and persists the results.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hollowvale/vaultkeep/internal/api"
	"github.com/hollowvale/vaultkeep/internal/config"
	"github.com/hollowvale/vaultkeep/internal/engine"
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/expedition"
	"github.com/hollowvale/vaultkeep/internal/incident"
	"github.com/hollowvale/vaultkeep/internal/persistence"
	"github.com/hollowvale/vaultkeep/internal/wasteland"
)

func main() {
	rt, err := config.ParseEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if rt.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	bal, err := config.LoadBalance(rt.BalancePath)
	if err != nil {
		slog.Error("failed to load balance table", "error", err)
		os.Exit(1)
	}

	seed := rt.Seed
	if seed == 0 {
		if seed, err = entropy.NewSeed(); err != nil {
			slog.Error("failed to generate seed", "error", err)
			os.Exit(1)
		}
	}

	os.MkdirAll(filepath.Dir(rt.DBPath), 0755)
	db, err := persistence.Open(rt.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if info, err := os.Stat(rt.DBPath); err == nil {
		slog.Info("database opened", "path", rt.DBPath, "size", humanize.Bytes(uint64(info.Size())))
	}

	field := wasteland.NewField(seed)
	orch := engine.New(db, bal, field)
	orch.MinTickInterval = rt.MinTickInterval
	orch.MaxOfflineCatchup = rt.MaxOfflineCatchup
	orch.Workers = rt.Workers

	if rt.APIPort > 0 {
		srv := &api.Server{
			Store:       db,
			Orch:        orch,
			Incidents:   incident.NewEngine(bal.Incident),
			Expeditions: expedition.NewCoordinator(bal.Expedition, field),
			Port:        rt.APIPort,
		}
		srv.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	slog.Info("vaultkeepd started",
		"tick_interval", rt.TickInterval,
		"workers", rt.Workers,
		"max_catchup", rt.MaxOfflineCatchup,
	)

	ticker := time.NewTicker(rt.TickInterval)
	defer ticker.Stop()

	runBatch(ctx, orch) // first batch immediately, then on the interval
	for {
		select {
		case <-ctx.Done():
			slog.Info("vaultkeepd stopped")
			return
		case <-ticker.C:
			runBatch(ctx, orch)
		}
	}
}

func runBatch(ctx context.Context, orch *engine.Orchestrator) {
	start := time.Now()
	report, err := orch.RunAll(ctx)
	if err != nil {
		slog.Error("tick batch failed", "error", err)
		return
	}
	slog.Debug("batch timing",
		"took", time.Since(start).Round(time.Millisecond),
		"processed", report.Processed,
	)
}
