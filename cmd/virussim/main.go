// Command virussim runs the virus replication sandbox core with its HTTP API.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/virus-sandbox/internal/api"
	"github.com/talgya/virus-sandbox/internal/catalog"
	"github.com/talgya/virus-sandbox/internal/config"
	"github.com/talgya/virus-sandbox/internal/game"
	"github.com/talgya/virus-sandbox/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Virus Sandbox — replication strategy core")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// ── Gene catalog ──────────────────────────────────────────────────
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				slog.Error("catalog problem", "problem", p)
			}
		}
		slog.Error("failed to load catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded",
		"path", cfg.CatalogPath,
		"genes", len(cat.Genes()),
		"entities", len(cat.Entities()),
	)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or start a game ──────────────────────────────────────────
	var g *game.Game
	if db.HasSave() {
		slog.Info("found saved game, resuming...")
		state, loadErr := db.LoadState()
		if loadErr != nil {
			slog.Error("failed to load saved game", "error", loadErr)
			os.Exit(1)
		}
		g, err = game.Resume(cat, cfg, state)
		if err != nil {
			slog.Error("failed to resume game", "error", err)
			os.Exit(1)
		}
		slog.Info("game restored",
			"round", state.Round,
			"ep", state.Ledger.Balance(),
			"installed", len(state.Installed),
		)
	} else {
		slog.Info("no saved game found, starting fresh")
		g, err = game.New(cat, cfg)
		if err != nil {
			slog.Error("failed to start game", "error", err)
			os.Exit(1)
		}
		if err := db.SaveState(g.State()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// Record finished runs and checkpoint state as events arrive.
	events := g.Subscribe(64)
	go func() {
		for e := range events {
			switch e.Kind {
			case game.EventVictoryReached, game.EventExtinctionReached:
				outcome := "victory"
				if e.Kind == game.EventExtinctionReached {
					outcome = "extinction"
				}
				turns, peak := 0, 0
				if e.Stats != nil {
					turns = e.Stats.Turn
					peak = e.Stats.PeakPopulation
				}
				if err := db.RecordOutcome(e.Round, outcome, turns, peak); err != nil {
					slog.Error("failed to record outcome", "error", err)
				}
			case game.EventMilestoneCompleted:
				if err := db.SaveState(g.State()); err != nil {
					slog.Error("checkpoint save failed", "error", err)
				}
			}
		}
	}()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("VIRUS_ADMIN_KEY not set — command POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Game:     g,
		DB:       db,
		Port:     cfg.Port,
		AdminKey: cfg.AdminKey,
	}
	apiServer.Start()

	fmt.Printf("\nVirus sandbox ready: %d genes in catalog, round %d, %d EP.\n",
		len(cat.Genes()), g.Round(), g.EP())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	fmt.Println("Running... (Ctrl+C to stop)")

	// ── Shutdown ──────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	if err := db.SaveState(g.State()); err != nil {
		slog.Error("final save failed", "error", err)
	}
	fmt.Println("Stopped. Game state saved.")
}
