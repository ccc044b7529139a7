// Command blobsim serves the blob world narrative simulation over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/blob-world/internal/api"
	"github.com/talgya/blob-world/internal/config"
	"github.com/talgya/blob-world/internal/engine"
	"github.com/talgya/blob-world/internal/entropy"
	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/persistence"
	"github.com/talgya/blob-world/internal/tasks"
)

func main() {
	configPath := flag.String("config", os.Getenv("BLOBSIM_CONFIG"), "path to YAML config (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Blob World starting", "config", *configPath, "model", cfg.LLM.Model)

	// ── LLM Client ───────────────────────────────────────────────────
	client := llm.NewClient(llm.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		ImageModel:   cfg.Images.Model,
		Timeout:      cfg.LLM.Timeout,
		MaxPerMinute: cfg.LLM.MaxPerMinute,
		Retries:      cfg.LLM.Retries,
		RetryDelay:   cfg.LLM.RetryDelay,
	})
	if client.Enabled() {
		slog.Info("LLM client enabled", "model", cfg.LLM.Model)
	} else {
		slog.Warn("OPENAI_API_KEY not set, narrator calls will fail with 503")
	}

	// ── Simulation ────────────────────────────────────────────────────
	sim := engine.NewSimulation(client, engine.Options{
		HistoryWindow:   cfg.Simulation.HistoryWindow,
		JoinProbability: cfg.Simulation.JoinProbability,
		InitialMetric:   cfg.Simulation.InitialMetric,
		Seed:            cfg.Simulation.Seed,
		Params: llm.Params{
			Temperature:      cfg.LLM.Temperature,
			TopP:             cfg.LLM.TopP,
			PresencePenalty:  cfg.LLM.PresencePenalty,
			FrequencyPenalty: cfg.LLM.FrequencyPenalty,
			MaxTokens:        cfg.LLM.MaxTokens,
			ForceJSON:        cfg.LLM.ForceJSON,
		},
		ImagesEnabled: cfg.Images.Enabled,
		AsyncImages:   cfg.Images.Async,
		ImageSize:     cfg.Images.Size,
		ImageStyle:    cfg.Images.Style,
	})
	sim.Entropy = entropy.NewClient(cfg.Entropy.RandomOrgKey)
	if cfg.Images.Enabled && client.Enabled() {
		sim.Illustrator = client
	}

	// ── Archive ───────────────────────────────────────────────────────
	var archive *persistence.Archive
	if path := cfg.Storage.ArchivePath; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			slog.Error("failed to create archive dir", "error", err)
			os.Exit(1)
		}
		archive, err = persistence.Open(path)
		if err != nil {
			slog.Error("failed to open archive", "path", path, "error", err)
			os.Exit(1)
		}
		defer archive.Close()
		sim.Recorder = archive
		slog.Info("archive opened", "path", path)
	}

	var transcript *persistence.TranscriptLog
	if dir := cfg.Storage.TranscriptDir; dir != "" {
		transcript = persistence.NewTranscriptLog(dir)
		defer transcript.Close()
		sim.Transcript = transcript
		slog.Info("transcripts enabled", "dir", dir)
	}

	var dispatcher *tasks.Dispatcher
	if sim.Illustrator != nil && cfg.Images.Async {
		dispatcher = tasks.New(tasks.Config{
			Workers:       cfg.Images.Workers,
			QueueCapacity: cfg.Images.Queue,
			JobTimeout:    cfg.LLM.Timeout * time.Duration(cfg.LLM.Retries+1),
		})
		sim.Dispatcher = dispatcher
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if n, m := cfg.Simulation.InitialBlobs, cfg.Simulation.InitialSocieties; n > 0 && client.Enabled() {
		if err := sim.Initialize(ctx, n, m); err != nil {
			slog.Error("initial world failed, waiting for POST /initialize", "error", err)
		}
	}

	// ── Auto-advance ─────────────────────────────────────────────────
	var runner *engine.Runner
	if cfg.Simulation.AutoAdvance > 0 {
		runner = engine.NewRunner(sim, cfg.Simulation.AutoAdvance)
		runner.OnOutcome = func(out *engine.Outcome) {
			if out.Skipped {
				slog.Warn("auto-advance tick skipped", "year", out.Year, "reason", out.Reason)
			}
		}
		go runner.Run(ctx)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("BLOBSIM_ADMIN_KEY not set, control endpoints are open")
	}
	apiServer := &api.Server{
		Sim:            sim,
		Runner:         runner,
		Dispatcher:     dispatcher,
		Port:           cfg.Server.Port,
		AdminKey:       cfg.Server.AdminKey,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimit:      cfg.Server.RateLimit,
		MaxStreamConns: cfg.Server.MaxStreamConns,
	}
	if archive != nil {
		apiServer.Archive = archive
	}
	srv := apiServer.Start()

	fmt.Printf("\nBlob World is listening on http://localhost:%d/status\n", cfg.Server.Port)
	fmt.Println("POST /initialize to create a world. (Ctrl+C to stop)")

	<-ctx.Done()
	slog.Info("shutting down")

	if runner != nil {
		runner.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if dispatcher != nil {
		dispatcher.Close()
	}
	fmt.Println("Blob World stopped.")
}
