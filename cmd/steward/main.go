// Command steward runs the autonomous policy steward for Blob World.
// It observes a blobsim server, decides on a policy via the narrator model,
// and acts through the admin control endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/blob-world/internal/config"
	"github.com/talgya/blob-world/internal/llm"
	"github.com/talgya/blob-world/internal/steward"
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

	apiURL := envOrDefault("BLOBSIM_API_URL", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
	memoryPath := envOrDefault("STEWARD_MEMORY", "data/steward_memory.json")
	intervalMin := envIntOrDefault("STEWARD_INTERVAL", 60)

	client := llm.NewClient(llm.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Model:        cfg.LLM.Model,
		Timeout:      cfg.LLM.Timeout,
		MaxPerMinute: cfg.LLM.MaxPerMinute,
		Retries:      cfg.LLM.Retries,
		RetryDelay:   cfg.LLM.RetryDelay,
	})
	if !client.Enabled() {
		slog.Error("OPENAI_API_KEY is required")
		os.Exit(1)
	}
	if cfg.Server.AdminKey == "" {
		slog.Warn("BLOBSIM_ADMIN_KEY not set, assuming the server's control endpoints are open")
	}

	interval := time.Duration(intervalMin) * time.Minute
	slog.Info("Blob World steward starting", "api_url", apiURL, "interval", interval)

	st := &steward.Steward{
		Observer: steward.NewObserver(apiURL),
		Actor:    steward.NewActor(apiURL, cfg.Server.AdminKey),
		Model:    client,
		Memory:   steward.LoadMemory(memoryPath),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("waiting for blobsim API...")
	if err := waitForAPI(ctx, apiURL); err != nil {
		slog.Error("blobsim API unavailable", "error", err)
		os.Exit(1)
	}

	runCycle(ctx, st)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			runCycle(ctx, st)
		case <-ctx.Done():
			fmt.Println("Steward stopped.")
			return
		}
	}
}

func runCycle(ctx context.Context, st *steward.Steward) {
	slog.Info("steward cycle starting")
	rec, err := st.RunCycle(ctx)
	switch {
	case errors.Is(err, steward.ErrNoWorld):
		slog.Info("no world yet, nothing to steer")
	case err != nil:
		slog.Error("steward cycle failed", "error", err)
	default:
		slog.Info("steward cycle complete", "action", rec.Action, "year", rec.Year, "crisis", rec.CrisisLevel)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls GET /status with exponential backoff until it answers.
// Gives up after 5 minutes.
func waitForAPI(ctx context.Context, apiURL string) error {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/status", nil)
		if err != nil {
			return err
		}
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				slog.Info("blobsim API is ready")
				return nil
			}
		}
		if time.Now().After(deadline) {
			return errors.New("blobsim API did not become ready within 5 minutes")
		}
		slog.Info("blobsim not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
