// Package config loads blobsim settings from an optional YAML file, then
// applies environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	Simulation SimulationConfig `yaml:"simulation"`
	Images     ImageConfig      `yaml:"images"`
	Storage    StorageConfig    `yaml:"storage"`
	Entropy    EntropyConfig    `yaml:"entropy"`
	LogLevel   string           `yaml:"log_level"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AdminKey       string   `yaml:"admin_key"`
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimit      int      `yaml:"rate_limit"` // LLM-consuming requests per IP per minute
	MaxStreamConns int      `yaml:"max_stream_conns"`
}

type LLMConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxPerMinute int           `yaml:"max_per_minute"`
	Retries      int           `yaml:"retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`

	Temperature      float64 `yaml:"temperature"`
	TopP             float64 `yaml:"top_p"`
	PresencePenalty  float64 `yaml:"presence_penalty"`
	FrequencyPenalty float64 `yaml:"frequency_penalty"`
	MaxTokens        int     `yaml:"max_tokens"`
	ForceJSON        bool    `yaml:"force_json"`
}

type SimulationConfig struct {
	HistoryWindow   int     `yaml:"history_window"`
	JoinProbability float64 `yaml:"join_probability"`
	InitialMetric   float64 `yaml:"initial_metric"`
	Seed            int64   `yaml:"seed"`

	// Optional auto-advance loop, off when the interval is zero.
	AutoAdvance time.Duration `yaml:"auto_advance"`

	// Created at startup when both are positive.
	InitialBlobs     int `yaml:"initial_blobs"`
	InitialSocieties int `yaml:"initial_societies"`
}

type ImageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Async   bool   `yaml:"async"`
	Model   string `yaml:"model"`
	Size    string `yaml:"size"`
	Style   string `yaml:"style"`
	Workers int    `yaml:"workers"`
	Queue   int    `yaml:"queue"`
}

type StorageConfig struct {
	ArchivePath   string `yaml:"archive_path"`   // empty disables the sqlite archive
	TranscriptDir string `yaml:"transcript_dir"` // empty disables the transcript
}

type EntropyConfig struct {
	RandomOrgKey string `yaml:"random_org_key"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			RateLimit:      10,
			MaxStreamConns: 100,
		},
		LLM: LLMConfig{
			BaseURL:          "https://api.openai.com/v1",
			Model:            "gpt-4o-mini",
			Timeout:          60 * time.Second,
			MaxPerMinute:     30,
			Retries:          3,
			RetryDelay:       2 * time.Second,
			Temperature:      0.7,
			TopP:             1.0,
			FrequencyPenalty: 0.3,
		},
		Simulation: SimulationConfig{
			HistoryWindow:   3,
			JoinProbability: 0.75,
			InitialMetric:   0.5,
		},
		Images: ImageConfig{
			Model:   "dall-e-3",
			Size:    "1024x1024",
			Workers: 2,
			Queue:   32,
		},
		Storage: StorageConfig{
			ArchivePath:   "data/blobworld.db",
			TranscriptDir: "data/transcripts",
		},
		LogLevel: "info",
	}
}

// Load reads path (optional) over the defaults, then applies the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	setString(&c.LLM.APIKey, getenv("OPENAI_API_KEY"))
	setString(&c.LLM.BaseURL, getenv("OPENAI_BASE_URL"))
	setString(&c.LLM.Model, getenv("BLOBSIM_MODEL"))
	setString(&c.Server.AdminKey, getenv("BLOBSIM_ADMIN_KEY"))
	setInt(&c.Server.Port, "BLOBSIM_PORT", getenv("BLOBSIM_PORT"))
	setString(&c.Storage.ArchivePath, getenv("BLOBSIM_ARCHIVE"))
	setString(&c.Storage.TranscriptDir, getenv("BLOBSIM_TRANSCRIPTS"))
	setString(&c.Entropy.RandomOrgKey, getenv("RANDOM_ORG_API_KEY"))
	setString(&c.LogLevel, getenv("BLOBSIM_LOG_LEVEL"))

	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if v := getenv("BLOBSIM_IMAGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Images.Enabled = b
		} else {
			slog.Warn("ignoring bad env value", "key", "BLOBSIM_IMAGES", "value", v)
		}
	}
	if v := getenv("BLOBSIM_AUTO_ADVANCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Simulation.AutoAdvance = d
		} else {
			slog.Warn("ignoring bad env value", "key", "BLOBSIM_AUTO_ADVANCE", "value", v)
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, key, v string) {
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring bad env value", "key", key, "value", v)
		return
	}
	*dst = n
}

// Validate rejects settings the process cannot start with.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Simulation.HistoryWindow < 1 {
		return fmt.Errorf("simulation.history_window must be at least 1")
	}
	if c.Simulation.JoinProbability < 0 || c.Simulation.JoinProbability > 1 {
		return fmt.Errorf("simulation.join_probability must be in [0, 1]")
	}
	if c.Simulation.InitialMetric < 0 || c.Simulation.InitialMetric > 1 {
		return fmt.Errorf("simulation.initial_metric must be in [0, 1]")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2]")
	}
	if c.Simulation.AutoAdvance < 0 {
		return fmt.Errorf("simulation.auto_advance must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
