package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	URLs     string
	URLsFile string
	Theme    string

	OutDir     string
	MetricsDir string
	TempDir    string

	Model           string
	TranscribeModel string
	APIKey          string

	Concurrency int
	ChunkBudget int
	Window      time.Duration
	MaxDuration time.Duration

	MaxRetries      int
	RetryDelay      time.Duration
	AttemptTimeout  time.Duration
	OverallDeadline time.Duration

	Pretty bool
}

func (c Config) Validate() error {
	if c.URLs == "" && c.URLsFile == "" {
		return errors.New("missing -urls or -urls-file")
	}
	if c.Theme == "" {
		return errors.New("missing -theme")
	}
	if c.OutDir == "" {
		return errors.New("missing -out")
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.Concurrency < 0 {
		return errors.New("concurrency must be >= 0")
	}
	if c.ChunkBudget < 0 {
		return errors.New("chunk-budget must be >= 0")
	}
	if c.Window < 0 {
		return errors.New("window must be >= 0")
	}
	if c.MaxRetries < 0 {
		return errors.New("max-retries must be >= 0")
	}
	if c.RetryDelay < 0 || c.AttemptTimeout < 0 || c.OverallDeadline < 0 {
		return errors.New("retry durations must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		OutDir:          filepath.FromSlash("out/hearings"),
		MetricsDir:      filepath.FromSlash("out/metrics"),
		Model:           "gpt-4o",
		TranscribeModel: "whisper-1",
		Concurrency:     3,
		Window:          10 * time.Minute,
		MaxRetries:      3,
		RetryDelay:      1 * time.Second,
		AttemptTimeout:  5 * time.Minute,
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.URLs, "urls", "", "Comma/newline-separated YouTube URLs of the hearings")
	fs.StringVar(&cfg.URLsFile, "urls-file", "", "Path to a file with one URL per line (alternative to -urls)")
	fs.StringVar(&cfg.Theme, "theme", "", "Inquiry theme the hearings belong to (3-50 chars)")
	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "Output directory for transcripts, analyses, and the consolidated report")
	fs.StringVar(&cfg.MetricsDir, "metrics-dir", cfg.MetricsDir, "Directory for per-operation metrics records")
	fs.StringVar(&cfg.TempDir, "temp-dir", "", "Directory for downloaded/converted audio (default: system temp)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "OpenAI model for analysis and consolidation")
	fs.StringVar(&cfg.TranscribeModel, "transcribe-model", cfg.TranscribeModel, "OpenAI model for audio transcription")
	fs.StringVar(&cfg.APIKey, "api-key", "", "OpenAI API key (overrides OPENAI_API_KEY env var)")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max items (and windows/chunks per item) in flight")
	fs.IntVar(&cfg.ChunkBudget, "chunk-budget", 0, "Max bytes per analysis chunk (0 = default)")
	fs.DurationVar(&cfg.Window, "window", cfg.Window, "Transcription window length")
	fs.DurationVar(&cfg.MaxDuration, "max-duration", 0, "Reject recordings longer than this (0 = default)")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries per remote call after the first attempt")
	fs.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "Initial backoff delay (doubles per retry)")
	fs.DurationVar(&cfg.AttemptTimeout, "attempt-timeout", cfg.AttemptTimeout, "Per-attempt timeout for remote calls")
	fs.DurationVar(&cfg.OverallDeadline, "overall-deadline", 0, "Overall deadline per remote call including retries (0 = none)")
	fs.BoolVar(&cfg.Pretty, "pretty", true, "Pretty-print analysis JSON files")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg.OutDir = filepath.Clean(cfg.OutDir)
	cfg.MetricsDir = filepath.Clean(cfg.MetricsDir)
	if cfg.URLsFile != "" {
		cfg.URLsFile = filepath.Clean(cfg.URLsFile)
	}
	if cfg.TempDir != "" {
		cfg.TempDir = filepath.Clean(cfg.TempDir)
	}
	return cfg, nil
}
