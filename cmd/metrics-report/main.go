// Command metrics-report summarizes, exports, and purges the metrics records
// written by the pipeline.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/Kevinaie18/intelligence/logging"
	"github.com/Kevinaie18/intelligence/metrics"
	"github.com/Kevinaie18/intelligence/report"
)

type Config struct {
	MetricsDir string
	Operation  string
	XLSXPath   string
	PurgeOlder time.Duration
	Pretty     bool
}

func (c Config) Validate() error {
	if c.MetricsDir == "" {
		return errors.New("missing -metrics-dir")
	}
	if c.PurgeOlder < 0 {
		return errors.New("purge-older-than must be >= 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		MetricsDir: filepath.FromSlash("out/metrics"),
		Pretty:     true,
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.MetricsDir, "metrics-dir", cfg.MetricsDir, "Directory of metrics record files")
	fs.StringVar(&cfg.Operation, "operation", "", "Summarize only this operation (default: every operation)")
	fs.StringVar(&cfg.XLSXPath, "xlsx", "", "Optional path to export the summaries as a workbook")
	fs.DurationVar(&cfg.PurgeOlder, "purge-older-than", 0, "Remove record files older than this before summarizing (0 = keep all)")
	fs.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Pretty-print the summary JSON")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.MetricsDir = filepath.Clean(cfg.MetricsDir)
	if cfg.XLSXPath != "" {
		cfg.XLSXPath = filepath.Clean(cfg.XLSXPath)
	}
	return cfg, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	log := logging.New("metrics-report")
	rec, err := metrics.NewRecorder(cfg.MetricsDir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if cfg.PurgeOlder > 0 {
		removed, err := rec.PurgeOlderThan(cfg.PurgeOlder)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "purged %d record(s) older than %s\n", removed, cfg.PurgeOlder)
	}

	summaries, err := buildSummaries(rec, cfg.Operation)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	var out []byte
	if cfg.Pretty {
		out, err = json.MarshalIndent(summaries, "", "  ")
	} else {
		out, err = json.Marshal(summaries)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stdout, string(out))

	if cfg.XLSXPath != "" && len(summaries) > 0 {
		if err := report.WriteSummaryWorkbook(cfg.XLSXPath, summaries); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "workbook written to %s\n", cfg.XLSXPath)
	}
}

func buildSummaries(rec *metrics.Recorder, operation string) (map[string]metrics.Summary, error) {
	names := []string{operation}
	if operation == "" {
		var err error
		names, err = rec.ListOperations()
		if err != nil {
			return nil, err
		}
	}

	summaries := make(map[string]metrics.Summary, len(names))
	for _, name := range names {
		s, err := rec.Summarize(name)
		if err != nil {
			return nil, err
		}
		summaries[name] = s
	}
	return summaries, nil
}
