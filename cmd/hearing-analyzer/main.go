package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Kevinaie18/intelligence/fileutil"
	"github.com/Kevinaie18/intelligence/logging"
	"github.com/Kevinaie18/intelligence/metrics"
	"github.com/Kevinaie18/intelligence/pipeline"
	"github.com/Kevinaie18/intelligence/pipeline/media"
	"github.com/Kevinaie18/intelligence/pipeline/provider"
	"github.com/Kevinaie18/intelligence/retry"
	"github.com/Kevinaie18/intelligence/validate"
)

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

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "missing OPENAI_API_KEY (or pass -api-key)")
		os.Exit(2)
	}

	urls, err := collectURLs(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if !validate.ValidTheme(cfg.Theme) {
		fmt.Fprintf(os.Stderr, "invalid -theme %q: need %d-%d characters\n", cfg.Theme, validate.ThemeMinLen, validate.ThemeMaxLen)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("mkdir -out: %w", err).Error())
		os.Exit(2)
	}

	log := logging.New("hearing-analyzer")

	rec, err := metrics.NewRecorder(cfg.MetricsDir, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	extractor, err := media.NewExtractor(media.Options{
		TempDir:     cfg.TempDir,
		MaxDuration: cfg.MaxDuration,
	}, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	transcriber := provider.NewTranscriber(&client, cfg.TranscribeModel, extractor.Clip)
	completer := provider.NewAnalysisCompleter(&client, cfg.Model)
	consolidator := provider.NewConsolidationCompleter(&client, cfg.Model)

	orch, err := pipeline.New(extractor, transcriber, completer, consolidator, rec, log, pipeline.Config{
		Concurrency: cfg.Concurrency,
		ChunkBudget: cfg.ChunkBudget,
		Window:      cfg.Window,
		Retry: retry.Policy{
			MaxRetries:        cfg.MaxRetries,
			InitialDelay:      cfg.RetryDelay,
			PerAttemptTimeout: cfg.AttemptTimeout,
			OverallDeadline:   cfg.OverallDeadline,
			Retryable:         provider.IsRetryable,
		},
		OnTransition: func(ref string, from, to pipeline.ItemState) {
			log.WithField("ref", ref).WithField("from", string(from)).WithField("to", string(to)).Info("item state")
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	outcome, err := orch.Run(ctx, urls, cfg.Theme)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	completed, failed, err := writeOutputs(cfg, outcome)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	consolidatedOut := ""
	if outcome.Consolidated != nil {
		consolidatedOut = filepath.Join(cfg.OutDir, "consolidated.json")
	}
	fmt.Fprintf(os.Stdout, "items_completed=%d items_failed=%d out=%s consolidated=%s metrics=%s\n",
		completed, failed, cfg.OutDir, consolidatedOut, cfg.MetricsDir)

	if failed > 0 {
		os.Exit(1)
	}
}

func collectURLs(cfg Config) ([]string, error) {
	input := cfg.URLs
	if cfg.URLsFile != "" {
		b, err := os.ReadFile(cfg.URLsFile)
		if err != nil {
			return nil, fmt.Errorf("read -urls-file: %w", err)
		}
		if input != "" {
			input += "\n"
		}
		input += string(b)
	}

	urls := validate.SplitURLs(input)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no URLs found in input")
	}
	for _, u := range urls {
		if !validate.ValidVideoURL(u) {
			return nil, fmt.Errorf("not a recognizable YouTube URL: %s", u)
		}
	}
	return urls, nil
}

// writeOutputs persists per-item transcripts and analyses, an index.jsonl of
// outcomes, and the consolidated report when present.
func writeOutputs(cfg Config, outcome *pipeline.Outcome) (completed, failed int, err error) {
	indexPath := filepath.Join(cfg.OutDir, "index.jsonl")
	indexFile, err := os.OpenFile(indexPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, 0, fmt.Errorf("open index: %w", err)
	}
	defer indexFile.Close()
	indexW := bufio.NewWriter(indexFile)
	defer indexW.Flush()

	type indexRow struct {
		Ref            string `json:"ref"`
		State          string `json:"state"`
		Error          string `json:"error,omitempty"`
		TranscriptPath string `json:"transcript_path,omitempty"`
		AnalysisPath   string `json:"analysis_path,omitempty"`
	}

	for _, item := range outcome.Items {
		row := indexRow{Ref: item.Ref, State: string(item.State), Error: item.Error}

		if item.State == pipeline.StateCompleted {
			completed++
			base := itemBaseName(item.Ref)

			row.TranscriptPath = filepath.Join(cfg.OutDir, base+".transcript.txt")
			if err := fileutil.WriteFileAtomicSameDir(row.TranscriptPath, []byte(item.Transcript), 0o644); err != nil {
				return completed, failed, fmt.Errorf("write transcript for %s: %w", item.Ref, err)
			}

			row.AnalysisPath = filepath.Join(cfg.OutDir, base+".analysis.json")
			if err := fileutil.WriteJSONFileAtomic(row.AnalysisPath, item.Analysis, cfg.Pretty); err != nil {
				return completed, failed, fmt.Errorf("write analysis for %s: %w", item.Ref, err)
			}
		} else {
			failed++
		}

		line, err := json.Marshal(row)
		if err != nil {
			return completed, failed, fmt.Errorf("marshal index row: %w", err)
		}
		if _, err := indexW.Write(append(line, '\n')); err != nil {
			return completed, failed, fmt.Errorf("write index: %w", err)
		}
	}

	if outcome.Consolidated != nil {
		path := filepath.Join(cfg.OutDir, "consolidated.json")
		if err := fileutil.WriteJSONFileAtomic(path, outcome.Consolidated, cfg.Pretty); err != nil {
			return completed, failed, fmt.Errorf("write consolidated report: %w", err)
		}
	} else if outcome.SkipReason != "" {
		fmt.Fprintf(os.Stderr, "consolidation skipped: %s\n", outcome.SkipReason)
	}
	return completed, failed, nil
}

func itemBaseName(ref string) string {
	if id, ok := validate.VideoID(ref); ok {
		return id
	}
	s := strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, ref)
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
