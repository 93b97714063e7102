// Package media acquires audio for the pipeline: yt-dlp download, ffmpeg
// conversion to a transcription-ready format, ffprobe duration probing, and
// window clipping.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kevinaie18/intelligence/pipeline"
)

// DefaultMaxDuration rejects recordings longer than a working session.
const DefaultMaxDuration = 4 * time.Hour

// Options tunes an Extractor. Zero values get sane defaults.
type Options struct {
	TempDir     string
	YTDLPPath   string
	FFmpegPath  string
	FFprobePath string
	MaxDuration time.Duration
}

// Extractor downloads sources and converts them to 16kHz mono WAV.
type Extractor struct {
	tempDir     string
	ytdlp       string
	ffmpeg      string
	ffprobe     string
	maxDuration time.Duration
	log         *logrus.Entry
}

func NewExtractor(opts Options, log *logrus.Entry) (*Extractor, error) {
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "hearing-audio")
	}
	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("NewExtractor: mkdir temp dir: %w", err)
	}
	if opts.YTDLPPath == "" {
		opts.YTDLPPath = "yt-dlp"
	}
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Extractor{
		tempDir:     opts.TempDir,
		ytdlp:       opts.YTDLPPath,
		ffmpeg:      opts.FFmpegPath,
		ffprobe:     opts.FFprobePath,
		maxDuration: opts.MaxDuration,
		log:         log,
	}, nil
}

// Fetch downloads the source's audio track, converts it to 16kHz mono WAV,
// and probes its duration.
func (e *Extractor) Fetch(ctx context.Context, ref string) (pipeline.AudioHandle, error) {
	if strings.TrimSpace(ref) == "" {
		return pipeline.AudioHandle{}, errors.New("Fetch: empty source reference")
	}

	base := filepath.Join(e.tempDir, uuid.NewString())
	rawPath := base + ".raw.wav"
	wavPath := base + ".wav"

	if err := e.run(ctx, e.ytdlp,
		"--no-playlist",
		"-f", "bestaudio",
		"-x", "--audio-format", "wav",
		"-o", rawPath,
		ref,
	); err != nil {
		return pipeline.AudioHandle{}, fmt.Errorf("Fetch: download: %w", err)
	}
	defer func() { _ = os.Remove(rawPath) }()

	// 16kHz mono keeps uploads small without hurting transcription quality.
	if err := e.run(ctx, e.ffmpeg,
		"-y",
		"-i", rawPath,
		"-ar", "16000",
		"-ac", "1",
		wavPath,
	); err != nil {
		return pipeline.AudioHandle{}, fmt.Errorf("Fetch: convert: %w", err)
	}

	duration, err := e.probeDuration(ctx, wavPath)
	if err != nil {
		_ = os.Remove(wavPath)
		return pipeline.AudioHandle{}, fmt.Errorf("Fetch: %w", err)
	}
	if duration > e.maxDuration {
		_ = os.Remove(wavPath)
		return pipeline.AudioHandle{}, fmt.Errorf("Fetch: recording is %s, longer than the %s limit", duration.Round(time.Second), e.maxDuration)
	}

	info, err := os.Stat(wavPath)
	if err != nil {
		_ = os.Remove(wavPath)
		return pipeline.AudioHandle{}, fmt.Errorf("Fetch: stat audio: %w", err)
	}

	e.log.WithField("ref", ref).
		WithField("duration", duration.Round(time.Second).String()).
		WithField("size", info.Size()).
		Info("audio extracted")

	return pipeline.AudioHandle{Path: wavPath, Duration: duration, Size: info.Size()}, nil
}

// Cleanup removes the extracted audio file.
func (e *Extractor) Cleanup(audio pipeline.AudioHandle) error {
	if audio.Path == "" {
		return nil
	}
	if err := os.Remove(audio.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("Cleanup: %w", err)
	}
	return nil
}

// Clip cuts one window into its own file and returns its path plus a release
// callback that deletes it.
func (e *Extractor) Clip(ctx context.Context, audio pipeline.AudioHandle, window pipeline.TimeWindow) (string, func(), error) {
	clipPath := filepath.Join(e.tempDir, fmt.Sprintf("%s.clip%d.wav", uuid.NewString(), window.Index))

	err := e.run(ctx, e.ffmpeg,
		"-y",
		"-i", audio.Path,
		"-ss", formatSeconds(window.Start),
		"-to", formatSeconds(window.End),
		"-c", "copy",
		clipPath,
	)
	if err != nil {
		_ = os.Remove(clipPath)
		return "", nil, err
	}
	return clipPath, func() { _ = os.Remove(clipPath) }, nil
}

func (e *Extractor) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	out, err := e.output(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration: parse %q: %w", strings.TrimSpace(out), err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("probe duration: non-positive duration %f", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (e *Extractor) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return nil
}

func (e *Extractor) output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, lastLine(stderr.String()))
	}
	return stdout.String(), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
