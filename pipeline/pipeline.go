// Package pipeline turns hearing recordings into structured analysis
// records: audio extraction, windowed transcription, chunked analysis, and
// an optional cross-hearing consolidated report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kevinaie18/intelligence/fileutil"
	"github.com/Kevinaie18/intelligence/metrics"
	"github.com/Kevinaie18/intelligence/retry"
)

// DefaultChunkBudget bounds one analysis chunk when the caller does not set
// a budget (bytes under the default SizeFunc).
const DefaultChunkBudget = 12_000

// Config tunes one orchestrator.
type Config struct {
	// Concurrency bounds items in flight, and transcription windows and
	// analysis chunks within an item. <= 0 means DefaultConcurrency.
	Concurrency int

	// ChunkBudget is the per-chunk size limit for transcript analysis,
	// measured by SizeFunc (bytes when nil). <= 0 means DefaultChunkBudget.
	ChunkBudget int
	SizeFunc    SizeFunc

	// Window is the transcription slice length. <= 0 means DefaultWindow.
	Window time.Duration

	Retry retry.Policy

	// OnTransition observes every item state change. Optional.
	OnTransition func(ref string, from, to ItemState)
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ChunkBudget <= 0 {
		c.ChunkBudget = DefaultChunkBudget
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}

// Orchestrator drives each source through extraction, transcription, and
// analysis, then consolidates when the whole batch completed.
type Orchestrator struct {
	fetcher      MediaFetcher
	transcriber  SpeechTranscriber
	completer    TextCompletion
	consolidator TextCompletion
	rec          *metrics.Recorder
	log          *logrus.Entry
	cfg          Config
}

// New wires an orchestrator. consolidator may be nil, in which case the
// completer also serves consolidation prompts.
func New(fetcher MediaFetcher, transcriber SpeechTranscriber, completer, consolidator TextCompletion, rec *metrics.Recorder, log *logrus.Entry, cfg Config) (*Orchestrator, error) {
	if fetcher == nil {
		return nil, errors.New("pipeline.New: fetcher is nil")
	}
	if transcriber == nil {
		return nil, errors.New("pipeline.New: transcriber is nil")
	}
	if completer == nil {
		return nil, errors.New("pipeline.New: completer is nil")
	}
	if rec == nil {
		return nil, errors.New("pipeline.New: metrics recorder is nil")
	}
	if consolidator == nil {
		consolidator = completer
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		fetcher:      fetcher,
		transcriber:  transcriber,
		completer:    completer,
		consolidator: consolidator,
		rec:          rec,
		log:          log,
		cfg:          cfg.withDefaults(),
	}, nil
}

// Run processes the batch and returns every item's outcome. Consolidation
// runs only when the batch has more than one item and all of them completed;
// a consolidation failure never fails the completed items.
func (o *Orchestrator) Run(ctx context.Context, refs []string, theme string) (*Outcome, error) {
	if len(refs) == 0 {
		return nil, errors.New("Run: no sources")
	}

	runOp := o.rec.Start("pipeline_run")
	runOp.SetInputSize(int64(len(refs)))

	results := FanOut(ctx, refs, o.cfg.Concurrency, func(ctx context.Context, _ int, ref string) (ItemResult, error) {
		return o.processItem(ctx, ref, theme), nil
	})

	outcome := &Outcome{Items: Values(results)}

	completed := 0
	for _, item := range outcome.Items {
		if item.State == StateCompleted {
			completed++
		}
	}
	runOp.AddMetric("items_completed", float64(completed))
	runOp.SetOutputSize(int64(completed))

	switch {
	case len(outcome.Items) == 1:
		outcome.SkipReason = "single item"
	case completed < len(outcome.Items):
		outcome.SkipReason = fmt.Sprintf("%d of %d items failed", len(outcome.Items)-completed, len(outcome.Items))
		o.log.WithField("skip_reason", outcome.SkipReason).Warn("skipping consolidation")
	default:
		analyses := make([]Analysis, 0, len(outcome.Items))
		for _, item := range outcome.Items {
			analyses = append(analyses, *item.Analysis)
		}
		consolidated, err := o.consolidate(ctx, analyses, theme)
		if err != nil {
			outcome.SkipReason = fmt.Sprintf("consolidation failed: %v", err)
			o.log.WithField("error", err.Error()).Error("consolidation failed")
		} else {
			outcome.Consolidated = consolidated
		}
	}

	runOp.Complete(completed == len(outcome.Items), nil)
	if err := o.rec.Save(runOp); err != nil {
		o.log.WithField("error", err.Error()).Warn("saving run metrics failed")
	}
	return outcome, nil
}

func (o *Orchestrator) processItem(ctx context.Context, ref, theme string) ItemResult {
	res := ItemResult{Ref: ref, State: StatePending}
	log := o.log.WithField("ref", ref)

	setState := func(to ItemState) {
		from := res.State
		res.State = to
		if o.cfg.OnTransition != nil {
			o.cfg.OnTransition(ref, from, to)
		}
		log.WithField("state", string(to)).Debug("state transition")
	}
	fail := func(stage string, err error) ItemResult {
		res.Err = &StageError{Stage: stage, Ref: ref, Cause: err}
		res.Error = res.Err.Error()
		setState(StateFailed)
		log.WithField("stage", stage).WithField("error", err.Error()).Error("item failed")
		return res
	}

	setState(StateExtracting)
	audio, err := o.extract(ctx, ref)
	if err != nil {
		return fail("extract", err)
	}
	setState(StateExtracted)
	defer o.cleanup(audio, log)

	setState(StateTranscribing)
	transcript, err := o.transcribeAudio(ctx, audio)
	if err != nil {
		return fail("transcribe", err)
	}
	res.Transcript = transcript
	setState(StateTranscribed)

	setState(StateAnalyzing)
	analysis, err := o.analyzeTranscript(ctx, transcript, theme)
	if err != nil {
		return fail("analyze", err)
	}
	res.Analysis = &analysis
	setState(StateCompleted)
	return res
}

func (o *Orchestrator) extract(ctx context.Context, ref string) (AudioHandle, error) {
	op := o.rec.Start("extract_audio")
	audio, _, err := retry.Run(ctx, o.cfg.Retry, func(ctx context.Context) (AudioHandle, error) {
		return o.fetcher.Fetch(ctx, ref)
	}, retry.WithOnRetry(func(error, int) { op.AddRetry() }))
	if err == nil {
		op.SetOutputSize(audio.Size)
		op.AddMetric("duration_seconds", audio.Duration.Seconds())
	}
	op.Complete(err == nil, err)
	o.saveOp(op)
	return audio, err
}

// transcribeAudio transcribes every window and merges the texts in window
// order. Any window failure fails the whole stage.
func (o *Orchestrator) transcribeAudio(ctx context.Context, audio AudioHandle) (string, error) {
	op := o.rec.Start("transcribe")
	op.SetInputSize(audio.Size)

	transcript, err := o.transcribeWindows(ctx, audio)
	if err == nil {
		op.SetOutputSize(int64(len(transcript)))
	}
	op.Complete(err == nil, err)
	o.saveOp(op)
	return transcript, err
}

func (o *Orchestrator) transcribeWindows(ctx context.Context, audio AudioHandle) (string, error) {
	windows := SplitDuration(audio.Duration, o.cfg.Window)
	if len(windows) == 0 {
		return "", fmt.Errorf("transcribeWindows: audio has no measurable duration: %s", audio.Path)
	}

	results := FanOut(ctx, windows, o.cfg.Concurrency, func(ctx context.Context, _ int, w TimeWindow) (string, error) {
		op := o.rec.Start("transcribe_chunk")
		op.AddMetric("window_start_seconds", w.Start.Seconds())

		text, _, err := retry.Run(ctx, o.cfg.Retry, func(ctx context.Context) (string, error) {
			return o.transcriber.Transcribe(ctx, audio, w)
		}, retry.WithOnRetry(func(error, int) { op.AddRetry() }))
		if err == nil {
			op.AddAPICall(0)
			op.SetOutputSize(int64(len(text)))
		}
		op.Complete(err == nil, err)
		o.saveOp(op)
		if err != nil {
			return "", fmt.Errorf("window %d (%s..%s): %w", w.Index, w.Start, w.End, err)
		}
		return text, nil
	})
	if err := FirstError(results); err != nil {
		return "", err
	}
	return MergeText(Values(results))
}

// analyzeTranscript chunks the transcript, analyzes each chunk, and merges
// the records. Any chunk failure fails the whole stage.
func (o *Orchestrator) analyzeTranscript(ctx context.Context, transcript, theme string) (Analysis, error) {
	op := o.rec.Start("analyze_transcript")
	op.SetInputSize(int64(len(transcript)))

	analysis, err := o.analyzeChunks(ctx, transcript, theme)
	op.Complete(err == nil, err)
	o.saveOp(op)
	return analysis, err
}

func (o *Orchestrator) analyzeChunks(ctx context.Context, transcript, theme string) (Analysis, error) {
	chunks := SplitText(transcript, o.cfg.ChunkBudget, o.cfg.SizeFunc)
	if len(chunks) == 0 {
		return Analysis{}, errors.New("analyzeChunks: empty transcript")
	}

	results := FanOut(ctx, chunks, o.cfg.Concurrency, func(ctx context.Context, _ int, chunk TextChunk) (Analysis, error) {
		op := o.rec.Start("analyze_chunk")
		op.SetInputSize(int64(chunk.Size))

		prompt := BuildAnalysisPrompt(chunk, len(chunks), theme)
		completion, _, err := retry.Run(ctx, o.cfg.Retry, func(ctx context.Context) (Completion, error) {
			return o.completer.Complete(ctx, prompt)
		}, retry.WithOnRetry(func(error, int) { op.AddRetry() }))
		if err != nil {
			op.Complete(false, err)
			o.saveOp(op)
			return Analysis{}, fmt.Errorf("chunk %d: %w", chunk.Index, err)
		}
		op.AddAPICall(completion.Tokens)
		op.SetOutputSize(int64(len(completion.Text)))

		var a Analysis
		if err := fileutil.DecodeModelJSON(completion.Text, &a); err != nil {
			err = fmt.Errorf("chunk %d: decode analysis: %w", chunk.Index, err)
			op.Complete(false, err)
			o.saveOp(op)
			return Analysis{}, err
		}
		op.Complete(true, nil)
		o.saveOp(op)
		return a, nil
	})
	if err := FirstError(results); err != nil {
		return Analysis{}, err
	}
	return MergeAnalyses(Values(results))
}

func (o *Orchestrator) consolidate(ctx context.Context, analyses []Analysis, theme string) (*ConsolidationResult, error) {
	op := o.rec.Start("consolidate")
	op.SetInputSize(int64(len(analyses)))

	prompt, err := BuildConsolidationPrompt(analyses, theme)
	if err != nil {
		op.Complete(false, err)
		o.saveOp(op)
		return nil, err
	}

	completion, _, err := retry.Run(ctx, o.cfg.Retry, func(ctx context.Context) (Completion, error) {
		return o.consolidator.Complete(ctx, prompt)
	}, retry.WithOnRetry(func(error, int) { op.AddRetry() }))
	if err != nil {
		op.Complete(false, err)
		o.saveOp(op)
		return nil, err
	}
	op.AddAPICall(completion.Tokens)
	op.SetOutputSize(int64(len(completion.Text)))

	var report ConsolidatedAnalysis
	if err := fileutil.DecodeModelJSON(completion.Text, &report); err != nil {
		err = fmt.Errorf("consolidate: decode report: %w", err)
		op.Complete(false, err)
		o.saveOp(op)
		return nil, err
	}
	if report.Theme == "" {
		report.Theme = theme
	}
	op.Complete(true, nil)
	o.saveOp(op)

	return &ConsolidationResult{Theme: theme, Analyses: analyses, Report: report}, nil
}

// cleanup releases extracted audio when the fetcher knows how.
func (o *Orchestrator) cleanup(audio AudioHandle, log *logrus.Entry) {
	c, ok := o.fetcher.(interface{ Cleanup(AudioHandle) error })
	if !ok {
		return
	}
	if err := c.Cleanup(audio); err != nil {
		log.WithField("path", audio.Path).WithField("error", err.Error()).Warn("audio cleanup failed")
	}
}

func (o *Orchestrator) saveOp(op *metrics.Operation) {
	if err := o.rec.Save(op); err != nil {
		o.log.WithField("operation", op.Name).WithField("error", err.Error()).Warn("saving metrics failed")
	}
}
