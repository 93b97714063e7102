package pipeline

import (
	"context"
	"fmt"
	"time"
)

// ItemState tracks one source through the pipeline.
type ItemState string

const (
	StatePending      ItemState = "pending"
	StateExtracting   ItemState = "extracting"
	StateExtracted    ItemState = "extracted"
	StateTranscribing ItemState = "transcribing"
	StateTranscribed  ItemState = "transcribed"
	StateAnalyzing    ItemState = "analyzing"
	StateCompleted    ItemState = "completed"
	StateFailed       ItemState = "failed"
)

// Terminal reports whether no further transition can follow.
func (s ItemState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// AudioHandle points at extracted audio on disk.
type AudioHandle struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
	Size     int64         `json:"size"`
}

// TimeWindow is one transcription slice of an audio file.
type TimeWindow struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
}

// MediaFetcher turns a source reference (a video URL) into local audio.
type MediaFetcher interface {
	Fetch(ctx context.Context, ref string) (AudioHandle, error)
}

// SpeechTranscriber transcribes one time window of an audio file.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audio AudioHandle, window TimeWindow) (string, error)
}

// Completion is a model text response plus its token usage.
type Completion struct {
	Text   string
	Tokens int
}

// TextCompletion produces a completion for a prompt.
type TextCompletion interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// Analysis is the structured record produced for one hearing. Identification,
// participants, and structure describe the hearing as a whole; the list
// fields accumulate across transcript chunks.
type Analysis struct {
	Identification string   `json:"identification"`
	Participants   []string `json:"participants"`
	Structure      string   `json:"structure"`

	Summary     []string `json:"summary"`
	Exchanges   []string `json:"exchanges"`
	Quotes      []string `json:"quotes"`
	Issues      []string `json:"issues"`
	Positions   []string `json:"positions"`
	WeakSignals []string `json:"weak_signals"`
	Annexes     []string `json:"annexes"`
}

// ConsolidatedAnalysis is the cross-hearing report built from several
// completed analyses around one theme.
type ConsolidatedAnalysis struct {
	Theme         string   `json:"theme"`
	Introduction  string   `json:"introduction"`
	Hearings      []string `json:"hearings"`
	KeyIssues     []string `json:"key_issues"`
	Positions     []string `json:"positions"`
	Controversies []string `json:"controversies"`
	PolicyActions []string `json:"policy_actions"`
	WeakSignals   []string `json:"weak_signals"`
	Conclusion    string   `json:"conclusion"`
}

// ConsolidationResult pairs the consolidated report with its inputs.
type ConsolidationResult struct {
	Theme    string               `json:"theme"`
	Analyses []Analysis           `json:"analyses"`
	Report   ConsolidatedAnalysis `json:"report"`
}

// ItemResult is the terminal outcome for one source.
type ItemResult struct {
	Ref        string    `json:"ref"`
	State      ItemState `json:"state"`
	Transcript string    `json:"transcript,omitempty"`
	Analysis   *Analysis `json:"analysis,omitempty"`
	Err        error     `json:"-"`
	Error      string    `json:"error,omitempty"`
}

// Outcome is the result of one pipeline run over a batch of sources.
type Outcome struct {
	Items        []ItemResult         `json:"items"`
	Consolidated *ConsolidationResult `json:"consolidated,omitempty"`
	// SkipReason explains why no consolidation ran (single item, failed
	// items, or a consolidation error).
	SkipReason string `json:"skip_reason,omitempty"`
}

// StageError names the pipeline stage an item failed in.
type StageError struct {
	Stage string
	Ref   string
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Ref, e.Cause)
}

func (e *StageError) Unwrap() error { return e.Cause }
