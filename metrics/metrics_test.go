package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	rec, err := NewRecorder(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return rec
}

func TestSummarize_SuccessRateAndTotals(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(t)
	for i := 0; i < 10; i++ {
		op := rec.Start("transcribe")
		op.AddAPICall(100)
		if i < 7 {
			op.Complete(true, nil)
		} else {
			op.Complete(false, errors.New("boom"))
		}
		if err := rec.Save(op); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	s, err := rec.Summarize("transcribe")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.TotalOperations != 10 {
		t.Fatalf("TotalOperations=%d, want 10", s.TotalOperations)
	}
	if s.SuccessRate != 0.7 {
		t.Fatalf("SuccessRate=%v, want 0.7", s.SuccessRate)
	}
	if s.TotalAPICalls != 10 {
		t.Fatalf("TotalAPICalls=%d, want 10", s.TotalAPICalls)
	}
	if s.TotalAPITokens != 1000 {
		t.Fatalf("TotalAPITokens=%d, want 1000", s.TotalAPITokens)
	}
}

func TestSummarize_SkipsMalformedFiles(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(t)
	op := rec.Start("analyze_chunk")
	if err := rec.Save(op); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(rec.Dir(), "garbage.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	s, err := rec.Summarize("")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.TotalOperations != 1 {
		t.Fatalf("TotalOperations=%d, want 1", s.TotalOperations)
	}
}

func TestSummarize_FiltersOnRecordOperation(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(t)
	for _, name := range []string{"transcribe", "transcribe_chunk", "transcribe_chunk"} {
		if err := rec.Save(rec.Start(name)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	s, err := rec.Summarize("transcribe")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.TotalOperations != 1 {
		t.Fatalf("TotalOperations=%d, want 1 (prefix must not match transcribe_chunk)", s.TotalOperations)
	}
}

func TestOperation_CompleteIsFinalizedOnce(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(t)
	op := rec.Start("extract_audio")
	op.Complete(false, errors.New("boom"))
	op.Complete(true, nil)

	if op.Success {
		t.Fatalf("second Complete overwrote the record")
	}
	if op.Error != "boom" {
		t.Fatalf("Error=%q, want boom", op.Error)
	}
}

func TestSave_UniqueFilenamesForConcurrentRecords(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(t)
	for i := 0; i < 5; i++ {
		op := rec.Start("analyze_chunk")
		if err := rec.Save(op); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	entries, err := os.ReadDir(rec.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("len(entries)=%d, want 5", len(entries))
	}
}

func TestListOperations_DistinctSorted(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(t)
	for _, name := range []string{"transcribe", "analyze_chunk", "transcribe"} {
		if err := rec.Save(rec.Start(name)); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	names, err := rec.ListOperations()
	if err != nil {
		t.Fatalf("ListOperations: %v", err)
	}
	if len(names) != 2 || names[0] != "analyze_chunk" || names[1] != "transcribe" {
		t.Fatalf("names=%v, want [analyze_chunk transcribe]", names)
	}
}

func TestPurgeOlderThan_RemovesOnlyOldFiles(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(t)
	if err := rec.Save(rec.Start("keep")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	old := rec.Start("purge")
	if err := rec.Save(old); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(rec.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	stale := time.Now().Add(-2 * time.Hour)
	for _, e := range entries {
		if len(e.Name()) >= 5 && e.Name()[:5] == "purge" {
			if err := os.Chtimes(filepath.Join(rec.Dir(), e.Name()), stale, stale); err != nil {
				t.Fatalf("Chtimes: %v", err)
			}
		}
	}

	removed, err := rec.PurgeOlderThan(time.Hour)
	if err != nil {
		t.Fatalf("PurgeOlderThan: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed=%d, want 1", removed)
	}

	s, err := rec.Summarize("")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.TotalOperations != 1 {
		t.Fatalf("TotalOperations=%d, want 1 after purge", s.TotalOperations)
	}
}
