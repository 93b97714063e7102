package pipeline

import (
	"strings"
	"testing"
	"time"
)

func TestSplitText_NoMidSentenceSplits(t *testing.T) {
	t.Parallel()

	text := "First sentence here. Second one follows! Third asks a question? Fourth closes."
	chunks := SplitText(text, 45, nil)

	if len(chunks) < 2 {
		t.Fatalf("len(chunks)=%d, want >= 2", len(chunks))
	}
	for _, c := range chunks {
		if c.Size > 45 && strings.Count(c.Text, ".")+strings.Count(c.Text, "!")+strings.Count(c.Text, "?") > 1 {
			t.Fatalf("chunk %d over budget with multiple sentences: %q", c.Index, c.Text)
		}
		last := c.Text[len(c.Text)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Fatalf("chunk %d split mid-sentence: %q", c.Index, c.Text)
		}
	}
}

func TestSplitText_MergeRoundTrip(t *testing.T) {
	t.Parallel()

	text := "Alpha speaks first. Beta answers at length! Gamma objects? Delta concludes the session."
	chunks := SplitText(text, 30, nil)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks)=%d, want >= 2", len(chunks))
	}

	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	merged, err := MergeText(parts)
	if err != nil {
		t.Fatalf("MergeText: %v", err)
	}
	if merged != text {
		t.Fatalf("round trip mismatch:\n got %q\nwant %q", merged, text)
	}
}

func TestSplitText_OversizedSentenceGetsOwnChunk(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 30) + "end."
	text := "Short one. " + long + " Short two."
	chunks := SplitText(text, 40, nil)

	found := false
	for _, c := range chunks {
		if c.Text == long {
			found = true
			if c.Size <= 40 {
				t.Fatalf("oversized chunk size=%d, want > 40", c.Size)
			}
		}
	}
	if !found {
		t.Fatalf("oversized sentence not isolated; chunks=%d", len(chunks))
	}
}

func TestSplitText_CustomSizeFunc(t *testing.T) {
	t.Parallel()

	words := func(s string) int { return len(strings.Fields(s)) }
	text := "One two three. Four five. Six seven eight nine."
	chunks := SplitText(text, 5, words)

	if len(chunks) != 2 {
		t.Fatalf("len(chunks)=%d, want 2", len(chunks))
	}
	if chunks[0].Text != "One two three. Four five." {
		t.Fatalf("chunk0=%q", chunks[0].Text)
	}
	if chunks[1].Text != "Six seven eight nine." {
		t.Fatalf("chunk1=%q", chunks[1].Text)
	}
}

func TestSplitText_EmptyInput(t *testing.T) {
	t.Parallel()

	if chunks := SplitText("   ", 100, nil); chunks != nil {
		t.Fatalf("chunks=%v, want nil", chunks)
	}
}

func TestSplitDuration_WindowsAndTruncation(t *testing.T) {
	t.Parallel()

	windows := SplitDuration(1500*time.Second, 600*time.Second)
	if len(windows) != 3 {
		t.Fatalf("len(windows)=%d, want 3", len(windows))
	}
	if windows[0].Start != 0 || windows[0].End != 600*time.Second {
		t.Fatalf("window0=%v..%v, want 0..600s", windows[0].Start, windows[0].End)
	}
	if windows[2].Start != 1200*time.Second || windows[2].End != 1500*time.Second {
		t.Fatalf("window2=%v..%v, want 1200s..1500s", windows[2].Start, windows[2].End)
	}
}

func TestSplitDuration_DefaultWindowAndEmpty(t *testing.T) {
	t.Parallel()

	windows := SplitDuration(700*time.Second, 0)
	if len(windows) != 2 {
		t.Fatalf("len(windows)=%d, want 2 with the default window", len(windows))
	}
	if windows[0].End != DefaultWindow {
		t.Fatalf("window0.End=%v, want %v", windows[0].End, DefaultWindow)
	}

	if w := SplitDuration(0, 600*time.Second); w != nil {
		t.Fatalf("windows=%v, want nil for zero total", w)
	}
}
