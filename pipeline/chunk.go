package pipeline

import (
	"strings"
	"time"
	"unicode"
)

// DefaultWindow is the transcription slice length for long recordings.
const DefaultWindow = 600 * time.Second

// TextChunk is one bounded slice of a longer transcript. Sentences within a
// chunk are joined by a single space, so a single-space-separated input
// survives a split followed by MergeText unchanged.
type TextChunk struct {
	Index int
	Text  string
	Size  int
}

// SizeFunc measures a piece of text against the chunk budget. A nil SizeFunc
// measures bytes.
type SizeFunc func(string) int

// SplitText cuts text into chunks of at most budget measured units without
// ever splitting a sentence. A single sentence over budget becomes its own
// chunk. A budget <= 0 returns the whole text as one chunk.
func SplitText(text string, budget int, size SizeFunc) []TextChunk {
	if size == nil {
		size = func(s string) int { return len(s) }
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if budget <= 0 {
		return []TextChunk{{Index: 0, Text: text, Size: size(text)}}
	}

	sentences := splitSentences(text)

	var chunks []TextChunk
	cur := ""
	flush := func() {
		if cur == "" {
			return
		}
		chunks = append(chunks, TextChunk{Index: len(chunks), Text: cur, Size: size(cur)})
		cur = ""
	}

	for _, s := range sentences {
		candidate := s
		if cur != "" {
			candidate = cur + " " + s
		}
		if cur != "" && size(candidate) > budget {
			flush()
			cur = s
			continue
		}
		cur = candidate
	}
	flush()
	return chunks
}

// splitSentences cuts on '.', '!', or '?' followed by whitespace or end of
// input, keeping the terminator attached to its sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)

	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) {
			continue
		}
		// Consume a run of terminators ("..." or "?!").
		for i+1 < len(runes) && isSentenceEnd(runes[i+1]) {
			i++
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start : i+1]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// SplitDuration cuts a recording into consecutive fixed windows, truncating
// the last one. A window <= 0 uses DefaultWindow. A total <= 0 yields no
// windows.
func SplitDuration(total, window time.Duration) []TimeWindow {
	if total <= 0 {
		return nil
	}
	if window <= 0 {
		window = DefaultWindow
	}

	var windows []TimeWindow
	for start := time.Duration(0); start < total; start += window {
		end := start + window
		if end > total {
			end = total
		}
		windows = append(windows, TimeWindow{Index: len(windows), Start: start, End: end})
	}
	return windows
}
