package pipeline

import (
	"errors"
	"testing"
)

func chunkAnalysis(id string, tag string) Analysis {
	return Analysis{
		Identification: id,
		Participants:   []string{"Chair", "Witness"},
		Structure:      "opening, questions, closing",
		Summary:        []string{tag + " summary"},
		Exchanges:      []string{tag + " exchange"},
		Quotes:         []string{tag + " quote"},
		Issues:         []string{tag + " issue"},
		Positions:      []string{tag + " position"},
		WeakSignals:    []string{tag + " signal"},
		Annexes:        []string{tag + " annex"},
	}
}

func TestMergeText_JoinsInOrder(t *testing.T) {
	t.Parallel()

	got, err := MergeText([]string{"part one.", "part two.", "part three."})
	if err != nil {
		t.Fatalf("MergeText: %v", err)
	}
	want := "part one. part two. part three."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMergeText_EmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := MergeText(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err=%v, want ErrEmptyInput", err)
	}
}

func TestMergeAnalyses_ScalarsFromFirstListsConcatenated(t *testing.T) {
	t.Parallel()

	a := chunkAnalysis("Hearing of 2024-03-12, finance committee", "a")
	b := chunkAnalysis("wrong id from chunk two", "b")
	b.Participants = []string{"Someone Else"}

	merged, err := MergeAnalyses([]Analysis{a, b})
	if err != nil {
		t.Fatalf("MergeAnalyses: %v", err)
	}

	if merged.Identification != a.Identification {
		t.Fatalf("Identification=%q, want first chunk's", merged.Identification)
	}
	if len(merged.Participants) != 2 || merged.Participants[0] != "Chair" {
		t.Fatalf("Participants=%v, want first chunk's verbatim", merged.Participants)
	}
	if merged.Structure != a.Structure {
		t.Fatalf("Structure=%q, want first chunk's", merged.Structure)
	}

	if len(merged.Summary) != 2 || merged.Summary[0] != "a summary" || merged.Summary[1] != "b summary" {
		t.Fatalf("Summary=%v, want [a summary b summary]", merged.Summary)
	}
	if len(merged.Quotes) != 2 || merged.Quotes[1] != "b quote" {
		t.Fatalf("Quotes=%v, want concatenated in chunk order", merged.Quotes)
	}
	if len(merged.WeakSignals) != 2 {
		t.Fatalf("WeakSignals=%v, want 2 entries", merged.WeakSignals)
	}
}

func TestMergeAnalyses_MissingListFieldIsSchemaError(t *testing.T) {
	t.Parallel()

	a := chunkAnalysis("id", "a")
	b := chunkAnalysis("id", "b")
	b.Quotes = nil

	_, err := MergeAnalyses([]Analysis{a, b})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err=%v, want SchemaError", err)
	}
	if schemaErr.ChunkIndex != 1 || schemaErr.Field != "quotes" {
		t.Fatalf("SchemaError=%+v, want chunk 1 field quotes", schemaErr)
	}
}

func TestMergeAnalyses_MissingScalarOnFirstIsSchemaError(t *testing.T) {
	t.Parallel()

	a := chunkAnalysis("", "a")
	_, err := MergeAnalyses([]Analysis{a})

	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("err=%v, want SchemaError", err)
	}
	if schemaErr.ChunkIndex != 0 || schemaErr.Field != "identification" {
		t.Fatalf("SchemaError=%+v, want chunk 0 field identification", schemaErr)
	}
}

func TestMergeAnalyses_EmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := MergeAnalyses(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err=%v, want ErrEmptyInput", err)
	}
}

func TestMergeAnalyses_EmptyListsStayEmpty(t *testing.T) {
	t.Parallel()

	a := chunkAnalysis("id", "a")
	a.Annexes = []string{}

	merged, err := MergeAnalyses([]Analysis{a})
	if err != nil {
		t.Fatalf("MergeAnalyses: %v", err)
	}
	if merged.Annexes == nil || len(merged.Annexes) != 0 {
		t.Fatalf("Annexes=%v, want empty non-nil", merged.Annexes)
	}
}
