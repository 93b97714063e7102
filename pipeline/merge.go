package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyInput is returned when a merge is asked to combine zero chunks.
var ErrEmptyInput = errors.New("no chunks to merge")

// SchemaError reports a chunk record missing an expected field.
type SchemaError struct {
	ChunkIndex int
	Field      string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("chunk %d: missing field %q", e.ChunkIndex, e.Field)
}

// MergeText joins chunk transcripts in index order with a single space.
func MergeText(parts []string) (string, error) {
	if len(parts) == 0 {
		return "", ErrEmptyInput
	}
	return strings.Join(parts, " "), nil
}

// MergeAnalyses combines per-chunk analyses of one hearing: the scalar
// fields (identification, participants, structure) come verbatim from the
// first chunk, and every list field is concatenated in chunk order.
func MergeAnalyses(parts []Analysis) (Analysis, error) {
	if len(parts) == 0 {
		return Analysis{}, ErrEmptyInput
	}

	first := parts[0]
	if first.Identification == "" {
		return Analysis{}, &SchemaError{ChunkIndex: 0, Field: "identification"}
	}
	if first.Participants == nil {
		return Analysis{}, &SchemaError{ChunkIndex: 0, Field: "participants"}
	}
	if first.Structure == "" {
		return Analysis{}, &SchemaError{ChunkIndex: 0, Field: "structure"}
	}

	merged := Analysis{
		Identification: first.Identification,
		Participants:   append([]string(nil), first.Participants...),
		Structure:      first.Structure,

		Summary:     []string{},
		Exchanges:   []string{},
		Quotes:      []string{},
		Issues:      []string{},
		Positions:   []string{},
		WeakSignals: []string{},
		Annexes:     []string{},
	}

	// A nil list means the field was absent from the chunk's JSON; decoded
	// empty arrays are non-nil.
	for i, p := range parts {
		for _, f := range []struct {
			name string
			src  []string
			dst  *[]string
		}{
			{"summary", p.Summary, &merged.Summary},
			{"exchanges", p.Exchanges, &merged.Exchanges},
			{"quotes", p.Quotes, &merged.Quotes},
			{"issues", p.Issues, &merged.Issues},
			{"positions", p.Positions, &merged.Positions},
			{"weak_signals", p.WeakSignals, &merged.WeakSignals},
			{"annexes", p.Annexes, &merged.Annexes},
		} {
			if f.src == nil {
				return Analysis{}, &SchemaError{ChunkIndex: i, Field: f.name}
			}
			*f.dst = append(*f.dst, f.src...)
		}
	}
	return merged, nil
}
