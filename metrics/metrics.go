// Package metrics records per-operation runtime metrics as JSON files and
// summarizes them across runs.
package metrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kevinaie18/intelligence/fileutil"
)

// Operation is one recorded operation. A record is persisted only after it
// has been finalized with Complete (Save finalizes as a success if the
// caller did not).
type Operation struct {
	Name            string             `json:"operation"`
	StartTime       time.Time          `json:"start_time"`
	EndTime         *time.Time         `json:"end_time,omitempty"`
	DurationSeconds float64            `json:"duration"`
	Success         bool               `json:"success"`
	Error           string             `json:"error,omitempty"`
	Retries         int                `json:"retries"`
	InputSize       *int64             `json:"input_size,omitempty"`
	OutputSize      *int64             `json:"output_size,omitempty"`
	APICalls        int                `json:"api_calls"`
	APITokens       int                `json:"api_tokens"`
	Custom          map[string]float64 `json:"custom_metrics,omitempty"`

	done bool
}

// AddRetry bumps the retry counter. Wire it to the retry observer.
func (o *Operation) AddRetry() { o.Retries++ }

// AddAPICall counts one remote call and its token usage.
func (o *Operation) AddAPICall(tokens int) {
	o.APICalls++
	o.APITokens += tokens
}

func (o *Operation) SetInputSize(n int64)  { o.InputSize = &n }
func (o *Operation) SetOutputSize(n int64) { o.OutputSize = &n }

func (o *Operation) AddMetric(name string, value float64) {
	if o.Custom == nil {
		o.Custom = make(map[string]float64)
	}
	o.Custom[name] = value
}

// Complete finalizes the record exactly once; later calls are no-ops.
func (o *Operation) Complete(success bool, err error) {
	if o.done {
		return
	}
	o.done = true
	now := time.Now().UTC()
	o.EndTime = &now
	o.DurationSeconds = now.Sub(o.StartTime).Seconds()
	o.Success = success
	if err != nil {
		o.Error = err.Error()
	}
}

// Summary aggregates the records of one operation (or all of them).
type Summary struct {
	TotalOperations        int     `json:"total_operations"`
	SuccessRate            float64 `json:"success_rate"`
	AverageDurationSeconds float64 `json:"average_duration"`
	AverageRetries         float64 `json:"average_retries"`
	TotalAPICalls          int     `json:"total_api_calls"`
	TotalAPITokens         int     `json:"total_api_tokens"`
}

// Recorder persists operation records under a single directory, one JSON
// file per record.
type Recorder struct {
	dir string
	log *logrus.Entry
}

func NewRecorder(dir string, log *logrus.Entry) (*Recorder, error) {
	if dir == "" {
		return nil, errors.New("NewRecorder: dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("NewRecorder: mkdir: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Recorder{dir: dir, log: log}, nil
}

func (r *Recorder) Dir() string { return r.dir }

// Start begins a record for the named operation.
func (r *Recorder) Start(name string) *Operation {
	return &Operation{Name: name, StartTime: time.Now().UTC()}
}

// Save finalizes the record if needed and writes it atomically. The filename
// carries the operation name, the start instant, and a uuid token so
// concurrent records of the same operation never collide.
func (r *Recorder) Save(op *Operation) error {
	if op == nil {
		return errors.New("Save: nil operation")
	}
	if op.Name == "" {
		return errors.New("Save: operation has no name")
	}
	op.Complete(true, nil)

	name := fmt.Sprintf("%s_%s_%s.json",
		op.Name,
		op.StartTime.Format("20060102_150405"),
		uuid.NewString()[:8])
	path := filepath.Join(r.dir, name)
	if err := fileutil.WriteJSONFileAtomic(path, op, true); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Summarize aggregates every readable record whose operation field matches
// the given name (empty = all). Malformed files are logged and skipped.
func (r *Recorder) Summarize(operation string) (Summary, error) {
	recs, err := r.load(operation)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{TotalOperations: len(recs)}
	if len(recs) == 0 {
		return s, nil
	}

	var succeeded int
	var totalDuration, totalRetries float64
	for _, rec := range recs {
		if rec.Success {
			succeeded++
		}
		totalDuration += rec.DurationSeconds
		totalRetries += float64(rec.Retries)
		s.TotalAPICalls += rec.APICalls
		s.TotalAPITokens += rec.APITokens
	}
	n := float64(len(recs))
	s.SuccessRate = float64(succeeded) / n
	s.AverageDurationSeconds = totalDuration / n
	s.AverageRetries = totalRetries / n
	return s, nil
}

// ListOperations returns the distinct operation names present, sorted.
func (r *Recorder) ListOperations() ([]string, error) {
	recs, err := r.load("")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(recs))
	var names []string
	for _, rec := range recs {
		if _, ok := seen[rec.Name]; ok {
			continue
		}
		seen[rec.Name] = struct{}{}
		names = append(names, rec.Name)
	}
	sort.Strings(names)
	return names, nil
}

// PurgeOlderThan removes record files whose modification time is older than
// now-age and returns how many were removed.
func (r *Recorder) PurgeOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, fmt.Errorf("PurgeOlderThan: read dir: %w", err)
	}
	cutoff := time.Now().Add(-age)

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			r.log.WithField("file", e.Name()).WithField("error", err.Error()).Warn("skipping unreadable metrics file")
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("PurgeOlderThan: remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (r *Recorder) load(operation string) ([]Operation, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("load metrics: read dir: %w", err)
	}

	var recs []Operation
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		var rec Operation
		if err := fileutil.ReadJSONFile(filepath.Join(r.dir, e.Name()), &rec); err != nil {
			r.log.WithField("file", e.Name()).WithField("error", err.Error()).Warn("skipping malformed metrics file")
			continue
		}
		if rec.Name == "" {
			r.log.WithField("file", e.Name()).Warn("skipping metrics file without operation name")
			continue
		}
		if operation != "" && rec.Name != operation {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
