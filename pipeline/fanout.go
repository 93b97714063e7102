package pipeline

import (
	"context"
	"sync"
)

// DefaultConcurrency bounds how many items run at once when the caller does
// not say otherwise.
const DefaultConcurrency = 3

// Result pairs an input index with either a value or the failure that
// produced it.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// FanOut runs fn over every item with at most limit in flight. One item's
// failure never cancels its siblings; results come back in input order with
// per-item errors.
func FanOut[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, index int, item T) (R, error)) []Result[R] {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result[R], len(items))
	sem := make(chan struct{}, limit)

	wg := sync.WaitGroup{}
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			v, err := fn(ctx, i, item)
			results[i] = Result[R]{Index: i, Value: v, Err: err}
		}(i, item)
	}
	wg.Wait()
	return results
}

// FirstError returns the lowest-index failure, or nil when every item
// succeeded.
func FirstError[R any](results []Result[R]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Values extracts the result values in input order. Callers should check
// FirstError first.
func Values[R any](results []Result[R]) []R {
	out := make([]R, len(results))
	for i, r := range results {
		out[i] = r.Value
	}
	return out
}
