package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestFanOut_IsolatesFailuresAndKeepsOrder(t *testing.T) {
	t.Parallel()

	items := []int{10, 20, 30, 40, 50}
	boom := errors.New("boom")

	results := FanOut(context.Background(), items, 2, func(_ context.Context, i int, item int) (string, error) {
		if i == 3 {
			return "", boom
		}
		// Later items finish first so ordering has to come from indexing.
		time.Sleep(time.Duration(len(items)-i) * time.Millisecond)
		return fmt.Sprintf("v%d", item), nil
	})

	if len(results) != len(items) {
		t.Fatalf("len(results)=%d, want %d", len(results), len(items))
	}
	for i, r := range results {
		if r.Index != i {
			t.Fatalf("results[%d].Index=%d, want %d", i, r.Index, i)
		}
	}
	if !errors.Is(results[3].Err, boom) {
		t.Fatalf("results[3].Err=%v, want boom", results[3].Err)
	}
	for _, i := range []int{0, 1, 2, 4} {
		if results[i].Err != nil {
			t.Fatalf("results[%d].Err=%v, want nil (failure must not spread)", i, results[i].Err)
		}
		if want := fmt.Sprintf("v%d", items[i]); results[i].Value != want {
			t.Fatalf("results[%d].Value=%q, want %q", i, results[i].Value, want)
		}
	}
	if err := FirstError(results); !errors.Is(err, boom) {
		t.Fatalf("FirstError=%v, want boom", err)
	}
}

func TestFanOut_RespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	const limit = 2
	var inFlight, peak int64

	items := make([]int, 10)
	FanOut(context.Background(), items, limit, func(_ context.Context, _ int, _ int) (struct{}, error) {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return struct{}{}, nil
	})

	if peak > limit {
		t.Fatalf("peak concurrency=%d, want <= %d", peak, limit)
	}
}

func TestFanOut_EmptyInput(t *testing.T) {
	t.Parallel()

	results := FanOut(context.Background(), []int(nil), 0, func(_ context.Context, _ int, _ int) (int, error) {
		return 0, nil
	})
	if len(results) != 0 {
		t.Fatalf("len(results)=%d, want 0", len(results))
	}
}

func TestValues_ExtractsInOrder(t *testing.T) {
	t.Parallel()

	results := []Result[int]{{Index: 0, Value: 1}, {Index: 1, Value: 2}}
	vs := Values(results)
	if len(vs) != 2 || vs[0] != 1 || vs[1] != 2 {
		t.Fatalf("Values=%v, want [1 2]", vs)
	}
}
