package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func TestProcessPreservesSubmissionOrder(t *testing.T) {
	pool := NewWorkerPool(4, zap.NewNop())

	items := make([]func(ctx context.Context) (string, error), 10)
	for i := range items {
		i := i
		items[i] = func(_ context.Context) (string, error) {
			return fmt.Sprintf("chunk-%d", i), nil
		}
	}

	results := Process(context.Background(), pool, items)
	if len(results) != 10 {
		t.Fatalf("got %d results, want 10", len(results))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("item %d failed: %v", i, r.Err)
		}
		if want := fmt.Sprintf("chunk-%d", i); r.Result != want {
			t.Errorf("result[%d] = %q, want %q", i, r.Result, want)
		}
	}
}

func TestProcessBoundsConcurrency(t *testing.T) {
	const limit = 2
	pool := NewWorkerPool(limit, zap.NewNop())

	var inFlight, peak atomic.Int32
	gate := make(chan struct{})

	items := make([]func(ctx context.Context) (int, error), 8)
	for i := range items {
		items[i] = func(_ context.Context) (int, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-gate
			inFlight.Add(-1)
			return 0, nil
		}
	}

	done := make(chan []WorkResult[int])
	go func() {
		done <- Process(context.Background(), pool, items)
	}()

	close(gate)
	<-done

	if p := peak.Load(); p > limit {
		t.Errorf("peak concurrency %d exceeded limit %d", p, limit)
	}
}

func TestProcessRecordsPerItemErrors(t *testing.T) {
	pool := NewWorkerPool(4, zap.NewNop())
	boom := errors.New("boom")

	items := []func(ctx context.Context) (int, error){
		func(_ context.Context) (int, error) { return 1, nil },
		func(_ context.Context) (int, error) { return 0, boom },
		func(_ context.Context) (int, error) { return 3, nil },
	}

	results := Process(context.Background(), pool, items)
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("healthy items should not fail")
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("results[1].Err = %v, want boom", results[1].Err)
	}
	if results[0].Result != 1 || results[2].Result != 3 {
		t.Errorf("results out of order: %+v", results)
	}
}

func TestProcessEmpty(t *testing.T) {
	pool := NewWorkerPool(4, zap.NewNop())
	if results := Process[int](context.Background(), pool, nil); results != nil {
		t.Errorf("expected nil for no items, got %v", results)
	}
}
