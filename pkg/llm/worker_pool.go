package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// WorkerPool bounds the number of in-flight model calls with a semaphore.
type WorkerPool struct {
	maxConcurrent int
	logger        *zap.Logger
}

func NewWorkerPool(maxConcurrent int, logger *zap.Logger) *WorkerPool {
	if maxConcurrent < 1 {
		maxConcurrent = 8
	}
	return &WorkerPool{
		maxConcurrent: maxConcurrent,
		logger:        logger.Named("llm-pool"),
	}
}

// WorkResult pairs an item's result with its submission index, so callers
// can reassemble outputs in input order.
type WorkResult[T any] struct {
	Index  int
	Result T
	Err    error
}

// Process runs every item with bounded parallelism and returns results
// indexed by submission order. All items run even when some fail; each
// item's error is recorded in its slot.
func Process[T any](ctx context.Context, pool *WorkerPool, items []func(ctx context.Context) (T, error)) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	sem := make(chan struct{}, pool.maxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item func(ctx context.Context) (T, error)) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = WorkResult[T]{Index: i, Err: ctx.Err()}
				return
			}

			result, err := item(ctx)
			results[i] = WorkResult[T]{Index: i, Result: result, Err: err}
		}(i, item)
	}
	wg.Wait()

	return results
}
