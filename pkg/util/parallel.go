package util

import (
	"context"
	"sync"
)

// ParallelMap applies fn to every input using at most workerLimit goroutines
// and returns the results in input order. The first error cancels the
// remaining work and is returned; partial results are discarded.
func ParallelMap[T, R any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(inputs) == 0 {
		return []R{}, nil
	}
	if workerLimit <= 0 {
		workerLimit = 1
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	type job struct {
		idx  int
		item T
	}

	results := make([]R, len(inputs))
	jobs := make(chan job)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for range min(workerLimit, len(inputs)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				r, err := fn(ctx, j.item)
				if err != nil {
					select {
					case errCh <- err:
						cancel()
					default:
					}
					return
				}
				results[j.idx] = r
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, item := range inputs {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{idx: i, item: item}:
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
