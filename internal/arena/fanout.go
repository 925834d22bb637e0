package arena

import (
	"context"
	"sync"
	"time"
)

// settled is one branch outcome from a fan-out.
type settled[T any] struct {
	id  string
	val T
	err error
}

// fanOut starts every branch concurrently and waits for all to settle.
// Each branch races against its own timeout; when the timeout wins the
// late response is discarded by the branch itself (its context is done),
// never merged into finalized state. Cancellation is cooperative: we stop
// waiting, we do not kill requests.
func fanOut[T any](ctx context.Context, ids []string, timeout time.Duration, call func(ctx context.Context, id string) (T, error)) []settled[T] {
	results := make([]settled[T], len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			branchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			val, err := call(branchCtx, id)
			results[i] = settled[T]{id: id, val: val, err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}
