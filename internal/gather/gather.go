// Package gather runs independent tasks concurrently and collects every
// outcome, so one failing task never cancels its siblings.
package gather

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Task produces one value.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of one task.
type Result[T any] struct {
	Value T
	Err   error
}

// All runs tasks concurrently with at most limit in flight (limit <= 0 means
// unbounded) and returns one Result per task, aligned with the input. A task
// that returns an error or panics yields the zero value and a non-nil Err.
func All[T any](ctx context.Context, limit int, tasks ...Task[T]) []Result[T] {
	results := make([]Result[T], len(tasks))

	g, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, task := range tasks {
		g.Go(func() error {
			results[i] = run(gCtx, i, task)
			return nil // never fail the group
		})
	}
	_ = g.Wait()

	return results
}

// Values returns the values of results, substituting fallback for each
// failed task and reporting failures to onErr when it is non-nil.
func Values[T any](results []Result[T], fallback T, onErr func(i int, err error)) []T {
	out := make([]T, len(results))
	for i, r := range results {
		if r.Err != nil {
			out[i] = fallback
			if onErr != nil {
				onErr(i, r.Err)
			}
			continue
		}
		out[i] = r.Value
	}
	return out
}

func run[T any](ctx context.Context, i int, task Task[T]) (res Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			var zero T
			res = Result[T]{Value: zero, Err: eris.Errorf("gather: task %d panicked: %v", i, p)}
		}
	}()

	v, err := task(ctx)
	if err != nil {
		var zero T
		return Result[T]{Value: zero, Err: err}
	}
	return Result[T]{Value: v}
}
