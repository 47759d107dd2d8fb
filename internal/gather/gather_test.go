package gather

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPreservesOrder(t *testing.T) {
	t.Parallel()

	tasks := []Task[int]{
		func(_ context.Context) (int, error) { time.Sleep(20 * time.Millisecond); return 1, nil },
		func(_ context.Context) (int, error) { return 2, nil },
		func(_ context.Context) (int, error) { time.Sleep(5 * time.Millisecond); return 3, nil },
	}

	results := All(context.Background(), 0, tasks...)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i+1, r.Value)
	}
}

func TestAllIsolatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tasks := []Task[string]{
		func(_ context.Context) (string, error) { return "country", nil },
		func(_ context.Context) (string, error) { return "", boom },
		func(_ context.Context) (string, error) { return "turnover", nil },
	}

	results := All(context.Background(), 0, tasks...)
	assert.Equal(t, "country", results[0].Value)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Equal(t, "turnover", results[2].Value)
	assert.NoError(t, results[2].Err)
}

func TestAllRecoversPanics(t *testing.T) {
	t.Parallel()

	tasks := []Task[*int]{
		func(_ context.Context) (*int, error) { panic("index out of range") },
		func(_ context.Context) (*int, error) { v := 42; return &v, nil },
	}

	results := All(context.Background(), 0, tasks...)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "panicked")
	assert.Nil(t, results[0].Value)
	require.NotNil(t, results[1].Value)
	assert.Equal(t, 42, *results[1].Value)
}

func TestAllRespectsLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32
	task := func(_ context.Context) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	}

	tasks := make([]Task[int], 10)
	for i := range tasks {
		tasks[i] = task
	}
	All(context.Background(), 2, tasks...)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestValuesSubstitutesFallback(t *testing.T) {
	t.Parallel()

	results := []Result[string]{
		{Value: "a"},
		{Err: errors.New("nope")},
	}

	var failed []int
	got := Values(results, "-", func(i int, _ error) { failed = append(failed, i) })
	assert.Equal(t, []string{"a", "-"}, got)
	assert.Equal(t, []int{1}, failed)
}
