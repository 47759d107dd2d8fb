package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/mne-enrich/internal/model"
)

// Observer is notified as entities complete. Calls may come from several
// goroutines.
type Observer interface {
	EntityDone(done, total int, e model.Entity, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(done, total int, e model.Entity, err error)

// EntityDone implements Observer.
func (f ObserverFunc) EntityDone(done, total int, e model.Entity, err error) {
	f(done, total, e, err)
}

// LogObserver logs progress every n entities and on failures.
func LogObserver(every int) Observer {
	if every <= 0 {
		every = 1
	}
	return ObserverFunc(func(done, total int, e model.Entity, err error) {
		if err != nil {
			zap.L().Warn("pipeline: entity failed", zap.Int("entity_id", e.ID), zap.Error(err))
		}
		if done%every == 0 || done == total {
			zap.L().Info("pipeline: progress", zap.Int("done", done), zap.Int("total", total))
		}
	})
}

// BatchResult is the outcome of ProcessAll.
type BatchResult struct {
	RunID   string
	Results []model.EntityResult
}

// ProcessAll enriches entities concurrently. Results keep the input order;
// an entity whose processing failed yields a result with only its Entity
// set. The batch stops early only on a fatal error (a cache write failure
// or a store write failure). When a store is configured the run and every
// result are persisted.
func (p *Pipeline) ProcessAll(ctx context.Context, source string, entities []model.Entity, obs Observer) (*BatchResult, error) {
	out := &BatchResult{Results: make([]model.EntityResult, len(entities))}

	if p.store != nil {
		run, err := p.store.CreateRun(ctx, source, len(entities))
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		out.RunID = run.ID
	}

	zap.L().Info("pipeline: processing batch",
		zap.String("run_id", out.RunID),
		zap.Int("entities", len(entities)),
		zap.Int("concurrency", p.concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	var done atomic.Int64
	for i, e := range entities {
		g.Go(func() error {
			res, err := p.Process(gctx, e)
			if err != nil {
				if obs != nil {
					obs.EntityDone(int(done.Add(1)), len(entities), e, err)
				}
				return err
			}
			out.Results[i] = *res

			if p.store != nil {
				if err := p.store.SaveResult(gctx, out.RunID, *res); err != nil {
					return eris.Wrapf(err, "pipeline: save result for %s", e.Name)
				}
			}
			if obs != nil {
				obs.EntityDone(int(done.Add(1)), len(entities), e, nil)
			}
			return nil
		})
	}
	err := g.Wait()

	for i, e := range entities {
		if out.Results[i].Entity == (model.Entity{}) {
			out.Results[i].Entity = e
		}
	}

	if p.store != nil {
		status := model.RunStatusComplete
		if err != nil {
			status = model.RunStatusFailed
		}
		// The batch context may already be cancelled.
		if fErr := p.store.FinishRun(context.WithoutCancel(ctx), out.RunID, status, err); fErr != nil {
			zap.L().Warn("pipeline: failed to finish run", zap.String("run_id", out.RunID), zap.Error(fErr))
		}
	}
	if err != nil {
		return out, err
	}

	zap.L().Info("pipeline: batch complete", zap.String("run_id", out.RunID), zap.Int("entities", len(entities)))
	return out, nil
}
