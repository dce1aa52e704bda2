package backtest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one independent run of a sweep. Each job needs its own Engine
// collaborators and Feeder; nothing is shared between jobs.
type Job struct {
	Name    string
	Engine  *Engine
	Request Request
	Feeder  Feeder
}

// Sweep runs jobs with at most parallelism in flight and returns their results
// in job order. Individual failures are reported in their Result. The error is
// non-nil only when ctx ends before every job has finished.
func Sweep(ctx context.Context, jobs []Job, parallelism int) ([]*Result, error) {
	if parallelism <= 0 {
		parallelism = 1
	}
	results := make([]*Result, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if job.Engine == nil {
				res := &Result{Request: job.Request, RunID: job.Request.RunID}
				res.fail(fmt.Errorf("backtest: sweep job %q has no engine", job.Name))
				results[i] = res
				return nil
			}
			results[i] = job.Engine.Run(gctx, job.Request, job.Feeder)
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}
