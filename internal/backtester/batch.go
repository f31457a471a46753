// Package backtester provides parallel execution of independent runs.
package backtester

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/quantfold/backtester/internal/workers"
	"github.com/quantfold/backtester/pkg/types"
)

// BatchJob pairs one run configuration with the bar series it replays.
type BatchJob struct {
	Config types.RunConfig
	Bars   []types.Bar
}

// BatchOutcome is the result slot for one job, in submission order.
type BatchOutcome struct {
	Result *types.RunResult
	Err    error
}

// RunBatch executes independent backtests in parallel on a bounded worker
// pool. Each job gets its own engine and position state; nothing is shared
// across runs, so parallelism here cannot disturb the per-run determinism of
// the sequential fold. Outcomes are returned in job order.
func RunBatch(ctx context.Context, logger *zap.Logger, jobs []BatchJob, numWorkers int) []BatchOutcome {
	outcomes := make([]BatchOutcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes
	}

	pool := workers.NewPool(logger, numWorkers, len(jobs))
	pool.Start(ctx)

	var wg sync.WaitGroup
	for i := range jobs {
		i := i
		job := jobs[i]
		wg.Add(1)
		task := workers.TaskFunc(func() error {
			defer wg.Done()
			engine, err := NewEngine(logger, &job.Config)
			if err != nil {
				outcomes[i] = BatchOutcome{Err: err}
				return err
			}
			result, err := engine.Run(ctx, job.Bars)
			outcomes[i] = BatchOutcome{Result: result, Err: err}
			return err
		})
		if err := pool.Submit(task); err != nil {
			outcomes[i] = BatchOutcome{Err: err}
			wg.Done()
		}
	}

	wg.Wait()
	pool.Stop()
	return outcomes
}
