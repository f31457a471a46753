// Package workers provides a bounded worker pool for running independent
// jobs in parallel. Backtest runs never share state, so job-level
// parallelism is the only concurrency the system needs.
package workers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task represents a unit of work to be processed
type Task interface {
	Execute() error
}

// TaskFunc is a function that can be used as a Task
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// Pool manages a fixed set of worker goroutines consuming from a bounded
// queue.
type Pool struct {
	logger *zap.Logger

	numWorkers int
	taskQueue  chan Task
	wg         sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	completed atomic.Uint64
	failed    atomic.Uint64
}

// NewPool creates a pool with the given worker count and queue size.
// A non-positive worker count defaults to the number of CPUs.
func NewPool(logger *zap.Logger, numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 2
	}
	return &Pool{
		logger:     logger,
		numWorkers: numWorkers,
		taskQueue:  make(chan Task, queueSize),
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Debug("worker pool started", zap.Int("workers", p.numWorkers))
}

// Submit enqueues a task, blocking while the queue is full. It fails if the
// pool has stopped or the context is done.
func (p *Pool) Submit(task Task) error {
	if !p.running.Load() {
		return fmt.Errorf("pool not running")
	}
	select {
	case p.taskQueue <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Stop drains the queue, waits for in-flight tasks, and shuts the pool down.
func (p *Pool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
	p.cancel()
	p.logger.Debug("worker pool stopped",
		zap.Uint64("completed", p.completed.Load()),
		zap.Uint64("failed", p.failed.Load()),
	)
}

// Completed returns the number of tasks that finished without error.
func (p *Pool) Completed() uint64 { return p.completed.Load() }

// Failed returns the number of tasks that returned an error or panicked.
func (p *Pool) Failed() uint64 { return p.failed.Load() }

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for task := range p.taskQueue {
		if err := p.run(task); err != nil {
			p.failed.Add(1)
			p.logger.Warn("task failed", zap.Int("worker", id), zap.Error(err))
		} else {
			p.completed.Add(1)
		}
	}
}

func (p *Pool) run(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute()
}
