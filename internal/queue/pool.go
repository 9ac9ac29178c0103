package queue

import (
	"context"
	"log/slog"
	"sync"
)

// Executor performs one delivery attempt for a claimed work item.
type Executor interface {
	Execute(ctx context.Context, item WorkItem)
}

// Pool manages a fixed number of worker goroutines that process claimed
// work items.
type Pool struct {
	numWorkers int
	jobs       chan WorkItem
	executor   Executor
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(numWorkers int, executor Executor, logger *slog.Logger) *Pool {
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan WorkItem, numWorkers*2),
		executor:   executor,
		logger:     logger,
	}
}

// Start launches the worker goroutines. They read from the jobs channel
// until it is closed or the context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info("worker pool started", "num_workers", p.numWorkers)
}

// Submit hands a claimed item to the pool. Blocks when all workers are busy
// and the buffer is full, which backpressures the poller.
func (p *Pool) Submit(item WorkItem) {
	p.jobs <- item
}

// Stop closes the jobs channel and waits for in-flight work to finish.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for item := range p.jobs {
		select {
		case <-ctx.Done():
			return
		default:
			p.executor.Execute(ctx, item)
		}
	}
}
