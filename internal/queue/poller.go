package queue

import (
	"context"
	"log/slog"
	"time"
)

// Poller continuously claims due work items from the queue and feeds them
// to the worker pool.
type Poller struct {
	queue        *Queue
	pool         *Pool
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int64
}

func NewPoller(queue *Queue, pool *Pool, logger *slog.Logger) *Poller {
	return &Poller{
		queue:        queue,
		pool:         pool,
		logger:       logger,
		pollInterval: 100 * time.Millisecond,
		batchSize:    10,
	}
}

// Start runs the polling loop until the context is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("queue poller started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("queue poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	items, err := p.queue.ClaimDue(ctx, time.Now(), p.batchSize)
	if err != nil {
		p.logger.Error("failed to claim work items", "error", err)
		return
	}

	for _, item := range items {
		p.pool.Submit(item)
	}
}
