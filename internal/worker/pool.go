package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vidfetch/internal/checkpoint"
	"vidfetch/internal/metrics"
	"vidfetch/internal/progress"
	"vidfetch/internal/storage"
)

// Pool manages a fixed-size pool of transfer workers. Results are recorded
// as tasks complete, in whatever order they finish.
type Pool struct {
	size       int
	config     Config
	client     storage.Client
	checkpoint checkpoint.Store
	metrics    *metrics.Collector
	tracker    *progress.Tracker
	logger     *zap.Logger
}

// NewPool creates a new worker pool
func NewPool(
	size int,
	config Config,
	client storage.Client,
	checkpointStore checkpoint.Store,
	metricsCollector *metrics.Collector,
	tracker *progress.Tracker,
	logger *zap.Logger,
) *Pool {
	return &Pool{
		size:       size,
		config:     config,
		client:     client,
		checkpoint: checkpointStore,
		metrics:    metricsCollector,
		tracker:    tracker,
		logger:     logger,
	}
}

// Start starts the worker pool
func (p *Pool) Start(ctx context.Context, tasks <-chan Task, wg *sync.WaitGroup) {
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, tasks, wg)
	}
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan Task, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker started")

	processor := &TaskProcessor{
		config:     p.config,
		client:     p.client,
		checkpoint: p.checkpoint,
		metrics:    p.metrics,
		tracker:    p.tracker,
		logger:     logger,
	}

	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				logger.Debug("Worker finished - no more tasks")
				return
			}

			if p.metrics != nil {
				p.metrics.IncInflight()
			}
			start := time.Now()
			res := processor.Process(ctx, task)
			processor.record(res, time.Since(start))
			if p.metrics != nil {
				p.metrics.DecInflight()
			}

		case <-ctx.Done():
			logger.Debug("Worker stopped - context cancelled")
			return
		}
	}
}
