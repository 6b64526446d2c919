package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"go.uber.org/zap"

	"vidfetch/internal/checkpoint"
	"vidfetch/internal/manifest"
	"vidfetch/internal/metrics"
	"vidfetch/internal/progress"
	"vidfetch/internal/storage"
)

// TaskProcessor handles individual task processing
type TaskProcessor struct {
	config     Config
	client     storage.Client
	checkpoint checkpoint.Store
	metrics    *metrics.Collector
	tracker    *progress.Tracker
	logger     *zap.Logger
}

// Process runs one transfer task to completion and returns its result. All
// per-item errors are captured as result values; nothing a single item does
// can take down the pool.
func (p *TaskProcessor) Process(ctx context.Context, task Task) progress.Result {
	key, err := manifest.ParseKey(task.Key)
	if err != nil {
		return progress.Invalid(task.Key, err.Error())
	}

	// Fast path on resume: a completed checkpoint record means the file was
	// verified on a previous run.
	if p.config.Resume && p.checkpoint != nil {
		if record, err := p.checkpoint.Get(task.Key); err == nil && record != nil {
			if record.Status == checkpoint.StatusCompleted {
				return progress.Exists(task.Key, key.Partition, key.LocalPath(p.config.SaveDir), record.Size)
			}
		}
	}

	localPath := key.LocalPath(p.config.SaveDir)

	if err := os.MkdirAll(key.LocalDir(p.config.SaveDir), 0o755); err != nil {
		return progress.Failed(task.Key, key.Partition, fmt.Sprintf("create dir: %v", err))
	}

	// A non-empty local copy means a prior run already fetched this item.
	if info, err := os.Stat(localPath); err == nil && info.Size() > 0 {
		return progress.Exists(task.Key, key.Partition, localPath, info.Size())
	}

	var lastErr error
	for attempt := 1; attempt <= p.config.Retries; attempt++ {
		err := p.client.Fetch(ctx, key.String(), localPath)
		if err == nil {
			info, statErr := os.Stat(localPath)
			if statErr != nil || info.Size() == 0 {
				return progress.Failed(task.Key, key.Partition, "empty file")
			}
			return progress.Success(task.Key, key.Partition, localPath, info.Size())
		}

		lastErr = err
		p.logger.Debug("Fetch attempt failed",
			zap.String("key", task.Key),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		// A missing remote object will not appear on a later attempt.
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if attempt < p.config.Retries {
			p.sleep(ctx, p.backoff(attempt))
		}
	}

	return progress.Failed(task.Key, key.Partition, lastErr.Error())
}

// record applies a result to the tracker, metrics and checkpoint store.
func (p *TaskProcessor) record(res progress.Result, elapsed time.Duration) {
	p.tracker.Record(res)

	if p.metrics != nil {
		p.metrics.IncResult(res.Outcome.String())
		if res.Outcome == progress.OutcomeSuccess {
			p.metrics.AddBytes(res.Bytes)
			p.metrics.ObserveDuration(elapsed)
		}
	}

	if p.checkpoint == nil {
		return
	}
	var record *checkpoint.Record
	switch res.Outcome {
	case progress.OutcomeSuccess, progress.OutcomeExists:
		record = &checkpoint.Record{
			Key:       res.Key,
			Partition: res.Partition,
			Size:      res.Bytes,
			Status:    checkpoint.StatusCompleted,
		}
	case progress.OutcomeFailed:
		record = &checkpoint.Record{
			Key:       res.Key,
			Partition: res.Partition,
			Status:    checkpoint.StatusFailed,
			LastError: res.Reason,
		}
	default:
		return
	}

	if err := p.checkpoint.Save(record); err != nil {
		p.logger.Error("Failed to save checkpoint record",
			zap.String("key", res.Key),
			zap.Error(err))
	}
}

func (p *TaskProcessor) backoff(attempt int) time.Duration {
	base := time.Duration(p.config.RetryBackoffMs) * time.Millisecond
	return base * time.Duration(math.Pow(2, float64(attempt-1)))
}

func (p *TaskProcessor) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
