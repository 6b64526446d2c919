// Package batch drives the sequential feature-extraction pass over
// downloaded videos.
package batch

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"vidfetch/internal/extract"
	"vidfetch/internal/features"
	"vidfetch/internal/manifest"
	"vidfetch/internal/progress"
)

// Config holds driver settings.
type Config struct {
	SaveDir      string
	BatchSize    int
	FeaturesFile string
}

// Stats summarizes one extraction run.
type Stats struct {
	Batches     int
	Processed   int
	Skipped     int // not found on disk
	Failed      int // extractor errors
	Checkpoints int
	TableRows   int
}

// Driver partitions the remaining work list into fixed-size batches and
// runs the extractor over each, checkpointing the feature table after
// every batch. Extraction is strictly sequential: the model owns the one
// GPU, so it is never invoked concurrently with itself.
type Driver struct {
	cfg       Config
	extractor extract.Extractor
	logger    *zap.Logger
}

// NewDriver creates a batch driver.
func NewDriver(cfg Config, extractor extract.Extractor, logger *zap.Logger) *Driver {
	return &Driver{cfg: cfg, extractor: extractor, logger: logger}
}

// Run processes every manifest key not already present in the feature
// checkpoint. Per-item problems (missing file, extractor error) are counted
// and skipped; only an unreadable checkpoint or a cancelled context aborts
// the run.
func (d *Driver) Run(ctx context.Context, keys []string) (Stats, error) {
	var stats Stats

	table, err := features.Load(d.cfg.FeaturesFile)
	if err != nil {
		return stats, fmt.Errorf("load feature checkpoint: %w", err)
	}
	processed := table.ProcessedSet()

	remaining := d.filterRemaining(keys, processed)
	d.logger.Info("Starting extraction",
		zap.Int("total", len(keys)),
		zap.Int("already_processed", len(processed)),
		zap.Int("remaining", len(remaining)),
		zap.Int("batch_size", d.cfg.BatchSize),
	)

	start := time.Now()
	for offset := 0; offset < len(remaining); offset += d.cfg.BatchSize {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		end := offset + d.cfg.BatchSize
		if end > len(remaining) {
			end = len(remaining)
		}
		batch := remaining[offset:end]
		stats.Batches++

		for _, key := range batch {
			if err := d.processItem(ctx, key, table, &stats); err != nil {
				return stats, err
			}
		}

		if err := table.Save(d.cfg.FeaturesFile); err != nil {
			return stats, fmt.Errorf("save feature checkpoint: %w", err)
		}
		stats.Checkpoints++

		// Long runs accumulate decoded-frame garbage; reclaim between
		// batches to bound peak memory.
		runtime.GC()

		d.logBatchProgress(stats, len(remaining), end, start)
	}

	stats.TableRows = table.Len()
	return stats, nil
}

func (d *Driver) processItem(ctx context.Context, key manifest.Key, table *features.Table, stats *Stats) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path := key.LocalPath(d.cfg.SaveDir)
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		stats.Skipped++
		d.logger.Debug("Video not found on disk, skipping", zap.String("key", key.String()))
		return nil
	}

	rec, err := d.extractor.Extract(ctx, path)
	if err != nil {
		stats.Failed++
		d.logger.Warn("Extraction failed",
			zap.String("key", key.String()),
			zap.Error(err))
		return nil
	}

	table.Append(rec)
	stats.Processed++
	return nil
}

func (d *Driver) filterRemaining(keys []string, processed map[string]struct{}) []manifest.Key {
	remaining := make([]manifest.Key, 0, len(keys))
	for _, raw := range keys {
		key, err := manifest.ParseKey(raw)
		if err != nil {
			d.logger.Warn("Skipping malformed key", zap.String("key", raw))
			continue
		}
		if _, done := processed[key.Filename]; done {
			continue
		}
		remaining = append(remaining, key)
	}
	return remaining
}

func (d *Driver) logBatchProgress(stats Stats, total, done int, start time.Time) {
	elapsed := time.Since(start)
	var rate, etaHours float64
	if elapsed.Hours() > 0 {
		rate = float64(done) / elapsed.Hours()
	}
	if rate > 0 {
		etaHours = float64(total-done) / rate
	}

	d.logger.Info("Batch complete",
		zap.Int("batch", stats.Batches),
		zap.Int("done", done),
		zap.Int("remaining", total-done),
		zap.Float64("videos_per_hour", rate),
		zap.String("eta", progress.FormatDuration(time.Duration(etaHours*float64(time.Hour)))),
	)
}
