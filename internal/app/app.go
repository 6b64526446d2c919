// Package app wires configuration, storage, checkpointing and the worker
// pool into the two pipeline runs.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vidfetch/internal/batch"
	"vidfetch/internal/checkpoint"
	"vidfetch/internal/config"
	"vidfetch/internal/extract"
	"vidfetch/internal/manifest"
	"vidfetch/internal/metrics"
	"vidfetch/internal/progress"
	"vidfetch/internal/storage"
	"vidfetch/internal/worker"

	"go.uber.org/zap"
)

// Fetcher represents the bulk download application
type Fetcher struct {
	cfg        *config.Config
	logger     *zap.Logger
	client     storage.Client
	checkpoint checkpoint.Store
	summary    *checkpoint.SummaryWriter
	metrics    *metrics.Collector
	tracker    *progress.Tracker
	workers    *worker.Pool
}

// NewFetcher creates a new fetcher instance
func NewFetcher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Fetcher, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create source client: %w", err)
	}

	checkpointStore, err := checkpoint.NewSQLiteStore(cfg.Transfer.StateDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}

	summary, err := checkpoint.NewSummaryWriter(cfg.Transfer.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary writer: %w", err)
	}

	metricsCollector := metrics.New()
	tracker := progress.NewTracker(summary, cfg.Transfer.CheckpointInterval)

	workerPool := worker.NewPool(cfg.Transfer.Concurrency, worker.Config{
		SaveDir:        cfg.Transfer.SaveDir,
		Retries:        cfg.Transfer.Retries,
		RetryBackoffMs: cfg.Transfer.RetryBackoffMs,
		Resume:         cfg.Transfer.Resume,
	}, client, checkpointStore, metricsCollector, tracker, logger)

	return &Fetcher{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		checkpoint: checkpointStore,
		summary:    summary,
		metrics:    metricsCollector,
		tracker:    tracker,
		workers:    workerPool,
	}, nil
}

func newClient(ctx context.Context, cfg *config.Config) (storage.Client, error) {
	switch cfg.Source.Kind {
	case config.SourceBlob:
		return storage.NewBlobClient(ctx, cfg.Source.BucketURL)
	case config.SourceS3:
		return storage.NewS3Client(storage.S3Config{
			Endpoint:  cfg.Source.Endpoint,
			AccessKey: cfg.Source.AccessKey,
			SecretKey: cfg.Source.SecretKey,
			Bucket:    cfg.Source.Bucket,
			Secure:    cfg.Source.Secure,
		})
	case config.SourceHTTP:
		opts := storage.DefaultHTTPOptions()
		opts.Timeout = time.Duration(cfg.Transfer.RequestTimeoutSec) * time.Second
		return storage.NewHTTPClient(cfg.Source.BaseURL, opts), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// Run executes the download pipeline
func (f *Fetcher) Run(ctx context.Context) error {
	f.logger.Info("Starting transfer",
		zap.String("source", f.cfg.Source.Kind),
		zap.String("manifest", f.cfg.Transfer.Manifest),
		zap.String("save_dir", f.cfg.Transfer.SaveDir),
		zap.Int("concurrency", f.cfg.Transfer.Concurrency),
		zap.Bool("resume", f.cfg.Transfer.Resume),
	)

	// Refuse to start on an unreachable source rather than failing every
	// item individually.
	if err := f.client.Ping(ctx); err != nil {
		return fmt.Errorf("source not reachable: %w", err)
	}

	keys, err := manifest.Load(f.cfg.Transfer.Manifest, f.cfg.Transfer.KeyColumn)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	f.tracker.SetTotal(int64(len(keys)))
	f.logger.Info("Manifest loaded", zap.Int("videos", len(keys)))

	if f.cfg.Metrics != "" {
		go func() {
			if err := f.metrics.StartServer(f.cfg.Metrics); err != nil {
				f.logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	var display *progress.Display
	if f.cfg.Transfer.ShowProgress {
		display = progress.NewDisplay(f.tracker, 2*time.Second)
		display.Start()
	}

	tasks := make(chan worker.Task, f.cfg.Transfer.Concurrency*2)

	var wg sync.WaitGroup
	f.workers.Start(ctx, tasks, &wg)

enqueue:
	for _, key := range keys {
		select {
		case tasks <- worker.Task{Key: key}:
		case <-ctx.Done():
			f.logger.Warn("Enqueue interrupted", zap.Error(ctx.Err()))
			break enqueue
		}
	}
	close(tasks)
	wg.Wait()

	if display != nil {
		display.Stop()
	}

	snap, err := f.tracker.Finalize()
	if err != nil {
		f.logger.Error("Failed to write final checkpoint", zap.Error(err))
	}

	report := progress.BuildReport(snap, time.Now())
	fmt.Print(report.Render())
	f.logger.Info("Transfer completed",
		zap.Int64("success", snap.Success),
		zap.Int64("exists", snap.Exists),
		zap.Int64("failed", snap.Failed),
		zap.Int64("invalid", snap.Invalid),
		zap.String("total_size", progress.FormatBytes(snap.TotalBytes)),
	)
	return ctx.Err()
}

// Close cleans up resources
func (f *Fetcher) Close() error {
	if f.checkpoint != nil {
		f.checkpoint.Close()
	}
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// RunExtract executes the feature-extraction pipeline over previously
// downloaded videos.
func RunExtract(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	keys, err := manifest.Load(cfg.Transfer.Manifest, cfg.Transfer.KeyColumn)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	extractor := extract.NewCommandExtractor(cfg.Process.Extractor, cfg.Process.ExtractorArg)
	driver := batch.NewDriver(batch.Config{
		SaveDir:      cfg.Transfer.SaveDir,
		BatchSize:    cfg.Process.BatchSize,
		FeaturesFile: cfg.Process.FeaturesFile,
	}, extractor, logger)

	stats, err := driver.Run(ctx, keys)
	if err != nil {
		return err
	}

	logger.Info("Extraction completed",
		zap.Int("batches", stats.Batches),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("table_rows", stats.TableRows),
	)
	return nil
}
