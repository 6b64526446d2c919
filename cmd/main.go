package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vidfetch/internal/app"
	"vidfetch/internal/config"
	"vidfetch/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "vidfetch",
	Short: "Bulk video transfer and feature extraction",
	Long:  `Download a manifest of videos from cloud storage with concurrent, resumable transfers, then run a feature extractor over the local copies in checkpointed batches.`,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the manifest's videos into the local save directory",
	RunE:  runFetch,
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the feature extractor over downloaded videos",
	RunE:  runExtract,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")

	for _, cmd := range []*cobra.Command{fetchCmd, extractCmd} {
		// Transfer flags
		cmd.Flags().String("save-dir", "./videos", "Local directory for downloaded videos")
		cmd.Flags().String("manifest", "", "Manifest CSV file (required)")
		cmd.Flags().String("key-column", "videos", "Manifest column holding the video keys")
		cmd.Flags().String("log-level", "info", "Log level (debug/info/warn/error)")
	}

	// Source flags
	fetchCmd.Flags().String("source", "blob", "Source kind (blob/s3/http)")
	fetchCmd.Flags().String("bucket-url", "", "Bucket URL for blob source (gs://, s3://, file://)")
	fetchCmd.Flags().String("base-url", "", "Base URL for http source")
	fetchCmd.Flags().String("endpoint", "", "S3 endpoint")
	fetchCmd.Flags().String("access-key", "", "S3 access key")
	fetchCmd.Flags().String("secret-key", "", "S3 secret key")
	fetchCmd.Flags().String("bucket", "", "S3 bucket name")
	fetchCmd.Flags().Bool("secure", true, "Use HTTPS for S3 source")

	fetchCmd.Flags().Int("concurrency", 20, "Number of concurrent download workers")
	fetchCmd.Flags().Int("retries", 3, "Maximum download attempts per video")
	fetchCmd.Flags().Int("retry-backoff-ms", 1000, "Initial retry backoff in milliseconds")
	fetchCmd.Flags().Int("request-timeout", 60, "Per-request timeout in seconds")
	fetchCmd.Flags().Int("checkpoint-interval", 500, "Videos between checkpoint rewrites")
	fetchCmd.Flags().String("checkpoint-dir", "./checkpoints", "Directory for summary checkpoints")
	fetchCmd.Flags().String("state-db", "./vidfetch.db", "Per-item state database file")
	fetchCmd.Flags().Bool("resume", false, "Trust the state database and skip completed videos")
	fetchCmd.Flags().Bool("show-progress", true, "Show progress display")
	fetchCmd.Flags().String("metrics-addr", "", "Prometheus listen address (empty disables)")

	// Extraction flags
	extractCmd.Flags().Int("batch-size", 100, "Videos per extraction batch")
	extractCmd.Flags().String("features-file", "./checkpoints/video_features.csv", "Feature table checkpoint file")
	extractCmd.Flags().String("extractor", "", "Feature extractor command (required)")
	extractCmd.Flags().StringSlice("extractor-args", nil, "Extra arguments passed to the extractor")

	rootCmd.AddCommand(fetchCmd, extractCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateSource(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := shutdownContext(log)
	defer cancel()

	fetcher, err := app.NewFetcher(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	err = fetcher.Run(ctx)

	if closeErr := fetcher.Close(); closeErr != nil {
		log.Error("Error closing fetcher", zap.Error(closeErr))
	}

	return err
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Process.Extractor == "" {
		return fmt.Errorf("invalid configuration: extractor command is required")
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx, cancel := shutdownContext(log)
	defer cancel()

	return app.RunExtract(ctx, cfg, log)
}

func shutdownContext(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, gracefully stopping...")
		cancel()
	}()

	return ctx, cancel
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
