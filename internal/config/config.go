package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Source kinds supported by the transfer client.
const (
	SourceBlob = "blob" // gocloud.dev bucket URL (gs://, s3://, file://)
	SourceS3   = "s3"   // explicit S3-compatible endpoint via minio-go
	SourceHTTP = "http" // public objects behind a plain HTTP base URL
)

// Config represents the application configuration
type Config struct {
	Source   Source   `yaml:"source"`
	Transfer Transfer `yaml:"transfer"`
	Process  Process  `yaml:"process"`
	LogLevel string   `yaml:"log_level"`
	Metrics  string   `yaml:"metrics_addr"`
}

// Source describes where objects are fetched from.
type Source struct {
	Kind      string `yaml:"kind"`
	BucketURL string `yaml:"bucket_url"`
	BaseURL   string `yaml:"base_url"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// Transfer holds settings for the download pipeline.
type Transfer struct {
	SaveDir            string `yaml:"save_dir"`
	Manifest           string `yaml:"manifest"`
	KeyColumn          string `yaml:"key_column"`
	Concurrency        int    `yaml:"concurrency"`
	Retries            int    `yaml:"retries"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms"`
	RequestTimeoutSec  int    `yaml:"request_timeout_s"`
	CheckpointInterval int    `yaml:"checkpoint_interval"`
	CheckpointDir      string `yaml:"checkpoint_dir"`
	StateDB            string `yaml:"state_db"`
	Resume             bool   `yaml:"resume"`
	ShowProgress       bool   `yaml:"show_progress"`
}

// Process holds settings for the feature-extraction pass.
type Process struct {
	BatchSize    int      `yaml:"batch_size"`
	FeaturesFile string   `yaml:"features_file"`
	Extractor    string   `yaml:"extractor"`
	ExtractorArg []string `yaml:"extractor_args"`
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		Source: Source{
			Kind: SourceBlob,
		},
		Transfer: Transfer{
			SaveDir:            "./videos",
			KeyColumn:          "videos",
			Concurrency:        20,
			Retries:            3,
			RetryBackoffMs:     1000,
			RequestTimeoutSec:  60,
			CheckpointInterval: 500,
			CheckpointDir:      "./checkpoints",
			StateDB:            "./vidfetch.db",
			ShowProgress:       true,
		},
		Process: Process{
			BatchSize:    100,
			FeaturesFile: "./checkpoints/video_features.csv",
		},
	}

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags.Changed("source") {
		cfg.Source.Kind, _ = flags.GetString("source")
	}
	if flags.Changed("bucket-url") {
		cfg.Source.BucketURL, _ = flags.GetString("bucket-url")
	}
	if flags.Changed("base-url") {
		cfg.Source.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("endpoint") {
		cfg.Source.Endpoint, _ = flags.GetString("endpoint")
	}
	if flags.Changed("access-key") {
		cfg.Source.AccessKey, _ = flags.GetString("access-key")
	}
	if flags.Changed("secret-key") {
		cfg.Source.SecretKey, _ = flags.GetString("secret-key")
	}
	if flags.Changed("bucket") {
		cfg.Source.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("secure") {
		cfg.Source.Secure, _ = flags.GetBool("secure")
	}

	if flags.Changed("save-dir") {
		cfg.Transfer.SaveDir, _ = flags.GetString("save-dir")
	}
	if flags.Changed("manifest") {
		cfg.Transfer.Manifest, _ = flags.GetString("manifest")
	}
	if flags.Changed("key-column") {
		cfg.Transfer.KeyColumn, _ = flags.GetString("key-column")
	}
	if flags.Changed("concurrency") {
		cfg.Transfer.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("retries") {
		cfg.Transfer.Retries, _ = flags.GetInt("retries")
	}
	if flags.Changed("retry-backoff-ms") {
		cfg.Transfer.RetryBackoffMs, _ = flags.GetInt("retry-backoff-ms")
	}
	if flags.Changed("request-timeout") {
		cfg.Transfer.RequestTimeoutSec, _ = flags.GetInt("request-timeout")
	}
	if flags.Changed("checkpoint-interval") {
		cfg.Transfer.CheckpointInterval, _ = flags.GetInt("checkpoint-interval")
	}
	if flags.Changed("checkpoint-dir") {
		cfg.Transfer.CheckpointDir, _ = flags.GetString("checkpoint-dir")
	}
	if flags.Changed("state-db") {
		cfg.Transfer.StateDB, _ = flags.GetString("state-db")
	}
	if flags.Changed("resume") {
		cfg.Transfer.Resume, _ = flags.GetBool("resume")
	}
	if flags.Changed("show-progress") {
		cfg.Transfer.ShowProgress, _ = flags.GetBool("show-progress")
	}

	if flags.Changed("batch-size") {
		cfg.Process.BatchSize, _ = flags.GetInt("batch-size")
	}
	if flags.Changed("features-file") {
		cfg.Process.FeaturesFile, _ = flags.GetString("features-file")
	}
	if flags.Changed("extractor") {
		cfg.Process.Extractor, _ = flags.GetString("extractor")
	}
	if flags.Changed("extractor-args") {
		cfg.Process.ExtractorArg, _ = flags.GetStringSlice("extractor-args")
	}

	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics, _ = flags.GetString("metrics-addr")
	}

	return nil
}

// ValidateSource checks the settings needed to open the remote store.
// The extraction pass works off local files only, so Load does not call
// this; the transfer command does.
func (c *Config) ValidateSource() error {
	switch c.Source.Kind {
	case SourceBlob:
		if c.Source.BucketURL == "" {
			return fmt.Errorf("bucket_url is required for blob source")
		}
	case SourceS3:
		if c.Source.Endpoint == "" {
			return fmt.Errorf("endpoint is required for s3 source")
		}
		if c.Source.Bucket == "" {
			return fmt.Errorf("bucket is required for s3 source")
		}
		if c.Source.AccessKey == "" || c.Source.SecretKey == "" {
			return fmt.Errorf("access key and secret key are required for s3 source")
		}
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			return fmt.Errorf("base_url is required for http source")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Transfer.SaveDir == "" {
		return fmt.Errorf("save dir is required")
	}

	if c.Transfer.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}

	if c.Transfer.Retries <= 0 {
		return fmt.Errorf("retries must be positive")
	}

	if c.Transfer.CheckpointInterval <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}

	if c.Process.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}
