package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Feedflow  FeedflowConfig        `yaml:"feedflow"`
	Source    SourceConfig          `yaml:"source"`
	Reconnect ReconnectConfig       `yaml:"reconnect"`
	Batch     BatchConfig           `yaml:"batch"`
	Sinks     map[string]SinkConfig `yaml:"sinks"`
	Storage   StorageConfig         `yaml:"storage"`
	Metrics   MetricsConfig         `yaml:"metrics"`
	Logging   LoggingConfig         `yaml:"logging"`
	Shutdown  ShutdownConfig        `yaml:"shutdown"`
}

type FeedflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// SourceConfig describes the push feed and its liveness timings.
type SourceConfig struct {
	URL              string        `yaml:"url"`
	Token            string        `yaml:"token"`
	Channels         []string      `yaml:"channels"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
	Jitter      float64       `yaml:"jitter"`
}

type BatchConfig struct {
	Size     int           `yaml:"size"`
	Interval time.Duration `yaml:"interval"`
}

// SinkConfig selects and tunes the store behind one destination. Zero batch
// settings inherit the global batch section.
type SinkConfig struct {
	Type          string        `yaml:"type"`
	Path          string        `yaml:"path"`
	Dir           string        `yaml:"dir"`
	Table         string        `yaml:"table"`
	Prefix        string        `yaml:"prefix"`
	BatchSize     int           `yaml:"batch_size"`
	BatchInterval time.Duration `yaml:"batch_interval"`
	MaxSizeMB     int           `yaml:"max_size_mb"`
	MaxAge        int           `yaml:"max_age"`
	Compress      bool          `yaml:"compress"`
	DedupCache    int           `yaml:"dedup_cache"`
}

type StorageConfig struct {
	S3    S3Config    `yaml:"s3"`
	Kafka KafkaConfig `yaml:"kafka"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type MetricsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Address    string           `yaml:"address"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type ShutdownConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

const (
	SinkTypeFile    = "file"
	SinkTypeSQLite  = "sqlite"
	SinkTypeParquet = "parquet"
	SinkTypeKafka   = "kafka"
)

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Feedflow: FeedflowConfig{Name: "feedflow", Version: "dev"},
		Source: SourceConfig{
			URL:              "wss://api.unusualwhales.com/socket",
			IdleTimeout:      30 * time.Second,
			PingTimeout:      10 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Reconnect: ReconnectConfig{
			BaseDelay:   5 * time.Second,
			MaxDelay:    60 * time.Second,
			MaxAttempts: 5,
			Jitter:      0.1,
		},
		Batch: BatchConfig{
			Size:     500,
			Interval: 10 * time.Second,
		},
		Storage: StorageConfig{
			Kafka: KafkaConfig{WriteTimeout: 10 * time.Second},
		},
		Metrics: MetricsConfig{
			Address: "0.0.0.0:2112",
			CloudWatch: CloudWatchConfig{
				Namespace: "Feedflow",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Shutdown: ShutdownConfig{Timeout: 30 * time.Second},
	}
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("UW_TOKEN"); v != "" {
		config.Source.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("FEEDFLOW_URL"); v != "" {
		config.Source.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		config.Storage.Kafka.Brokers = splitList(v)
	}

	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateConfig(cfg *Config) error {
	if cfg.Feedflow.Name == "" {
		return fmt.Errorf("feedflow.name is required")
	}

	if strings.TrimSpace(cfg.Source.URL) == "" {
		return fmt.Errorf("source.url is required")
	}
	u, err := url.Parse(cfg.Source.URL)
	if err != nil {
		return fmt.Errorf("source.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("source.url: scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("source.url: missing host")
	}
	if len(cfg.Source.Channels) == 0 {
		return fmt.Errorf("source.channels must list at least one channel")
	}
	seen := make(map[string]struct{}, len(cfg.Source.Channels))
	for _, ch := range cfg.Source.Channels {
		if strings.TrimSpace(ch) == "" {
			return fmt.Errorf("source.channels contains an empty channel")
		}
		if _, dup := seen[ch]; dup {
			return fmt.Errorf("source.channels lists %q twice", ch)
		}
		seen[ch] = struct{}{}
	}
	if cfg.Source.IdleTimeout <= 0 {
		return fmt.Errorf("source.idle_timeout must be greater than 0")
	}
	if cfg.Source.PingTimeout <= 0 {
		return fmt.Errorf("source.ping_timeout must be greater than 0")
	}
	if cfg.Source.PingTimeout >= cfg.Source.IdleTimeout {
		return fmt.Errorf("source.ping_timeout must be shorter than source.idle_timeout")
	}

	if cfg.Reconnect.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be greater than 0")
	}
	if cfg.Reconnect.MaxDelay < cfg.Reconnect.BaseDelay {
		return fmt.Errorf("reconnect.max_delay must not be shorter than reconnect.base_delay")
	}
	if cfg.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("reconnect.max_attempts must be at least 1")
	}
	if cfg.Reconnect.Jitter < 0 || cfg.Reconnect.Jitter > 1 {
		return fmt.Errorf("reconnect.jitter must be within [0, 1]")
	}

	if cfg.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be greater than 0")
	}
	if cfg.Batch.Interval <= 0 {
		return fmt.Errorf("batch.interval must be greater than 0")
	}

	if len(cfg.Sinks) == 0 {
		return fmt.Errorf("sinks must configure at least one destination")
	}
	for name, sc := range cfg.Sinks {
		if err := validateSink(name, sc, cfg.Storage); err != nil {
			return err
		}
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

func validateSink(name string, sc SinkConfig, storage StorageConfig) error {
	if sc.BatchSize < 0 {
		return fmt.Errorf("sinks.%s.batch_size must not be negative", name)
	}
	if sc.BatchInterval < 0 {
		return fmt.Errorf("sinks.%s.batch_interval must not be negative", name)
	}
	switch sc.Type {
	case SinkTypeFile, SinkTypeSQLite:
		if sc.Path == "" {
			return fmt.Errorf("sinks.%s.path is required for %s sinks", name, sc.Type)
		}
	case SinkTypeParquet:
		if sc.Dir == "" && !storage.S3.Enabled {
			return fmt.Errorf("sinks.%s.dir is required when S3 is disabled", name)
		}
	case SinkTypeKafka:
		if len(storage.Kafka.Brokers) == 0 {
			return fmt.Errorf("sinks.%s uses kafka but storage.kafka.brokers is empty", name)
		}
		if storage.Kafka.Topic == "" {
			return fmt.Errorf("sinks.%s uses kafka but storage.kafka.topic is empty", name)
		}
	default:
		return fmt.Errorf("sinks.%s.type '%s' is not supported", name, sc.Type)
	}
	return nil
}

// BatchFor returns the effective size and interval thresholds for a destination.
func (c *Config) BatchFor(destination string) (int, time.Duration) {
	size, interval := c.Batch.Size, c.Batch.Interval
	if sc, ok := c.Sinks[destination]; ok {
		if sc.BatchSize > 0 {
			size = sc.BatchSize
		}
		if sc.BatchInterval > 0 {
			interval = sc.BatchInterval
		}
	}
	return size, interval
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
