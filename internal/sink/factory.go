package sink

import (
	"context"
	"fmt"

	appconfig "feedflow/config"
	"feedflow/logger"
	"feedflow/models"
)

// New builds the sink configured for destination.
func New(ctx context.Context, destination models.Destination, cfg appconfig.SinkConfig, storage appconfig.StorageConfig, log *logger.Log) (Sink, error) {
	schema := models.SchemaFor(destination)
	if schema == nil {
		return nil, fmt.Errorf("unknown destination %q", destination)
	}

	switch cfg.Type {
	case appconfig.SinkTypeFile:
		return NewFileSink(destination, cfg.Path, FileOptions{
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxAgeDays: cfg.MaxAge,
			Compress:   cfg.Compress,
			DedupCache: cfg.DedupCache,
		}, log)

	case appconfig.SinkTypeSQLite:
		return NewSQLiteSink(schema, cfg.Path, cfg.Table, log)

	case appconfig.SinkTypeParquet:
		var store ObjectStore
		if cfg.Dir != "" {
			local, err := NewLocalStore(cfg.Dir, schema)
			if err != nil {
				return nil, fmt.Errorf("parquet sink %s: %w", destination, err)
			}
			store = local
		} else {
			prefix := cfg.Prefix
			if prefix == "" {
				prefix = string(destination)
			}
			remote, err := NewS3Store(ctx, storage.S3, prefix)
			if err != nil {
				return nil, fmt.Errorf("parquet sink %s: %w", destination, err)
			}
			store = remote
		}
		return NewParquetSink(destination, store, cfg.DedupCache, log)

	case appconfig.SinkTypeKafka:
		topic := cfg.Table
		if topic == "" {
			topic = storage.Kafka.Topic
		}
		return NewKafkaSink(destination, storage.Kafka.Brokers, topic, storage.Kafka.WriteTimeout, cfg.DedupCache, log)

	default:
		return nil, fmt.Errorf("sink type %q not supported", cfg.Type)
	}
}
