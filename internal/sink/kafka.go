package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	kafka "github.com/segmentio/kafka-go"

	"feedflow/logger"
	"feedflow/models"
)

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each batch as a single message keyed by the batch
// digest. One message per batch keeps the batch atomic, and on a compacted
// topic a redelivered batch replaces its earlier copy.
type KafkaSink struct {
	destination models.Destination
	topic       string
	writer      messageWriter
	acked       *lru.Cache
	log         *logger.Log
}

type kafkaBatch struct {
	Destination string          `json:"destination"`
	Digest      string          `json:"digest"`
	ProducedAt  time.Time       `json:"produced_at"`
	Records     []models.Record `json:"records"`
}

func NewKafkaSink(destination models.Destination, brokers []string, topic string, writeTimeout time.Duration, dedupCache int, log *logger.Log) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	if topic == "" {
		topic = string(destination)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: writeTimeout,
	}
	s, err := newKafkaSink(destination, topic, w, dedupCache, log)
	if err != nil {
		return nil, err
	}
	s.log.WithComponent("kafka_sink").WithFields(logger.Fields{
		"brokers": brokers,
		"topic":   topic,
	}).Info("kafka sink ready")
	return s, nil
}

func newKafkaSink(destination models.Destination, topic string, w messageWriter, dedupCache int, log *logger.Log) (*KafkaSink, error) {
	if dedupCache <= 0 {
		dedupCache = 1024
	}
	acked, err := lru.New(dedupCache)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{
		destination: destination,
		topic:       topic,
		writer:      w,
		acked:       acked,
		log:         logger.Or(log),
	}, nil
}

func (s *KafkaSink) Name() string { return "kafka:" + s.topic }

func (s *KafkaSink) WriteBatch(ctx context.Context, records []models.Record) (int, error) {
	dest := string(s.destination)
	batch := uniqueByKey(records, nil)
	if len(batch) == 0 {
		return 0, nil
	}
	digest := batchDigest(batch)
	if s.acked.Contains(digest) {
		return 0, nil
	}

	value, err := json.Marshal(kafkaBatch{
		Destination: dest,
		Digest:      digest,
		ProducedAt:  time.Now().UTC(),
		Records:     batch,
	})
	if err != nil {
		return 0, persistErr(dest, len(records), err)
	}
	msg := kafka.Message{
		Key:   []byte(dest + "/" + digest),
		Value: value,
		Headers: []kafka.Header{
			{Key: "destination", Value: []byte(dest)},
			{Key: "records", Value: []byte(fmt.Sprint(len(batch)))},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return 0, persistErr(dest, len(records), err)
	}
	s.acked.Add(digest, struct{}{})

	s.log.WithComponent("kafka_sink").WithFields(logger.Fields{
		"topic":   s.topic,
		"digest":  digest,
		"records": len(batch),
	}).Debug("batch published")
	return len(batch), nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
