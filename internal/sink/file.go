package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"gopkg.in/natefinch/lumberjack.v2"

	"feedflow/logger"
	"feedflow/models"
)

const defaultDedupCache = 100000

// FileSink appends records as JSON lines to a size-rotated file. A file has
// no uniqueness constraint, so keys written recently are remembered and
// redelivered records are dropped.
type FileSink struct {
	destination string
	path        string
	out         *lumberjack.Logger
	seen        *lru.Cache
	mu          sync.Mutex
	now         func() time.Time
	log         *logger.Log
}

// FileOptions tunes rotation and the redelivery cache.
type FileOptions struct {
	MaxSizeMB  int
	MaxAgeDays int
	Compress   bool
	DedupCache int
}

func NewFileSink(destination models.Destination, path string, opts FileOptions, log *logger.Log) (*FileSink, error) {
	size := opts.DedupCache
	if size <= 0 {
		size = defaultDedupCache
	}
	seen, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}

	s := &FileSink{
		destination: string(destination),
		path:        path,
		out: &lumberjack.Logger{
			Filename: path,
			MaxSize:  maxSize,
			MaxAge:   opts.MaxAgeDays,
			Compress: opts.Compress,
		},
		seen: seen,
		now:  time.Now,
		log:  logger.Or(log),
	}
	s.log.WithComponent("file_sink").WithFields(logger.Fields{
		"destination": s.destination,
		"path":        path,
		"max_size_mb": maxSize,
	}).Info("file sink ready")
	return s, nil
}

func (s *FileSink) Name() string { return "file:" + s.path }

type fileLine struct {
	ReceivedAt  string        `json:"received_at"`
	Destination string        `json:"destination"`
	Record      models.Record `json:"record"`
}

// WriteBatch encodes the whole batch first and hands it to the file in a
// single write, so a failed encode leaves the file untouched.
func (s *FileSink) WriteBatch(_ context.Context, records []models.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UTC().Format(time.RFC3339Nano)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	batch := uniqueByKey(records, func(k string) bool { return s.seen.Contains(k) })
	for _, rec := range batch {
		if err := enc.Encode(fileLine{ReceivedAt: stamp, Destination: s.destination, Record: rec}); err != nil {
			return 0, persistErr(s.destination, len(records), err)
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if _, err := s.out.Write(buf.Bytes()); err != nil {
		return 0, persistErr(s.destination, len(records), err)
	}
	for _, rec := range batch {
		if k := rec.DedupKey(); k != "" {
			s.seen.Add(k, struct{}{})
		}
	}
	return len(batch), nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
