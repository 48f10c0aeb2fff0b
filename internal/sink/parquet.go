package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"feedflow/logger"
	"feedflow/models"
)

// memFile is an in-memory parquet target; the encoded bytes are handed to
// the object store in one piece.
type memFile struct {
	buf *bytes.Buffer
}

func newMemFile() *memFile { return &memFile{buf: &bytes.Buffer{}} }

func (m *memFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memFile) Seek(int64, int) (int64, error)            { return int64(m.buf.Len()), nil }
func (m *memFile) Read([]byte) (int, error)                  { return 0, io.EOF }
func (m *memFile) Write(b []byte) (int, error)               { return m.buf.Write(b) }
func (m *memFile) Close() error                              { return nil }
func (m *memFile) Bytes() []byte                             { return m.buf.Bytes() }

// prototype returns the parquet schema object for a destination.
func prototype(d models.Destination) (interface{}, error) {
	switch d {
	case models.DestinationOptionTrades:
		return new(models.OptionTrade), nil
	case models.DestinationFlowAlerts:
		return new(models.FlowAlert), nil
	case models.DestinationSpotGreeks:
		return new(models.SpotGreeks), nil
	case models.DestinationStrikeExpiryGreeks:
		return new(models.StrikeExpiryGreeks), nil
	default:
		return nil, fmt.Errorf("no parquet schema for %s", d)
	}
}

// ObjectInfo describes an encoded batch handed to an ObjectStore.
type ObjectInfo struct {
	Key       string
	Date      string
	Records   int
	CreatedAt time.Time
}

// ObjectStore commits whole objects atomically. Put reports false when an
// object with the same key was already committed.
type ObjectStore interface {
	Put(ctx context.Context, info ObjectInfo, data []byte) (bool, error)
	Location() string
	Close() error
}

// ParquetSink encodes each batch as one snappy parquet object named by the
// batch digest.
type ParquetSink struct {
	destination models.Destination
	store       ObjectStore
	seen        *lru.Cache
	mu          sync.Mutex
	now         func() time.Time
	log         *logger.Log
}

func NewParquetSink(destination models.Destination, store ObjectStore, dedupCache int, log *logger.Log) (*ParquetSink, error) {
	if _, err := prototype(destination); err != nil {
		return nil, err
	}
	if dedupCache <= 0 {
		dedupCache = defaultDedupCache
	}
	seen, err := lru.New(dedupCache)
	if err != nil {
		return nil, err
	}
	s := &ParquetSink{
		destination: destination,
		store:       store,
		seen:        seen,
		now:         time.Now,
		log:         logger.Or(log),
	}
	s.log.WithComponent("parquet_sink").WithFields(logger.Fields{
		"destination": string(destination),
		"location":    store.Location(),
	}).Info("parquet sink ready")
	return s, nil
}

func (s *ParquetSink) Name() string { return "parquet:" + s.store.Location() }

func (s *ParquetSink) WriteBatch(ctx context.Context, records []models.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dest := string(s.destination)
	batch := uniqueByKey(records, func(k string) bool { return s.seen.Contains(k) })
	if len(batch) == 0 {
		return 0, nil
	}

	data, err := encodeParquet(s.destination, batch)
	if err != nil {
		return 0, persistErr(dest, len(records), err)
	}

	now := s.now().UTC()
	info := ObjectInfo{
		Date:      now.Format("2006-01-02"),
		Records:   len(batch),
		CreatedAt: now,
	}
	info.Key = path.Join("date="+info.Date, fmt.Sprintf("%s_%s.parquet", dest, batchDigest(batch)))

	created, err := s.store.Put(ctx, info, data)
	if err != nil {
		return 0, persistErr(dest, len(records), err)
	}
	for _, r := range batch {
		if k := r.DedupKey(); k != "" {
			s.seen.Add(k, struct{}{})
		}
	}

	s.log.WithComponent("parquet_sink").WithFields(logger.Fields{
		"destination": dest,
		"key":         info.Key,
		"records":     len(batch),
		"bytes":       len(data),
		"created":     created,
	}).Debug("parquet object committed")

	if !created {
		return 0, nil
	}
	return len(batch), nil
}

func (s *ParquetSink) Close() error { return s.store.Close() }

func encodeParquet(d models.Destination, records []models.Record) ([]byte, error) {
	proto, err := prototype(d)
	if err != nil {
		return nil, err
	}
	mf := newMemFile()
	pw, err := writer.NewParquetWriter(mf, proto, 1)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range records {
		if r.Schema().Destination != d {
			return nil, fmt.Errorf("record for %s in %s batch", r.Schema().Destination, d)
		}
		if err := pw.Write(r); err != nil {
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	return mf.Bytes(), nil
}
