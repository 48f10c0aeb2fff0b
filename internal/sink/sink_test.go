package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	kafka "github.com/segmentio/kafka-go"

	appconfig "feedflow/config"
	"feedflow/models"
)

func trades(ids ...string) []models.Record {
	out := make([]models.Record, len(ids))
	for i, id := range ids {
		out[i] = models.OptionTrade{
			Channel:          "option_trades:SPY",
			ID:               id,
			OptionSymbol:     "SPY240621C00540000",
			UnderlyingSymbol: "SPY",
			ExecutedAt:       1718035200000 + int64(i),
			Price:            1.25,
			Size:             10,
			Tags:             `["sweep"]`,
		}
	}
	return out
}

func TestBatchDigestIgnoresOrder(t *testing.T) {
	a := batchDigest(trades("t1", "t2", "t3"))
	b := batchDigest(trades("t3", "t1", "t2"))
	if a != b {
		t.Fatalf("digest depends on order: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
	if c := batchDigest(trades("t1", "t2")); c == a {
		t.Fatalf("different batches share digest %s", c)
	}
}

func TestUniqueByKey(t *testing.T) {
	recs := trades("a", "b", "a", "c")
	got := uniqueByKey(recs, func(k string) bool { return k == "c" })
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].DedupKey() != "a" || got[1].DedupKey() != "b" {
		t.Fatalf("unexpected order: %s %s", got[0].DedupKey(), got[1].DedupKey())
	}
}

func TestSQLiteSinkIdempotentRedelivery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	s, err := NewSQLiteSink(models.OptionTradeSchema, path, "", nil)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	batch := trades("t1", "t2", "t3")
	n, err := s.WriteBatch(ctx, batch)
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows written, got %d", n)
	}

	n, err = s.WriteBatch(ctx, batch)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if n != 0 {
		t.Fatalf("redelivery wrote %d rows", n)
	}
	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 rows, got %d", count)
	}
}

func TestSQLiteSinkBatchIsAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	s, err := NewSQLiteSink(models.OptionTradeSchema, path, "", nil)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	batch := trades("t1", "t2")
	batch = append(batch, models.FlowAlert{ID: "alert-1"})
	n, err := s.WriteBatch(ctx, batch)
	if err == nil {
		t.Fatal("expected mixed batch to fail")
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %T", err)
	}
	if perr.Records != 3 || perr.Destination != "option_trades" {
		t.Fatalf("unexpected error detail: %+v", perr)
	}
	if n != 0 {
		t.Fatalf("failed batch reported %d rows", n)
	}
	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("partial batch persisted %d rows", count)
	}
}

func TestFileSinkWritesJSONLinesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trades.jsonl")
	s, err := NewFileSink(models.DestinationOptionTrades, path, FileOptions{DedupCache: 16}, nil)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	ctx := context.Background()

	if n, err := s.WriteBatch(ctx, trades("t1", "t2")); err != nil || n != 2 {
		t.Fatalf("first write: n=%d err=%v", n, err)
	}
	if n, err := s.WriteBatch(ctx, trades("t2", "t3")); err != nil || n != 1 {
		t.Fatalf("overlapping write: n=%d err=%v", n, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line struct {
			Destination string `json:"destination"`
			Record      struct {
				ID string `json:"id"`
			} `json:"record"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		if line.Destination != "option_trades" {
			t.Fatalf("unexpected destination %q", line.Destination)
		}
		ids = append(ids, line.Record.ID)
	}
	if got := strings.Join(ids, ","); got != "t1,t2,t3" {
		t.Fatalf("unexpected ids %s", got)
	}
}

func TestParquetSinkLocalRedelivery(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, models.OptionTradeSchema)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	s, err := NewParquetSink(models.DestinationOptionTrades, store, 8, nil)
	if err != nil {
		t.Fatalf("parquet sink: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	batch := trades("t1", "t2", "t3")
	if n, err := s.WriteBatch(ctx, batch); err != nil || n != 3 {
		t.Fatalf("first write: n=%d err=%v", n, err)
	}

	// A fresh sink over the same directory has an empty cache, so the object
	// store itself must reject the duplicate.
	again, err := NewParquetSink(models.DestinationOptionTrades, store, 8, nil)
	if err != nil {
		t.Fatalf("parquet sink: %v", err)
	}
	if n, err := again.WriteBatch(ctx, batch); err != nil || n != 0 {
		t.Fatalf("redelivery: n=%d err=%v", n, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "date=*", "option_trades_*.parquet"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one object, got %v", matches)
	}
	if _, err := os.Stat(filepath.Join(dir, "catalog", "option_trades.json")); err != nil {
		t.Fatalf("catalog entry missing: %v", err)
	}
	if snaps := store.gen.Snapshots(); len(snaps) != 1 || snaps[0].AddedRecords != 3 {
		t.Fatalf("unexpected snapshots: %+v", snaps)
	}
}

func TestParquetSinkRepairsManifestOnRetry(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, models.OptionTradeSchema)
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	s, err := NewParquetSink(models.DestinationOptionTrades, store, 8, nil)
	if err != nil {
		t.Fatalf("parquet sink: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	// a plain file where the manifest directory belongs fails the commit
	// after the object is already in place
	metaDir := filepath.Join(dir, "metadata")
	if err := os.WriteFile(metaDir, []byte("x"), 0o644); err != nil {
		t.Fatalf("block metadata dir: %v", err)
	}
	batch := trades("t1", "t2", "t3")
	n, err := s.WriteBatch(ctx, batch)
	var perr *PersistenceError
	if !errors.As(err, &perr) || n != 0 {
		t.Fatalf("first write: n=%d err=%v", n, err)
	}
	if len(store.gen.Snapshots()) != 0 {
		t.Fatalf("failed commit left snapshots in memory: %+v", store.gen.Snapshots())
	}

	if err := os.Remove(metaDir); err != nil {
		t.Fatalf("unblock metadata dir: %v", err)
	}
	if n, err := s.WriteBatch(ctx, batch); err != nil || n != 3 {
		t.Fatalf("retry: n=%d err=%v", n, err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "date=*", "option_trades_*.parquet"))
	if len(matches) != 1 {
		t.Fatalf("expected one object, got %v", matches)
	}
	if snaps := store.gen.Snapshots(); len(snaps) != 1 || snaps[0].AddedRecords != 3 {
		t.Fatalf("manifest not repaired: %+v", snaps)
	}
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaSinkPublishesBatchOnce(t *testing.T) {
	w := &fakeWriter{}
	s, err := newKafkaSink(models.DestinationOptionTrades, "uw.trades", w, 4, nil)
	if err != nil {
		t.Fatalf("kafka sink: %v", err)
	}
	ctx := context.Background()
	batch := trades("t1", "t2")

	if n, err := s.WriteBatch(ctx, batch); err != nil || n != 2 {
		t.Fatalf("first write: n=%d err=%v", n, err)
	}
	if n, err := s.WriteBatch(ctx, batch); err != nil || n != 0 {
		t.Fatalf("redelivery: n=%d err=%v", n, err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if want := "option_trades/" + batchDigest(batch); string(w.msgs[0].Key) != want {
		t.Fatalf("unexpected key %s", w.msgs[0].Key)
	}
	var body struct {
		Records []json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(w.msgs[0].Value, &body); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if len(body.Records) != 2 {
		t.Fatalf("expected 2 records in message, got %d", len(body.Records))
	}
}

func TestKafkaSinkFailureKeepsBatchRetryable(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	s, err := newKafkaSink(models.DestinationOptionTrades, "uw.trades", w, 4, nil)
	if err != nil {
		t.Fatalf("kafka sink: %v", err)
	}
	batch := trades("t1")
	_, err = s.WriteBatch(context.Background(), batch)
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}

	w.err = nil
	if n, err := s.WriteBatch(context.Background(), batch); err != nil || n != 1 {
		t.Fatalf("retry: n=%d err=%v", n, err)
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(context.Background(), models.DestinationOptionTrades, appconfig.SinkConfig{Type: "csv"}, appconfig.StorageConfig{}, nil)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestNewBuildsSQLiteSink(t *testing.T) {
	cfg := appconfig.SinkConfig{Type: appconfig.SinkTypeSQLite, Path: filepath.Join(t.TempDir(), "a.db")}
	s, err := New(context.Background(), models.DestinationFlowAlerts, cfg, appconfig.StorageConfig{}, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	defer s.Close()
	if s.Name() != "sqlite:flow_alerts" {
		t.Fatalf("unexpected name %s", s.Name())
	}
}
