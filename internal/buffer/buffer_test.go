package buffer

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"feedflow/internal/sink"
	"feedflow/models"
)

type memorySink struct {
	batches [][]models.Record
	fail    error
}

func (m *memorySink) Name() string { return "memory" }
func (m *memorySink) Close() error { return nil }

func (m *memorySink) WriteBatch(ctx context.Context, records []models.Record) (int, error) {
	if m.fail != nil {
		return 0, m.fail
	}
	m.batches = append(m.batches, append([]models.Record(nil), records...))
	return len(records), nil
}

func alert(id string) models.Record {
	return models.FlowAlert{ID: id, Ticker: "SPY"}
}

func TestIntervalFlushesPartialBatch(t *testing.T) {
	s := &memorySink{}
	start := time.Now()
	b := New(models.DestinationFlowAlerts, s, 500, 10*time.Second, nil)
	b.markFlushed(start)

	// 499 records within the first second
	for i := 0; i < 499; i++ {
		now := start.Add(time.Duration(i) * time.Millisecond * 2)
		b.Append(alert(strconv.Itoa(i)), now)
		if flushed, err := b.MaybeFlush(context.Background(), now); err != nil || flushed {
			t.Fatalf("record %d: unexpected flush=%v err=%v", i, flushed, err)
		}
	}

	deadline, ok := b.NextDeadline()
	if !ok || !deadline.Equal(start.Add(10*time.Second)) {
		t.Fatalf("unexpected deadline %s", deadline)
	}

	if flushed, _ := b.MaybeFlush(context.Background(), start.Add(9*time.Second)); flushed {
		t.Fatal("flushed before the interval elapsed")
	}
	trigger, due := b.Due(start.Add(10 * time.Second))
	if !due || trigger != TriggerInterval {
		t.Fatalf("expected interval trigger, got %q %v", trigger, due)
	}
	if flushed, err := b.MaybeFlush(context.Background(), start.Add(10*time.Second)); !flushed || err != nil {
		t.Fatalf("expected flush at interval, got %v %v", flushed, err)
	}
	if len(s.batches) != 1 || len(s.batches[0]) != 499 {
		t.Fatalf("expected one batch of 499, got %d batches", len(s.batches))
	}
	if b.Len() != 0 {
		t.Fatalf("count must be zero after flush, got %d", b.Len())
	}
	if flushed, _ := b.MaybeFlush(context.Background(), start.Add(21*time.Second)); flushed {
		t.Fatal("empty buffer must not flush")
	}
	if len(s.batches) != 1 {
		t.Fatalf("expected exactly one flush, got %d", len(s.batches))
	}
}

func TestSizeTriggeredFlush(t *testing.T) {
	s := &memorySink{}
	now := time.Now()
	b := New(models.DestinationFlowAlerts, s, 3, time.Hour, nil)
	b.Append(alert("1"), now)
	b.Append(alert("2"), now)
	if _, due := b.Due(now); due {
		t.Fatal("not due below size")
	}
	b.Append(alert("3"), now)
	trigger, due := b.Due(now)
	if !due || trigger != TriggerSize {
		t.Fatalf("expected size trigger, got %q", trigger)
	}
	if flushed, err := b.MaybeFlush(context.Background(), now); !flushed || err != nil {
		t.Fatalf("expected flush, got %v %v", flushed, err)
	}
	if len(s.batches) != 1 || len(s.batches[0]) != 3 {
		t.Fatalf("unexpected batches %v", s.batches)
	}
}

func TestFlushPreservesOrder(t *testing.T) {
	s := &memorySink{}
	now := time.Now()
	b := New(models.DestinationFlowAlerts, s, 10, time.Hour, nil)
	for _, id := range []string{"c", "a", "b"} {
		b.Append(alert(id), now)
	}
	if err := b.DrainFlush(context.Background(), now); err != nil {
		t.Fatalf("drain: %v", err)
	}
	got := ""
	for _, r := range s.batches[0] {
		got += r.DedupKey()
	}
	if got != "cab" {
		t.Fatalf("expected append order, got %s", got)
	}
}

func TestEmptyFlushIsNoop(t *testing.T) {
	s := &memorySink{}
	b := New(models.DestinationFlowAlerts, s, 10, time.Second, nil)
	before := b.lastFlush
	if err := b.Flush(context.Background(), before.Add(time.Hour), TriggerShutdown); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(s.batches) != 0 {
		t.Fatal("empty flush reached the sink")
	}
	if !b.lastFlush.Equal(before) {
		t.Fatal("empty flush must not reset the interval")
	}
}

func TestFailedFlushRetainsBatch(t *testing.T) {
	s := &memorySink{fail: errors.New("disk full")}
	now := time.Now()
	b := New(models.DestinationFlowAlerts, s, 10, time.Hour, nil)
	b.Append(alert("1"), now)
	b.Append(alert("2"), now)

	err := b.DrainFlush(context.Background(), now)
	var pe *sink.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if pe.Records != 2 || pe.Destination != "flow_alerts" {
		t.Fatalf("unexpected error fields %+v", pe)
	}
	if b.Len() != 2 {
		t.Fatalf("batch must be retained, have %d", b.Len())
	}

	s.fail = nil
	b.Append(alert("3"), now)
	if err := b.DrainFlush(context.Background(), now); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(s.batches) != 1 || len(s.batches[0]) != 3 || s.batches[0][0].DedupKey() != "1" {
		t.Fatalf("retry must write the retained batch first: %v", s.batches)
	}
	if st := b.Stats(); st.Failures != 1 || st.Flushes != 1 || st.Depth != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestFlushIgnoresCancellation(t *testing.T) {
	s := &ctxSink{}
	b := New(models.DestinationFlowAlerts, s, 10, time.Hour, nil)
	b.Append(alert("1"), time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.DrainFlush(ctx, time.Now()); err != nil {
		t.Fatalf("drain after cancel: %v", err)
	}
	if s.sawCancelled {
		t.Fatal("sink observed a cancelled context")
	}
}

type ctxSink struct{ sawCancelled bool }

func (c *ctxSink) Name() string { return "ctx" }
func (c *ctxSink) Close() error { return nil }
func (c *ctxSink) WriteBatch(ctx context.Context, records []models.Record) (int, error) {
	c.sawCancelled = ctx.Err() != nil
	return len(records), nil
}

func TestAppendAfterQuietSpellRestartsWindow(t *testing.T) {
	s := &memorySink{}
	start := time.Now()
	b := New(models.DestinationFlowAlerts, s, 10, 10*time.Second, nil)
	b.markFlushed(start)

	late := start.Add(time.Minute)
	b.Append(alert("1"), late)
	if _, due := b.Due(late); due {
		t.Fatal("lone record after a quiet spell should wait for its window")
	}
	if d, _ := b.NextDeadline(); !d.Equal(late.Add(10 * time.Second)) {
		t.Fatalf("unexpected deadline %s", d)
	}
}
