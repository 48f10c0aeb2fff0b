// Package buffer accumulates routed records per destination and flushes them
// to a sink when either the size or the interval threshold is reached.
package buffer

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"feedflow/internal/metrics"
	"feedflow/internal/sink"
	"feedflow/logger"
	"feedflow/models"
)

// Trigger names the reason a flush happened.
type Trigger string

const (
	TriggerSize           Trigger = "size"
	TriggerInterval       Trigger = "interval"
	TriggerIdle           Trigger = "idle"
	TriggerConnectionLost Trigger = "connection_lost"
	TriggerShutdown       Trigger = "shutdown"
)

// Buffer is owned by one receive loop. Records and lastFlush are touched only
// from that goroutine; the atomic mirrors exist for Stats.
type Buffer struct {
	destination models.Destination
	sink        sink.Sink
	maxSize     int
	interval    time.Duration
	log         *logger.Log

	records   []models.Record
	lastFlush time.Time

	depth         atomic.Int64
	lastFlushNano atomic.Int64
	flushes       atomic.Int64
	failures      atomic.Int64
}

// New returns an empty buffer whose first interval starts now.
func New(destination models.Destination, s sink.Sink, maxSize int, interval time.Duration, log *logger.Log) *Buffer {
	b := &Buffer{
		destination: destination,
		sink:        s,
		maxSize:     maxSize,
		interval:    interval,
		log:         logger.Or(log),
		records:     make([]models.Record, 0, maxSize),
	}
	b.markFlushed(time.Now())
	return b
}

func (b *Buffer) Destination() models.Destination { return b.destination }

func (b *Buffer) Len() int { return len(b.records) }

// Append adds rec at the tail. An empty buffer whose interval already
// elapsed restarts its window at now, so a record arriving after a quiet
// spell waits for its batch instead of flushing alone.
func (b *Buffer) Append(rec models.Record, now time.Time) {
	if len(b.records) == 0 && now.Sub(b.lastFlush) >= b.interval {
		b.markFlushed(now)
	}
	b.records = append(b.records, rec)
	b.depth.Store(int64(len(b.records)))
	metrics.SetBufferDepth(string(b.destination), len(b.records))
}

// Due reports whether a threshold has been reached at now.
func (b *Buffer) Due(now time.Time) (Trigger, bool) {
	switch {
	case len(b.records) == 0:
		return "", false
	case b.maxSize > 0 && len(b.records) >= b.maxSize:
		return TriggerSize, true
	case now.Sub(b.lastFlush) >= b.interval:
		return TriggerInterval, true
	default:
		return "", false
	}
}

// NextDeadline is when the interval threshold fires. It is false for an
// empty buffer, which has nothing to flush.
func (b *Buffer) NextDeadline() (time.Time, bool) {
	if len(b.records) == 0 {
		return time.Time{}, false
	}
	return b.lastFlush.Add(b.interval), true
}

// MaybeFlush flushes when Due. It reports whether a flush succeeded.
func (b *Buffer) MaybeFlush(ctx context.Context, now time.Time) (bool, error) {
	trigger, ok := b.Due(now)
	if !ok {
		return false, nil
	}
	if err := b.Flush(ctx, now, trigger); err != nil {
		return false, err
	}
	return true, nil
}

// DrainFlush flushes unconditionally for shutdown.
func (b *Buffer) DrainFlush(ctx context.Context, now time.Time) error {
	return b.Flush(ctx, now, TriggerShutdown)
}

// Flush writes every buffered record to the sink as one batch. Cancellation
// of ctx does not interrupt a write once started. On failure the records
// stay buffered, in order, for the next attempt.
func (b *Buffer) Flush(ctx context.Context, now time.Time, trigger Trigger) error {
	if len(b.records) == 0 {
		return nil
	}
	batch := b.records
	dest := string(b.destination)
	log := b.log.WithComponent("buffer").WithFields(logger.Fields{
		"destination": dest,
		"records":     len(batch),
		"trigger":     string(trigger),
	})

	start := time.Now()
	written, err := b.sink.WriteBatch(context.WithoutCancel(ctx), batch)
	if err != nil {
		b.failures.Add(1)
		metrics.IncPersistenceError(dest)
		log.WithError(err).Error("flush failed; batch retained")
		var pe *sink.PersistenceError
		if !errors.As(err, &pe) {
			err = &sink.PersistenceError{Destination: dest, Records: len(batch), Err: err}
		}
		return err
	}

	b.records = make([]models.Record, 0, cap(batch))
	b.markFlushed(now)
	b.depth.Store(0)
	b.flushes.Add(1)

	metrics.SetBufferDepth(dest, 0)
	metrics.ObserveFlush(dest, string(trigger), written)
	metrics.EmitMetric(b.log, "buffer", "records_flushed", len(batch), "counter", logger.Fields{
		"destination": dest,
		"trigger":     string(trigger),
	})
	logger.RecordFlush(dest, len(batch))

	log.WithField("written", written).Info("buffer flushed")
	logger.LogPerformanceEntry(log, "buffer", "flush", time.Since(start), logger.Fields{"sink": b.sink.Name()})
	return nil
}

func (b *Buffer) markFlushed(now time.Time) {
	b.lastFlush = now
	b.lastFlushNano.Store(now.UnixNano())
}

// Stats is a point-in-time view of a buffer, safe to take from any goroutine.
type Stats struct {
	Destination string    `json:"destination"`
	Sink        string    `json:"sink"`
	Depth       int       `json:"depth"`
	LastFlush   time.Time `json:"last_flush"`
	Flushes     int64     `json:"flushes"`
	Failures    int64     `json:"failures"`
}

func (b *Buffer) Stats() Stats {
	return Stats{
		Destination: string(b.destination),
		Sink:        b.sink.Name(),
		Depth:       int(b.depth.Load()),
		LastFlush:   time.Unix(0, b.lastFlushNano.Load()).UTC(),
		Flushes:     b.flushes.Load(),
		Failures:    b.failures.Load(),
	}
}
