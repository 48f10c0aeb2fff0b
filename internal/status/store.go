package status

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"feedflow/internal/metrics"
)

// ring keeps the newest limit items.
type ring[T any] struct {
	mu    sync.RWMutex
	items []T
	limit int
}

func (r *ring[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
	if len(r.items) > r.limit {
		r.items = append([]T(nil), r.items[len(r.items)-r.limit:]...)
	}
}

func (r *ring[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// eventStore collects metrics emitted through metrics.EmitMetric.
type eventStore struct {
	ring[metrics.Metric]
}

func newEventStore(limit int) *eventStore {
	return &eventStore{ring[metrics.Metric]{limit: limit}}
}

func (s *eventStore) handle(m metrics.Metric) { s.add(m) }

type logRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// logStore is a logrus hook retaining recent warnings and errors.
type logStore struct {
	ring[logRecord]
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	s := &logStore{ring: ring[logRecord]{limit: limit}}
	s.enabled.Store(true)
	return s
}

func (s *logStore) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}
	rec := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Message:   entry.Message,
	}
	for k, v := range entry.Data {
		if k == "component" {
			rec.Component, _ = v.(string)
			continue
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]any, len(entry.Data))
		}
		switch val := v.(type) {
		case error:
			rec.Fields[k] = val.Error()
		case fmt.Stringer:
			rec.Fields[k] = val.String()
		default:
			rec.Fields[k] = val
		}
	}
	s.add(rec)
	return nil
}

func (s *logStore) close() { s.enabled.Store(false) }
