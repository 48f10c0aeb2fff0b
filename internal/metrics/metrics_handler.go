package metrics

import (
	"sync"
	"time"

	"feedflow/logger"
)

// Metric is one structured metric event.
type Metric struct {
	Timestamp time.Time
	Component string
	Name      string
	Value     interface{}
	Type      string
	Fields    logger.Fields
}

// MetricHandler receives every emitted metric.
type MetricHandler func(Metric)

type MetricHandlerID uint64

var (
	handlersMu sync.RWMutex
	handlers   = make(map[MetricHandlerID]MetricHandler)
	lastID     MetricHandlerID
)

// RegisterMetricHandler adds h and returns its id. A nil handler is ignored
// and yields id zero.
func RegisterMetricHandler(h MetricHandler) MetricHandlerID {
	if h == nil {
		return 0
	}
	handlersMu.Lock()
	defer handlersMu.Unlock()
	lastID++
	handlers[lastID] = h
	return lastID
}

func UnregisterMetricHandler(id MetricHandlerID) {
	if id == 0 {
		return
	}
	handlersMu.Lock()
	delete(handlers, id)
	handlersMu.Unlock()
}

// newMetric logs the event and fans it out to the registered handlers. The
// caller's fields are copied, never mutated.
func newMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) (Metric, bool) {
	if name == "" {
		return Metric{}, false
	}
	if metricType == "" {
		metricType = "counter"
	}

	own := make(logger.Fields, len(fields))
	for k, v := range fields {
		own[k] = v
	}

	entryFields := make(logger.Fields, len(own)+3)
	for k, v := range own {
		entryFields[k] = v
	}
	entryFields["metric"] = name
	entryFields["metric_type"] = metricType
	entryFields["value"] = value
	logger.Or(log).WithComponent(component).WithFields(entryFields).Debug("metric")

	m := Metric{
		Timestamp: timeNow(),
		Component: component,
		Name:      name,
		Value:     value,
		Type:      metricType,
		Fields:    own,
	}

	handlersMu.RLock()
	targets := make([]MetricHandler, 0, len(handlers))
	for _, h := range handlers {
		targets = append(targets, h)
	}
	handlersMu.RUnlock()

	for _, h := range targets {
		h(m)
	}
	return m, true
}
