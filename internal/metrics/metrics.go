// Package metrics exposes the ingestion counters.
//
// Registers:
//
//	#feedflow_frames_total{destination,outcome}
//	#feedflow_flushes_total{destination,trigger}
//	#feedflow_records_written_total{destination}
//	#feedflow_persistence_errors_total{destination}
//	#feedflow_reconnect_attempts_total
//	#feedflow_connection_state
//	#feedflow_buffer_depth{destination}
//	#go_* and process_* system metrics
//
// Handler serves them for the status server's /metrics route.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once     sync.Once
	registry = prometheus.NewRegistry()

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedflow_frames_total",
			Help: "Frames classified by the router",
		},
		[]string{"destination", "outcome"},
	)

	flushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedflow_flushes_total",
			Help: "Successful buffer flushes by trigger",
		},
		[]string{"destination", "trigger"},
	)

	recordsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedflow_records_written_total",
			Help: "Records newly applied by sinks",
		},
		[]string{"destination"},
	)

	persistenceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedflow_persistence_errors_total",
			Help: "Failed batch writes",
		},
		[]string{"destination"},
	)

	reconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedflow_reconnect_attempts_total",
		Help: "Reconnect attempts made after a failed or lost connection",
	})

	connectionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feedflow_connection_state",
		Help: "Connection state (0 disconnected, 1 connecting, 2 subscribed, 3 streaming, 4 reconnecting, 5 draining, 6 closed)",
	})

	bufferDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedflow_buffer_depth",
			Help: "Records waiting in a destination buffer",
		},
		[]string{"destination"},
	)
)

// Init registers every collector once.
func Init() {
	once.Do(func() {
		registry.MustRegister(
			framesTotal,
			flushesTotal,
			recordsWritten,
			persistenceErrors,
			reconnectAttempts,
			connectionState,
			bufferDepth,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler returns the Prometheus exposition handler.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func IncFrame(destination, outcome string) {
	framesTotal.WithLabelValues(destination, outcome).Inc()
}

// ObserveFlush counts a successful flush and the rows it applied.
func ObserveFlush(destination, trigger string, written int) {
	flushesTotal.WithLabelValues(destination, trigger).Inc()
	recordsWritten.WithLabelValues(destination).Add(float64(written))
}

func IncPersistenceError(destination string) {
	persistenceErrors.WithLabelValues(destination).Inc()
}

func IncReconnect() {
	reconnectAttempts.Inc()
}

func SetConnectionState(state int) {
	connectionState.Set(float64(state))
}

func SetBufferDepth(destination string, depth int) {
	bufferDepth.WithLabelValues(destination).Set(float64(depth))
}
