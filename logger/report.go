package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type destinationStat struct {
	delivered int64
	skipped   int64
	malformed int64
	flushed   int64
}

var (
	warnsByComponent  sync.Map // map[string]*int64
	errorsByComponent sync.Map // map[string]*int64
	destinations      sync.Map // map[string]*destinationStat
	reconnects        int64
)

func bump(m *sync.Map, key string) {
	v, _ := m.LoadOrStore(key, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func recordWarn(component string) {
	bump(&warnsByComponent, component)
}

func recordError(component string) {
	bump(&errorsByComponent, component)
}

func destination(name string) *destinationStat {
	v, _ := destinations.LoadOrStore(name, &destinationStat{})
	return v.(*destinationStat)
}

// RecordFrame counts one routed frame for the runtime report. outcome is one
// of delivered, skipped or malformed.
func RecordFrame(dest, outcome string) {
	ds := destination(dest)
	switch outcome {
	case "delivered":
		atomic.AddInt64(&ds.delivered, 1)
	case "skipped":
		atomic.AddInt64(&ds.skipped, 1)
	default:
		atomic.AddInt64(&ds.malformed, 1)
	}
}

// RecordFlush counts records persisted for a destination.
func RecordFlush(dest string, records int) {
	atomic.AddInt64(&destination(dest).flushed, int64(records))
}

// RecordReconnect counts one reconnect attempt.
func RecordReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

func snapshotCounters(m *sync.Map) map[string]int64 {
	out := map[string]int64{}
	m.Range(func(k, v any) bool {
		out[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}

// StartReport begins periodic logging of runtime and pipeline statistics
// until ctx is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	cpuPct := 0.0
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	memoryMB := int64(0)
	if vm, err := mem.VirtualMemory(); err == nil {
		memoryMB = int64(vm.Used) / 1024 / 1024
	}

	perDestination := map[string]map[string]int64{}
	destinations.Range(func(k, v any) bool {
		ds := v.(*destinationStat)
		perDestination[k.(string)] = map[string]int64{
			"delivered": atomic.LoadInt64(&ds.delivered),
			"skipped":   atomic.LoadInt64(&ds.skipped),
			"malformed": atomic.LoadInt64(&ds.malformed),
			"flushed":   atomic.LoadInt64(&ds.flushed),
		}
		return true
	})

	log.WithComponent("report").WithFields(Fields{
		"goroutines":   runtime.NumGoroutine(),
		"cpu_percent":  cpuPct,
		"memory_mb":    memoryMB,
		"reconnects":   atomic.LoadInt64(&reconnects),
		"warns":        snapshotCounters(&warnsByComponent),
		"errors":       snapshotCounters(&errorsByComponent),
		"destinations": perDestination,
	}).Info("runtime report")
}
