package status

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"feedflow/logger"
)

// resourceSnapshot is one host utilisation sample. Sinks write to local
// disk, so disk usage of the data volume matters as much as memory.
type resourceSnapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	CPUPercent  float64   `json:"cpu_percent"`
	MemoryUsed  uint64    `json:"memory_used"`
	MemoryTotal uint64    `json:"memory_total"`
	MemoryPct   float64   `json:"memory_percent"`
	DiskUsed    uint64    `json:"disk_used"`
	DiskTotal   uint64    `json:"disk_total"`
	DiskPct     float64   `json:"disk_percent"`
}

var (
	cpuPercentFn = func(ctx context.Context) ([]float64, error) {
		return cpu.PercentWithContext(ctx, 0, false)
	}
	memoryStatsFn = mem.VirtualMemoryWithContext
	diskUsageFn   = disk.UsageWithContext
)

type resourceSampler struct {
	samples  ring[resourceSnapshot]
	interval time.Duration
	diskPath string
	log      *logger.Log

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newResourceSampler(limit int, interval time.Duration, diskPath string, log *logger.Log) *resourceSampler {
	return &resourceSampler{
		samples:  ring[resourceSnapshot]{limit: limit},
		interval: interval,
		diskPath: diskPath,
		log:      logger.Or(log),
	}
}

func (s *resourceSampler) start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			s.sample(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *resourceSampler) stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *resourceSampler) snapshot() []resourceSnapshot { return s.samples.snapshot() }

func (s *resourceSampler) sample(ctx context.Context) {
	log := s.log.WithComponent("resource_sampler")
	cpuPct, err := cpuPercentFn(ctx)
	if err != nil {
		log.WithError(err).Debug("failed to sample cpu usage")
		return
	}
	vm, err := memoryStatsFn(ctx)
	if err != nil {
		log.WithError(err).Debug("failed to sample memory usage")
		return
	}
	du, err := diskUsageFn(ctx, s.diskPath)
	if err != nil {
		log.WithError(err).Debug("failed to sample disk usage")
		return
	}

	snap := resourceSnapshot{
		Timestamp:   time.Now(),
		MemoryUsed:  vm.Used,
		MemoryTotal: vm.Total,
		MemoryPct:   vm.UsedPercent,
		DiskUsed:    du.Used,
		DiskTotal:   du.Total,
		DiskPct:     du.UsedPercent,
	}
	if len(cpuPct) > 0 {
		snap.CPUPercent = cpuPct[0]
	}
	s.samples.add(snap)
}
