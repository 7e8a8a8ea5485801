// Package hoststats samples host CPU, memory and load plus the dashboard's own runtime usage.
package hoststats

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats is one sample. Host fields stay zero when the platform cannot report them.
type Stats struct {
	SampledAt         time.Time `json:"sampled_at"`
	CPUPercent        float64   `json:"cpu_percent"`
	MemoryUsedPercent float64   `json:"memory_used_percent"`
	Load1             float64   `json:"load_1m"`
	Load5             float64   `json:"load_5m"`
	Load15            float64   `json:"load_15m"`
	MemoryTotalBytes  uint64    `json:"memory_total_bytes"`
	MemoryUsedBytes   uint64    `json:"memory_used_bytes"`
	HeapAllocBytes    uint64    `json:"heap_alloc_bytes"`
	Goroutines        int       `json:"goroutines"`
	Samples           int64     `json:"samples"`
}

// Collector refreshes Stats on a ticker until stopped.
type Collector struct {
	stop chan struct{}
	last Stats
	wg   sync.WaitGroup
	mu   sync.RWMutex
	once sync.Once
}

// New returns an idle Collector.
func New() *Collector {
	return &Collector{stop: make(chan struct{})}
}

// Start samples once immediately and then every interval in the background.
func (c *Collector) Start(ctx context.Context, interval time.Duration) {
	c.sample()
	t := time.NewTicker(interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-t.C:
				c.sample()
			}
		}
	}()
}

// Stop halts sampling and waits for the goroutine to exit.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// Snapshot returns the latest sample.
func (c *Collector) Snapshot() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Collector) sample() {
	s := Collect()
	c.mu.Lock()
	s.Samples = c.last.Samples + 1
	c.last = s
	c.mu.Unlock()
}

// Collect takes a single sample synchronously.
func Collect() Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := Stats{
		SampledAt:      time.Now(),
		HeapAllocBytes: ms.HeapAlloc,
		Goroutines:     runtime.NumGoroutine(),
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		s.MemoryTotalBytes = vm.Total
		s.MemoryUsedBytes = vm.Used
		s.MemoryUsedPercent = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil && avg != nil {
		s.Load1, s.Load5, s.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	return s
}
