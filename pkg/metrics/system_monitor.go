package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	systemMemoryUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeline_system_memory_used_bytes",
		Help: "Host memory in use",
	})

	systemCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeline_system_cpu_percent",
		Help: "Host CPU utilization percentage",
	})

	systemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeline_goroutines",
		Help: "Number of live goroutines",
	})
)

// StartSystemMonitor samples host and runtime gauges on the given interval
// until ctx is cancelled.
func StartSystemMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sampleSystem()
			}
		}
	}()
}

func sampleSystem() {
	if vm, err := mem.VirtualMemory(); err == nil {
		systemMemoryUsed.Set(float64(vm.Used))
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		systemCPUPercent.Set(percents[0])
	}
	systemGoroutines.Set(float64(runtime.NumGoroutine()))
}
