// Package host samples resource usage of the machine running the daemon.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/melih/lighthouse-dash/internal/core/domain"
)

// Sampler implements ports.HostSampler with gopsutil.
type Sampler struct {
	now func() time.Time
}

// NewSampler creates a Sampler.
func NewSampler() *Sampler {
	return &Sampler{now: time.Now}
}

// Sample reads memory and overall CPU usage.
func (s *Sampler) Sample(ctx context.Context) (domain.HostMetrics, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return domain.HostMetrics{}, fmt.Errorf("failed to read memory usage: %w", err)
	}
	// A zero interval compares against the previous call, so the first sample reads 0.
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return domain.HostMetrics{}, fmt.Errorf("failed to read cpu usage: %w", err)
	}

	m := domain.HostMetrics{
		MemoryTotal:   vm.Total,
		MemoryUsed:    vm.Used,
		MemoryPercent: vm.UsedPercent,
		Timestamp:     float64(s.now().UnixNano()) / float64(time.Second),
	}
	if len(pct) > 0 {
		m.CPUPercent = pct[0]
	}
	return m, nil
}
