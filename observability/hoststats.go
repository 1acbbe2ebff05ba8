package observability

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// HostStatsReporter periodically samples the current process's CPU and
// memory usage via gopsutil and feeds them into Metrics. This is purely
// ambient: the protocol core never reads these numbers, they exist for
// operator dashboards. Grounded in the teacher's
// internal/single/platform/cgroup_cpu.go use of gopsutil, simplified
// since Irmo does not gate admission on container CPU headroom the way
// the teacher's connection-capacity logic does.
type HostStatsReporter struct {
	proc    *process.Process
	metrics *Metrics
	stop    chan struct{}
}

// NewHostStatsReporter opens a gopsutil handle on the current process.
func NewHostStatsReporter(metrics *Metrics) (*HostStatsReporter, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &HostStatsReporter{proc: proc, metrics: metrics, stop: make(chan struct{})}, nil
}

// Start begins sampling every interval until Stop is called. It owns its
// own goroutine; callers don't need to pump it.
func (r *HostStatsReporter) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sample()
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *HostStatsReporter) sample() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if pct, err := r.proc.CPUPercentWithContext(ctx); err == nil {
		r.metrics.HostCPUPercent.Set(pct)
	}
	if mem, err := r.proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		r.metrics.HostMemoryBytes.Set(float64(mem.RSS))
	}
}

// Stop ends the sampling goroutine.
func (r *HostStatsReporter) Stop() {
	close(r.stop)
}
