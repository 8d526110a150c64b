package services

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceSnapshot is a point-in-time view of host load. Model fitting is
// CPU-bound, so batch runs log a snapshot before and after to correlate slow
// runs with host pressure.
type ResourceSnapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	Goroutines    int       `json:"goroutines"`
	TakenAt       time.Time `json:"taken_at"`
}

// ResourceMonitor samples host CPU and memory.
type ResourceMonitor struct {
	logger *logrus.Logger
}

// NewResourceMonitor creates a monitor.
func NewResourceMonitor(logger *logrus.Logger) *ResourceMonitor {
	return &ResourceMonitor{logger: logger}
}

// Snapshot samples current host load. Sampling failures degrade to partial
// snapshots rather than errors; monitoring must never fail a batch.
func (rm *ResourceMonitor) Snapshot(ctx context.Context) ResourceSnapshot {
	snapshot := ResourceSnapshot{
		Goroutines: runtime.NumGoroutine(),
		TakenAt:    time.Now(),
	}

	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		snapshot.CPUPercent = cpuPercent[0]
	} else if err != nil {
		rm.logger.WithError(err).Debug("CPU sampling failed")
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snapshot.MemoryPercent = memInfo.UsedPercent
		snapshot.MemoryUsedMB = memInfo.Used / 1024 / 1024
	} else {
		rm.logger.WithError(err).Debug("Memory sampling failed")
	}

	return snapshot
}

// LogBatchResources logs before/after snapshots of a batch run.
func (rm *ResourceMonitor) LogBatchResources(before, after ResourceSnapshot, products int) {
	rm.logger.WithFields(logrus.Fields{
		"products":           products,
		"cpu_percent_before": before.CPUPercent,
		"cpu_percent_after":  after.CPUPercent,
		"memory_used_mb":     after.MemoryUsedMB,
		"goroutines":         after.Goroutines,
		"elapsed":            after.TakenAt.Sub(before.TakenAt).String(),
	}).Info("Batch resource usage")
}
