package services

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"

	"modelswap/internal/logger"
	"modelswap/internal/metrics"
)

const bytesPerMB = 1024 * 1024

// MemorySnapshot is a point-in-time reading of this process's memory.
type MemorySnapshot struct {
	RSSBytes uint64
	RSSMB    float64
	Percent  float64
}

// ResourceMonitor samples process memory around requests. It is advisory and
// never blocks a request.
type ResourceMonitor struct {
	proc    *process.Process
	reclaim bool
	metrics *metrics.Collector
}

func NewResourceMonitor(reclaim bool, collector *metrics.Collector) (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return &ResourceMonitor{proc: proc, reclaim: reclaim, metrics: collector}, nil
}

func (m *ResourceMonitor) Snapshot() (MemorySnapshot, error) {
	info, err := m.proc.MemoryInfo()
	if err != nil {
		return MemorySnapshot{}, fmt.Errorf("memory info: %w", err)
	}
	pct, err := m.proc.MemoryPercent()
	if err != nil {
		return MemorySnapshot{}, fmt.Errorf("memory percent: %w", err)
	}
	return MemorySnapshot{
		RSSBytes: info.RSS,
		RSSMB:    float64(info.RSS) / bytesPerMB,
		Percent:  float64(pct),
	}, nil
}

// Track samples memory now and returns a func that reclaims memory, samples
// again and logs the delta.
func (m *ResourceMonitor) Track(label string) func() {
	before, err := m.Snapshot()
	if err != nil {
		logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("Failed to sample memory")
	} else {
		logger.WithFields(logrus.Fields{
			"request":  label,
			"memoryMB": fmt.Sprintf("%.2f", before.RSSMB),
		}).Info("Memory usage before " + label)
	}

	return func() {
		m.Reclaim()
		after, aerr := m.Snapshot()
		if aerr != nil {
			logger.WithFields(logrus.Fields{"error": aerr.Error()}).Warn("Failed to sample memory")
			return
		}
		if m.metrics != nil {
			m.metrics.SetResidentMemory(after.RSSBytes)
		}
		fields := logrus.Fields{
			"request":  label,
			"memoryMB": fmt.Sprintf("%.2f", after.RSSMB),
		}
		if err == nil {
			fields["diffMB"] = fmt.Sprintf("%+.2f", after.RSSMB-before.RSSMB)
		}
		logger.WithFields(fields).Info("Memory usage after " + label)
	}
}

// Reclaim forces a collection and returns freed memory to the OS, when enabled.
func (m *ResourceMonitor) Reclaim() {
	if m.reclaim {
		debug.FreeOSMemory()
	}
}
