package collector

import (
	"math"
	"sort"

	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
)

const (
	minPct = 0
	maxPct = 100
)

// Normalizer converts raw platform readings into the canonical snapshot
// shape. Failed families become explicit unavailability markers, never
// zeroes, so downstream alert logic cannot fire off missing data.
type Normalizer struct {
	log          logger.Logger
	processLimit int
}

func NewNormalizer(log logger.Logger, processLimit int) *Normalizer {
	if processLimit <= 0 {
		processLimit = 10
	}

	return &Normalizer{
		log:          log,
		processLimit: processLimit,
	}
}

// Normalize validates ranges, rounds percentages and records which
// families are unavailable. It never fails: anomalies are clamped and
// reported through the logger.
func (n *Normalizer) Normalize(raw *metrics.RawReading) metrics.Snapshot {
	snapshot := metrics.Snapshot{
		Timestamp: raw.Timestamp,
	}

	for _, family := range metrics.Families() {
		if raw.Failed(family) {
			snapshot.Unavailable = append(snapshot.Unavailable, family)
		}
	}

	if raw.CPU != nil {
		snapshot.CPU = n.normalizeCPU(raw.CPU)
	}
	if raw.Memory != nil {
		snapshot.Memory = n.normalizeMemory(raw.Memory)
	}
	if raw.Disk != nil {
		snapshot.Disks = n.normalizeDisk(raw.Disk)
	}
	if raw.Battery != nil {
		snapshot.Battery = &metrics.BatteryMetrics{
			Pct:              n.clampPct("battery", raw.Battery.Pct),
			Plugged:          raw.Battery.Plugged,
			TimeRemainingMin: raw.Battery.TimeRemainingMin,
		}
	}
	if raw.Network != nil {
		snapshot.Network = n.normalizeNetwork(raw.Network)
	}
	if raw.Processes != nil {
		snapshot.Processes = n.normalizeProcesses(raw.Processes)
	}

	return snapshot
}

func (n *Normalizer) normalizeCPU(raw *metrics.RawCPU) metrics.CPUMetrics {
	out := metrics.CPUMetrics{
		TotalPct:      n.clampPct("cpu_total", raw.TotalPct),
		PhysicalCores: raw.PhysicalCores,
		LogicalCores:  raw.LogicalCores,
		FrequencyMHz:  round2(raw.FrequencyMHz),
	}
	out.PerCorePct = make([]float64, len(raw.PerCorePct))
	for i, pct := range raw.PerCorePct {
		out.PerCorePct[i] = n.clampPct("cpu_core", pct)
	}

	return out
}

func (n *Normalizer) normalizeMemory(raw *metrics.RawMemory) metrics.MemoryMetrics {
	return metrics.MemoryMetrics{
		UsedPct:        n.clampPct("memory", raw.UsedPct),
		UsedBytes:      raw.UsedBytes,
		TotalBytes:     raw.TotalBytes,
		AvailableBytes: raw.AvailableBytes,
		SwapUsedPct:    n.clampPct("swap", raw.SwapUsedPct),
		SwapUsedBytes:  raw.SwapUsedBytes,
		SwapTotalBytes: raw.SwapTotalBytes,
	}
}

func (n *Normalizer) normalizeDisk(raw *metrics.RawDisk) []metrics.DiskMetrics {
	out := make([]metrics.DiskMetrics, 0, len(raw.Partitions))
	for _, part := range raw.Partitions {
		if part.Mount == "" || part.TotalBytes == 0 {
			continue
		}
		out = append(out, metrics.DiskMetrics{
			Mount:      part.Mount,
			Device:     part.Device,
			Fstype:     part.Fstype,
			UsedPct:    n.clampPct("disk", part.UsedPct),
			UsedBytes:  part.UsedBytes,
			FreeBytes:  part.FreeBytes,
			TotalBytes: part.TotalBytes,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Mount < out[j].Mount
	})

	return out
}

func (n *Normalizer) normalizeNetwork(raw *metrics.RawNetwork) []metrics.InterfaceMetrics {
	out := make([]metrics.InterfaceMetrics, 0, len(raw.Interfaces))
	for _, iface := range raw.Interfaces {
		if iface.Name == "" {
			continue
		}
		out = append(out, metrics.InterfaceMetrics{
			Name:      iface.Name,
			IPv4:      iface.IPv4,
			MAC:       iface.MAC,
			RxBytes:   iface.RxBytes,
			TxBytes:   iface.TxBytes,
			SpeedMbps: iface.SpeedMbps,
			Up:        iface.Up,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out
}

func (n *Normalizer) normalizeProcesses(raw *metrics.RawProcesses) []metrics.ProcessMetrics {
	out := make([]metrics.ProcessMetrics, 0, len(raw.Processes))
	for _, proc := range raw.Processes {
		out = append(out, metrics.ProcessMetrics{
			PID:    proc.PID,
			Name:   proc.Name,
			CPUPct: n.clampPct("process_cpu", proc.CPUPct),
			MemPct: n.clampPct("process_mem", proc.MemPct),
			Status: proc.Status,
			User:   proc.User,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CPUPct > out[j].CPUPct
	})
	if len(out) > n.processLimit {
		out = out[:n.processLimit]
	}

	return out
}

// clampPct forces a percentage into [0,100], reporting out-of-range
// values instead of failing the snapshot.
func (n *Normalizer) clampPct(field string, pct float64) float64 {
	if math.IsNaN(pct) {
		n.log.Warn().Str("field", field).Msg("Percentage reading is NaN, using 0")
		return minPct
	}
	if pct < minPct {
		n.log.Warn().Str("field", field).Float64("value", pct).Msg("Percentage below range, clamping")
		return minPct
	}
	if pct > maxPct {
		n.log.Warn().Str("field", field).Float64("value", pct).Msg("Percentage above range, clamping")
		return maxPct
	}

	return round2(pct)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
