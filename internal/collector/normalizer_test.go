package collector_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/collector"
	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClampsAndRounds(t *testing.T) {
	n := collector.NewNormalizer(logger.Default(), 10)

	ts := time.Now()
	snapshot := n.Normalize(&metrics.RawReading{
		Timestamp: ts,
		CPU: &metrics.RawCPU{
			TotalPct:     47.123456,
			PerCorePct:   []float64{-3, 104.2, math.NaN(), 50.555},
			LogicalCores: 4,
		},
		Memory: &metrics.RawMemory{
			UsedPct:    101.5,
			UsedBytes:  8 << 30,
			TotalBytes: 8 << 30,
		},
	})

	assert.True(t, snapshot.Timestamp.Equal(ts))
	assert.InDelta(t, 47.12, snapshot.CPU.TotalPct, 0.001, "Expected rounding to two decimals")

	require.Len(t, snapshot.CPU.PerCorePct, 4)
	assert.InDelta(t, 0.0, snapshot.CPU.PerCorePct[0], 0.001, "Negative reading clamps to 0")
	assert.InDelta(t, 100.0, snapshot.CPU.PerCorePct[1], 0.001, "Overshoot clamps to 100")
	assert.InDelta(t, 0.0, snapshot.CPU.PerCorePct[2], 0.001, "NaN becomes 0")
	assert.InDelta(t, 50.56, snapshot.CPU.PerCorePct[3], 0.001)

	assert.InDelta(t, 100.0, snapshot.Memory.UsedPct, 0.001)
	assert.Empty(t, snapshot.Unavailable)
}

func TestNormalizeMarksFailedFamilies(t *testing.T) {
	n := collector.NewNormalizer(logger.Default(), 10)

	raw := &metrics.RawReading{
		Timestamp: time.Now(),
		Memory:    &metrics.RawMemory{UsedPct: 40},
		Errors: map[metrics.Family]error{
			metrics.FamilyCPU:     errors.New().New(errors.ErrCollectFamily),
			metrics.FamilyNetwork: errors.New().New(errors.ErrTimeout),
		},
	}
	snapshot := n.Normalize(raw)

	assert.False(t, snapshot.Available(metrics.FamilyCPU))
	assert.False(t, snapshot.Available(metrics.FamilyNetwork))
	assert.True(t, snapshot.Available(metrics.FamilyMemory))

	// The failed family's fields stay zero-valued, only the marker talks.
	assert.Zero(t, snapshot.CPU.TotalPct)
	assert.Empty(t, snapshot.Network)
}

func TestNormalizeNoBatteryIsNotUnavailable(t *testing.T) {
	n := collector.NewNormalizer(logger.Default(), 10)

	// Desktop host: no battery payload and no battery error.
	snapshot := n.Normalize(&metrics.RawReading{
		Timestamp: time.Now(),
		Memory:    &metrics.RawMemory{UsedPct: 40},
	})

	assert.Nil(t, snapshot.Battery)
	assert.True(t, snapshot.Available(metrics.FamilyBattery))
}

func TestNormalizeSortsDisksAndSkipsPseudoFilesystems(t *testing.T) {
	n := collector.NewNormalizer(logger.Default(), 10)

	snapshot := n.Normalize(&metrics.RawReading{
		Timestamp: time.Now(),
		Disk: &metrics.RawDisk{
			Partitions: []metrics.RawPartition{
				{Mount: "/var", UsedPct: 30, TotalBytes: 1 << 30},
				{Mount: "/proc", UsedPct: 0, TotalBytes: 0},
				{Mount: "/", UsedPct: 50, TotalBytes: 10 << 30},
				{Mount: "", UsedPct: 10, TotalBytes: 1 << 30},
			},
		},
	})

	require.Len(t, snapshot.Disks, 2, "Zero-size and unnamed mounts are dropped")
	assert.Equal(t, "/", snapshot.Disks[0].Mount)
	assert.Equal(t, "/var", snapshot.Disks[1].Mount)
}

func TestNormalizeTruncatesProcessesByCPU(t *testing.T) {
	n := collector.NewNormalizer(logger.Default(), 3)

	raw := &metrics.RawProcesses{Total: 6}
	for i := 0; i < 6; i++ {
		raw.Processes = append(raw.Processes, metrics.RawProcess{
			PID:    int32(i + 1),
			Name:   fmt.Sprintf("proc-%d", i),
			CPUPct: float64(i * 10),
		})
	}

	snapshot := n.Normalize(&metrics.RawReading{
		Timestamp: time.Now(),
		Processes: raw,
	})

	require.Len(t, snapshot.Processes, 3)
	assert.InDelta(t, 50.0, snapshot.Processes[0].CPUPct, 0.001, "Expected hottest process first")
	assert.InDelta(t, 40.0, snapshot.Processes[1].CPUPct, 0.001)
	assert.InDelta(t, 30.0, snapshot.Processes[2].CPUPct, 0.001)
}

func TestNormalizeSortsInterfaces(t *testing.T) {
	n := collector.NewNormalizer(logger.Default(), 10)

	snapshot := n.Normalize(&metrics.RawReading{
		Timestamp: time.Now(),
		Network: &metrics.RawNetwork{
			Interfaces: []metrics.RawInterface{
				{Name: "wlan0", Up: true},
				{Name: "eth0", Up: true},
				{Name: ""},
			},
		},
	})

	require.Len(t, snapshot.Network, 2)
	assert.Equal(t, "eth0", snapshot.Network[0].Name)
	assert.Equal(t, "wlan0", snapshot.Network[1].Name)
}
