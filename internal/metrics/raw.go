package metrics

import "time"

// RawReading holds one instant's unvalidated per-family readings straight
// from the platform API. Families that failed to read have a nil payload
// and an entry in Errors; the battery payload is also nil on hosts without
// a battery, with no error recorded.
type RawReading struct {
	Timestamp time.Time
	CPU       *RawCPU
	Memory    *RawMemory
	Disk      *RawDisk
	Battery   *RawBattery
	Network   *RawNetwork
	Processes *RawProcesses
	Errors    map[Family]error
}

// Failed reports whether the given family's read failed.
func (r *RawReading) Failed(f Family) bool {
	_, ok := r.Errors[f]
	return ok
}

type RawCPU struct {
	TotalPct      float64
	PerCorePct    []float64
	PhysicalCores int
	LogicalCores  int
	FrequencyMHz  float64
}

type RawMemory struct {
	UsedPct        float64
	UsedBytes      uint64
	TotalBytes     uint64
	AvailableBytes uint64
	SwapUsedPct    float64
	SwapUsedBytes  uint64
	SwapTotalBytes uint64
}

type RawPartition struct {
	Mount      string
	Device     string
	Fstype     string
	UsedPct    float64
	UsedBytes  uint64
	FreeBytes  uint64
	TotalBytes uint64
}

type RawDisk struct {
	Partitions []RawPartition
}

type RawBattery struct {
	Pct              float64
	Plugged          bool
	TimeRemainingMin int
}

type RawInterface struct {
	Name      string
	IPv4      string
	MAC       string
	RxBytes   uint64
	TxBytes   uint64
	SpeedMbps int
	Up        bool
}

type RawNetwork struct {
	Interfaces []RawInterface
}

type RawProcess struct {
	PID    int32
	Name   string
	CPUPct float64
	MemPct float64
	Status string
	User   string
}

type RawProcesses struct {
	Total     int
	Processes []RawProcess
}
