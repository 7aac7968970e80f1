package metrics

import "time"

// Family identifies an independently sampled group of host metrics.
// A failure in one family never aborts collection of the others.
type Family string

const (
	FamilyCPU       Family = "cpu"
	FamilyMemory    Family = "memory"
	FamilyDisk      Family = "disk"
	FamilyBattery   Family = "battery"
	FamilyNetwork   Family = "network"
	FamilyProcesses Family = "processes"
)

// Families returns all metric families in sampling order.
func Families() []Family {
	return []Family{
		FamilyCPU,
		FamilyMemory,
		FamilyDisk,
		FamilyBattery,
		FamilyNetwork,
		FamilyProcesses,
	}
}

// Kind identifies an alertable metric. Disk alerts carry the mount path
// as the sub-entity, CPU and memory use the whole-host entity.
type Kind string

const (
	KindCPU     Kind = "cpu"
	KindMemory  Kind = "memory"
	KindDisk    Kind = "disk"
	KindBattery Kind = "battery"
)

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank orders severities so escalation checks can compare them.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// Snapshot is one normalized, timestamped reading of all metric families.
// Timestamp comes from time.Now at sampling time, so it carries both the
// wall clock and Go's monotonic reading. Families that failed to collect
// are listed in Unavailable and their fields hold zero values; consumers
// must check availability before treating a zero as a real reading.
type Snapshot struct {
	Timestamp   time.Time          `json:"timestamp"`
	CPU         CPUMetrics         `json:"cpu"`
	Memory      MemoryMetrics      `json:"memory"`
	Disks       []DiskMetrics      `json:"disks"`
	Battery     *BatteryMetrics    `json:"battery,omitempty"`
	Network     []InterfaceMetrics `json:"network"`
	Processes   []ProcessMetrics   `json:"top_processes"`
	Unavailable []Family           `json:"unavailable,omitempty"`
}

// Available reports whether the given family collected successfully
// for this snapshot.
func (s *Snapshot) Available(f Family) bool {
	for _, u := range s.Unavailable {
		if u == f {
			return false
		}
	}

	return true
}

type CPUMetrics struct {
	TotalPct      float64   `json:"total_pct"`
	PerCorePct    []float64 `json:"per_core_pct"`
	PhysicalCores int       `json:"physical_cores"`
	LogicalCores  int       `json:"logical_cores"`
	FrequencyMHz  float64   `json:"frequency_mhz"`
}

type MemoryMetrics struct {
	UsedPct        float64 `json:"used_pct"`
	UsedBytes      uint64  `json:"used_bytes"`
	TotalBytes     uint64  `json:"total_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	SwapUsedPct    float64 `json:"swap_used_pct"`
	SwapUsedBytes  uint64  `json:"swap_used_bytes"`
	SwapTotalBytes uint64  `json:"swap_total_bytes"`
}

type DiskMetrics struct {
	Mount      string  `json:"mount"`
	Device     string  `json:"device"`
	Fstype     string  `json:"fstype"`
	UsedPct    float64 `json:"used_pct"`
	UsedBytes  uint64  `json:"used_bytes"`
	FreeBytes  uint64  `json:"free_bytes"`
	TotalBytes uint64  `json:"total_bytes"`
}

// BatteryMetrics is present only on hosts with a battery. A nil Battery
// on a snapshot whose battery family is available means "no battery",
// not "battery at zero".
type BatteryMetrics struct {
	Pct              float64 `json:"pct"`
	Plugged          bool    `json:"plugged"`
	TimeRemainingMin int     `json:"time_remaining_min"` // -1 when unknown
}

type InterfaceMetrics struct {
	Name      string `json:"name"`
	IPv4      string `json:"ipv4,omitempty"`
	MAC       string `json:"mac,omitempty"`
	RxBytes   uint64 `json:"rx_bytes"`
	TxBytes   uint64 `json:"tx_bytes"`
	SpeedMbps int    `json:"speed_mbps"`
	Up        bool   `json:"up"`
}

type ProcessMetrics struct {
	PID    int32   `json:"pid"`
	Name   string  `json:"name"`
	CPUPct float64 `json:"cpu_pct"`
	MemPct float64 `json:"mem_pct"`
	Status string  `json:"status,omitempty"`
	User   string  `json:"user,omitempty"`
}

// HostInfo describes the host itself. It is read once at startup and
// served unchanged, so it lives outside the per-tick snapshot.
type HostInfo struct {
	Hostname        string    `json:"hostname"`
	Platform        string    `json:"platform"`
	PlatformVersion string    `json:"platform_version"`
	KernelArch      string    `json:"kernel_arch"`
	BootTime        time.Time `json:"boot_time"`
	UptimeSec       uint64    `json:"uptime_sec"`
}
