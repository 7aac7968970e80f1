package platform

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

type sampler struct {
	cfg     Config
	battery *batteryReader
}

// New returns a Sampler backed by the host OS.
func New(cfg Config) Sampler {
	if cfg.FamilyTimeout <= 0 {
		cfg.FamilyTimeout = DefaultConfig().FamilyTimeout
	}
	if cfg.ProcessLimit <= 0 {
		cfg.ProcessLimit = DefaultConfig().ProcessLimit
	}

	return &sampler{
		cfg:     cfg,
		battery: newBatteryReader(),
	}
}

// Sample reads all metric families concurrently, each under its own
// timeout. No retries here; transient failures are retried by the next
// scheduled tick.
func (s *sampler) Sample(ctx context.Context) *metrics.RawReading {
	reading := &metrics.RawReading{
		Timestamp: time.Now(),
		Errors:    make(map[metrics.Family]error),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	fail := func(family metrics.Family, err error) {
		mu.Lock()
		defer mu.Unlock()
		reading.Errors[family] = errors.New().
			Wrap(ErrCollectFamily, err).
			WithMessage("Failed to collect " + string(family))
	}

	run := func(family metrics.Family, read func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			famCtx, cancel := context.WithTimeout(ctx, s.cfg.FamilyTimeout)
			defer cancel()
			if err := read(famCtx); err != nil {
				fail(family, err)
			}
		}()
	}

	run(metrics.FamilyCPU, func(ctx context.Context) error {
		raw, err := s.readCPU(ctx)
		if err != nil {
			return err
		}
		reading.CPU = raw
		return nil
	})
	run(metrics.FamilyMemory, func(ctx context.Context) error {
		raw, err := s.readMemory(ctx)
		if err != nil {
			return err
		}
		reading.Memory = raw
		return nil
	})
	run(metrics.FamilyDisk, func(ctx context.Context) error {
		raw, err := s.readDisk(ctx)
		if err != nil {
			return err
		}
		reading.Disk = raw
		return nil
	})
	run(metrics.FamilyBattery, func(ctx context.Context) error {
		raw, err := s.battery.read()
		if err != nil {
			return err
		}
		reading.Battery = raw // nil on hosts without a battery
		return nil
	})
	run(metrics.FamilyNetwork, func(ctx context.Context) error {
		raw, err := s.readNetwork(ctx)
		if err != nil {
			return err
		}
		reading.Network = raw
		return nil
	})
	run(metrics.FamilyProcesses, func(ctx context.Context) error {
		raw, err := s.readProcesses(ctx)
		if err != nil {
			return err
		}
		reading.Processes = raw
		return nil
	})

	wg.Wait()

	return reading
}

func (s *sampler) HostInfo(ctx context.Context) (metrics.HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return metrics.HostInfo{}, errors.New().Wrap(ErrHostInfo, err)
	}

	return metrics.HostInfo{
		Hostname:        info.Hostname,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelArch:      info.KernelArch,
		BootTime:        time.Unix(int64(info.BootTime), 0),
		UptimeSec:       info.Uptime,
	}, nil
}

func (s *sampler) readCPU(ctx context.Context) (*metrics.RawCPU, error) {
	// Interval 0 measures against the previous call, so periodic
	// sampling gets the usage since the last tick.
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, err
	}
	perCore, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return nil, err
	}

	raw := &metrics.RawCPU{
		PerCorePct: perCore,
	}
	if len(total) > 0 {
		raw.TotalPct = total[0]
	}

	if physical, err := cpu.CountsWithContext(ctx, false); err == nil {
		raw.PhysicalCores = physical
	}
	if logical, err := cpu.CountsWithContext(ctx, true); err == nil {
		raw.LogicalCores = logical
	}
	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		raw.FrequencyMHz = info[0].Mhz
	}

	return raw, nil
}

func (s *sampler) readMemory(ctx context.Context) (*metrics.RawMemory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	raw := &metrics.RawMemory{
		UsedPct:        vm.UsedPercent,
		UsedBytes:      vm.Used,
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
	}

	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		raw.SwapUsedPct = swap.UsedPercent
		raw.SwapUsedBytes = swap.Used
		raw.SwapTotalBytes = swap.Total
	}

	return raw, nil
}

func (s *sampler) readDisk(ctx context.Context) (*metrics.RawDisk, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	raw := &metrics.RawDisk{}
	for _, part := range partitions {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			// Inaccessible mounts (permissions, stale NFS) are skipped,
			// matching per-partition behavior rather than failing the family.
			continue
		}
		raw.Partitions = append(raw.Partitions, metrics.RawPartition{
			Mount:      part.Mountpoint,
			Device:     part.Device,
			Fstype:     part.Fstype,
			UsedPct:    usage.UsedPercent,
			UsedBytes:  usage.Used,
			FreeBytes:  usage.Free,
			TotalBytes: usage.Total,
		})
	}

	return raw, nil
}

func (s *sampler) readNetwork(ctx context.Context) (*metrics.RawNetwork, error) {
	counters, err := gopsnet.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	countersByName := make(map[string]gopsnet.IOCountersStat, len(counters))
	for _, c := range counters {
		countersByName[c.Name] = c
	}

	ifaces, err := gopsnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	raw := &metrics.RawNetwork{}
	for _, iface := range ifaces {
		entry := metrics.RawInterface{
			Name:      iface.Name,
			MAC:       iface.HardwareAddr,
			SpeedMbps: interfaceSpeedMbps(iface.Name),
			Up:        hasFlag(iface.Flags, "up"),
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil {
				continue
			}
			if v4 := ip.To4(); v4 != nil {
				entry.IPv4 = v4.String()
				break
			}
		}
		if c, ok := countersByName[iface.Name]; ok {
			entry.RxBytes = c.BytesRecv
			entry.TxBytes = c.BytesSent
		}
		raw.Interfaces = append(raw.Interfaces, entry)
	}

	return raw, nil
}

func (s *sampler) readProcesses(ctx context.Context) (*metrics.RawProcesses, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	raw := &metrics.RawProcesses{Total: len(procs)}
	all := make([]metrics.RawProcess, 0, len(procs))
	for _, p := range procs {
		// Processes can exit mid-iteration; skip the ones that do.
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			continue
		}
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		entry := metrics.RawProcess{
			PID:    p.Pid,
			Name:   name,
			CPUPct: cpuPct,
			MemPct: float64(memPct),
		}
		if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
			entry.Status = status[0]
		}
		if user, err := p.UsernameWithContext(ctx); err == nil {
			entry.User = user
		}
		all = append(all, entry)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CPUPct > all[j].CPUPct
	})
	if len(all) > s.cfg.ProcessLimit {
		all = all[:s.cfg.ProcessLimit]
	}
	raw.Processes = all

	return raw, nil
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}

	return false
}
