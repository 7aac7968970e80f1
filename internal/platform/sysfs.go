package platform

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeena-krishna/system-monitor/internal/metrics"
)

// gopsutil exposes no battery or link-speed API, so both come straight
// from sysfs. On hosts without these files every reader degrades to
// "not present" rather than an error.
const (
	powerSupplyPath = "/sys/class/power_supply"
	netSysfsPath    = "/sys/class/net"
)

type batteryReader struct {
	root string
}

func newBatteryReader() *batteryReader {
	return &batteryReader{root: powerSupplyPath}
}

// read returns nil with no error on hosts without a battery. Only an
// unreadable battery counts as a family failure.
func (b *batteryReader) read() (*metrics.RawBattery, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		supply := filepath.Join(b.root, entry.Name())
		kind, err := readSysfsString(filepath.Join(supply, "type"))
		if err != nil || kind != "Battery" {
			continue
		}

		capacity, err := readSysfsInt(filepath.Join(supply, "capacity"))
		if err != nil {
			return nil, err
		}

		status, _ := readSysfsString(filepath.Join(supply, "status"))

		return &metrics.RawBattery{
			Pct:              float64(capacity),
			Plugged:          status != "Discharging",
			TimeRemainingMin: batteryTimeRemaining(supply, status),
		}, nil
	}

	return nil, nil
}

// batteryTimeRemaining estimates minutes until empty from the energy
// counters, or -1 when the kernel does not expose them.
func batteryTimeRemaining(supply, status string) int {
	if status != "Discharging" {
		return -1
	}

	energy, err := readSysfsInt(filepath.Join(supply, "energy_now"))
	if err != nil || energy <= 0 {
		return -1
	}
	power, err := readSysfsInt(filepath.Join(supply, "power_now"))
	if err != nil || power <= 0 {
		return -1
	}

	return int(float64(energy) / float64(power) * 60)
}

// interfaceSpeedMbps reads the negotiated link speed, 0 when unknown
// (virtual interfaces, wifi on some drivers).
func interfaceSpeedMbps(name string) int {
	speed, err := readSysfsInt(filepath.Join(netSysfsPath, name, "speed"))
	if err != nil || speed < 0 {
		return 0
	}

	return speed
}

func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

func readSysfsInt(path string) (int, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(s)
}
