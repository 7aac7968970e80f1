package alerts

import (
	"fmt"

	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
)

// Comparison is the direction a metric crosses its threshold. CPU,
// memory and disk alert when the value exceeds the level; battery
// alerts when it drops below.
type Comparison string

const (
	ComparisonExceeds Comparison = "exceeds"
	ComparisonBelow   Comparison = "below"
)

// Threshold holds the warning and critical levels for one metric kind.
// Immutable after load.
type Threshold struct {
	Kind       metrics.Kind
	Warning    float64
	Critical   float64
	Comparison Comparison
}

// SeverityFor maps a value to the severity it lands in, with the level
// it crossed. ok is false when the value is in the normal band.
func (t Threshold) SeverityFor(value float64) (severity metrics.Severity, crossed float64, ok bool) {
	switch t.Comparison {
	case ComparisonExceeds:
		if value >= t.Critical {
			return metrics.SeverityCritical, t.Critical, true
		}
		if value >= t.Warning {
			return metrics.SeverityWarning, t.Warning, true
		}
	case ComparisonBelow:
		if value <= t.Critical {
			return metrics.SeverityCritical, t.Critical, true
		}
		if value <= t.Warning {
			return metrics.SeverityWarning, t.Warning, true
		}
	}

	return "", 0, false
}

// DefaultThresholds returns the built-in threshold table.
func DefaultThresholds() map[metrics.Kind]Threshold {
	return map[metrics.Kind]Threshold{
		metrics.KindCPU:     {Kind: metrics.KindCPU, Warning: 70, Critical: 85, Comparison: ComparisonExceeds},
		metrics.KindMemory:  {Kind: metrics.KindMemory, Warning: 75, Critical: 90, Comparison: ComparisonExceeds},
		metrics.KindDisk:    {Kind: metrics.KindDisk, Warning: 80, Critical: 95, Comparison: ComparisonExceeds},
		metrics.KindBattery: {Kind: metrics.KindBattery, Warning: 20, Critical: 10, Comparison: ComparisonBelow},
	}
}

type Config struct {
	Thresholds      map[metrics.Kind]Threshold
	DebounceSamples int
}

func DefaultConfig() Config {
	return Config{
		Thresholds:      DefaultThresholds(),
		DebounceSamples: 3,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DebounceSamples < 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "debounce must be at least 1 sample")
	}
	for kind, t := range c.Thresholds {
		switch t.Comparison {
		case ComparisonExceeds:
			if t.Warning >= t.Critical {
				return errFactory.WithMessage(errors.ErrInvalidConfig,
					string(kind)+" warning level must be below critical")
			}
		case ComparisonBelow:
			if t.Warning <= t.Critical {
				return errFactory.WithMessage(errors.ErrInvalidConfig,
					string(kind)+" warning level must be above critical")
			}
		default:
			return errFactory.WithData(errors.ErrInvalidConfig, string(t.Comparison))
		}
	}

	return nil
}

var kindNames = map[metrics.Kind]string{
	metrics.KindCPU:     "CPU usage",
	metrics.KindMemory:  "Memory usage",
	metrics.KindDisk:    "Disk usage",
	metrics.KindBattery: "Battery level",
}

func alertMessage(kind metrics.Kind, entity string, severity metrics.Severity, value, threshold float64) string {
	name := kindNames[kind]
	if name == "" {
		name = string(kind)
	}
	if entity != "" {
		name = fmt.Sprintf("%s on %s", name, entity)
	}

	direction := "high"
	if kind == metrics.KindBattery {
		direction = "low"
	}

	return fmt.Sprintf("%s: %s is %s at %.1f%% (threshold: %g%%)",
		severity, name, direction, value, threshold)
}
