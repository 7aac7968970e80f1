package platform

import (
	"context"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/metrics"
)

// Sampler reads raw per-family metric values from the host for one
// instant. Implementations must keep family reads independent: a failure
// in one family is recorded on the reading and never aborts the others.
type Sampler interface {
	Sample(ctx context.Context) *metrics.RawReading
	HostInfo(ctx context.Context) (metrics.HostInfo, error)
}

type Config struct {
	// FamilyTimeout bounds each family's read. A read exceeding it is
	// treated as a failed family for that tick, not a hang.
	FamilyTimeout time.Duration

	// ProcessLimit caps how many processes are reported, ordered by CPU.
	ProcessLimit int
}

func DefaultConfig() Config {
	return Config{
		FamilyTimeout: 3 * time.Second,
		ProcessLimit:  10,
	}
}
