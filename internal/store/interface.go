package store

import (
	"context"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/metrics"
)

// Store is the append-only time-series home for snapshots and the
// persistence layer for alert records. The scheduler is the single
// snapshot writer; the HTTP layer reads concurrently.
type Store interface {
	// Insert appends a snapshot. Timestamps must be strictly increasing;
	// an out-of-order insert fails with errors.ErrOutOfOrder and writes
	// nothing.
	Insert(ctx context.Context, snapshot *metrics.Snapshot) error

	// QueryRange returns snapshots with from <= timestamp < to in
	// ascending order. An empty or inverted range yields an empty
	// slice, never an error.
	QueryRange(ctx context.Context, from, to time.Time) ([]metrics.Snapshot, error)

	// Latest returns the most recent snapshot, or nil when none stored.
	Latest(ctx context.Context) (*metrics.Snapshot, error)

	// Prune deletes snapshots with timestamp < olderThan and returns
	// how many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// AggregateRange buckets [from,to) into bucket-sized intervals
	// aligned to from and returns avg/min/max of the scalar numeric
	// fields per non-empty bucket, ascending.
	AggregateRange(ctx context.Context, from, to time.Time, bucket time.Duration) ([]AggregateBucket, error)

	AlertRepository

	Close() error
}

// AlertRepository persists alert records. Only the alert engine writes.
type AlertRepository interface {
	SaveAlert(ctx context.Context, alert *metrics.Alert) error
	GetAlert(ctx context.Context, id string) (*metrics.Alert, error)
	OpenAlerts(ctx context.Context) ([]metrics.Alert, error)
	AlertsSince(ctx context.Context, since time.Time) ([]metrics.Alert, error)
}

type AggregateStat struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type AggregateBucket struct {
	BucketStart     time.Time     `json:"bucket_start"`
	Count           int           `json:"count"`
	CPUTotalPct     AggregateStat `json:"cpu_total_pct"`
	MemoryUsedPct   AggregateStat `json:"memory_used_pct"`
	MemoryUsedBytes AggregateStat `json:"memory_used_bytes"`
}
