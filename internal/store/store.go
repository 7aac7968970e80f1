package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	_ "github.com/mattn/go-sqlite3"
)

const defaultDirPerm = 0o755

type Config struct {
	DBPath string
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New().New(ErrInvalidDBPath)
	}
	return nil
}

type sqliteStore struct {
	db     *sql.DB
	logger logger.Logger

	// mu serializes writers; lastTS enforces strictly increasing
	// timestamps without a round-trip per insert.
	mu     sync.Mutex
	lastTS int64

	latestMu sync.RWMutex
	latest   *metrics.Snapshot
}

// New opens (or creates) the store at cfg.DBPath.
func New(cfg Config, log logger.Logger) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	// WAL keeps concurrent readers off the writer's back.
	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	if err := InitSchema(db, log); err != nil {
		db.Close()
		return nil, err
	}

	s := &sqliteStore{
		db:     db,
		logger: log,
	}
	if err := s.restoreState(); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Msg("Store initialized")

	return s, nil
}

// restoreState reloads the monotonic-timestamp guard and the latest
// snapshot cache after a restart.
func (s *sqliteStore) restoreState() error {
	errFactory := errors.New()

	var last sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(timestamp) FROM snapshots`).Scan(&last); err != nil {
		return errFactory.Wrap(ErrStorageInit, err)
	}
	if !last.Valid {
		return nil
	}
	s.lastTS = last.Int64

	row := s.db.QueryRow(
		`SELECT `+selectSnapshotColumns+` FROM snapshots WHERE timestamp = ?`, last.Int64)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		return err
	}
	s.latest = snapshot

	return nil
}

func (s *sqliteStore) Insert(ctx context.Context, snapshot *metrics.Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.New(errors.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ts := snapshot.Timestamp.UnixNano()
	if ts <= s.lastTS {
		return errFactory.WithData(ErrOutOfOrder, struct {
			Timestamp int64
			Last      int64
		}{
			Timestamp: ts,
			Last:      s.lastTS,
		})
	}

	cols, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, insertSnapshotSQL,
		ts,
		snapshot.CPU.TotalPct,
		snapshot.Memory.UsedPct,
		int64(snapshot.Memory.UsedBytes),
		int64(snapshot.Memory.TotalBytes),
		cols.cpu, cols.mem, cols.disks, cols.battery,
		cols.network, cols.processes, cols.unavailable,
	); err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	s.lastTS = ts

	s.latestMu.Lock()
	copied := *snapshot
	s.latest = &copied
	s.latestMu.Unlock()

	return nil
}

func (s *sqliteStore) QueryRange(ctx context.Context, from, to time.Time) ([]metrics.Snapshot, error) {
	errFactory := errors.New()

	if !from.Before(to) {
		return []metrics.Snapshot{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectSnapshotColumns+`
         FROM snapshots
         WHERE timestamp >= ? AND timestamp < ?
         ORDER BY timestamp ASC`,
		from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	out := []metrics.Snapshot{}
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return out, nil
}

func (s *sqliteStore) Latest(_ context.Context) (*metrics.Snapshot, error) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()

	if s.latest == nil {
		return nil, nil
	}
	copied := *s.latest

	return &copied, nil
}

func (s *sqliteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	errFactory := errors.New()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE timestamp < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, errFactory.Wrap(ErrStorageAccess, err)
	}

	if removed > 0 {
		s.logger.Info().
			Int64("removed", removed).
			Time("older_than", olderThan).
			Msg("Pruned snapshots past retention horizon")
	}

	return removed, nil
}

func (s *sqliteStore) AggregateRange(ctx context.Context, from, to time.Time, bucket time.Duration) ([]AggregateBucket, error) {
	errFactory := errors.New()

	if bucket <= 0 {
		return nil, errFactory.WithData(ErrInvalidRange, bucket.String())
	}
	if !from.Before(to) {
		return []AggregateBucket{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, cpu_total_pct, mem_used_pct, mem_used_bytes
         FROM snapshots
         WHERE timestamp >= ? AND timestamp < ?
         ORDER BY timestamp ASC`,
		from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	// Buckets are aligned to `from`, not to the epoch, so the same query
	// always yields the same bucket boundaries.
	out := []AggregateBucket{}
	var current *bucketAccumulator
	for rows.Next() {
		var (
			ts       int64
			cpuPct   float64
			memPct   float64
			memBytes int64
		)
		if err := rows.Scan(&ts, &cpuPct, &memPct, &memBytes); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}

		idx := time.Duration(ts-from.UnixNano()) / bucket
		start := from.Add(idx * bucket)
		if current == nil || !current.start.Equal(start) {
			if current != nil {
				out = append(out, current.finish())
			}
			current = &bucketAccumulator{start: start}
		}
		current.add(cpuPct, memPct, float64(memBytes))
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	if current != nil {
		out = append(out, current.finish())
	}

	return out, nil
}

func (s *sqliteStore) Close() error {
	errFactory := errors.New()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to checkpoint WAL on close")
	}

	if err := s.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	s.logger.Info().Msg("Store closed")

	return nil
}

type bucketAccumulator struct {
	start    time.Time
	count    int
	cpu      statAccumulator
	memPct   statAccumulator
	memBytes statAccumulator
}

func (b *bucketAccumulator) add(cpuPct, memPct, memBytes float64) {
	b.count++
	b.cpu.add(cpuPct)
	b.memPct.add(memPct)
	b.memBytes.add(memBytes)
}

func (b *bucketAccumulator) finish() AggregateBucket {
	return AggregateBucket{
		BucketStart:     b.start,
		Count:           b.count,
		CPUTotalPct:     b.cpu.finish(b.count),
		MemoryUsedPct:   b.memPct.finish(b.count),
		MemoryUsedBytes: b.memBytes.finish(b.count),
	}
}

type statAccumulator struct {
	sum  float64
	min  float64
	max  float64
	seen bool
}

func (a *statAccumulator) add(v float64) {
	a.sum += v
	if !a.seen || v < a.min {
		a.min = v
	}
	if !a.seen || v > a.max {
		a.max = v
	}
	a.seen = true
}

func (a *statAccumulator) finish(count int) AggregateStat {
	if count == 0 {
		return AggregateStat{}
	}

	return AggregateStat{
		Avg: a.sum / float64(count),
		Min: a.min,
		Max: a.max,
	}
}

type snapshotColumns struct {
	cpu         string
	mem         string
	disks       string
	battery     sql.NullString
	network     string
	processes   string
	unavailable string
}

func encodeSnapshot(snapshot *metrics.Snapshot) (*snapshotColumns, error) {
	errFactory := errors.New()

	marshal := func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", errFactory.Wrap(ErrEncodeFailed, err)
		}
		return string(data), nil
	}

	cols := &snapshotColumns{}
	var err error
	if cols.cpu, err = marshal(snapshot.CPU); err != nil {
		return nil, err
	}
	if cols.mem, err = marshal(snapshot.Memory); err != nil {
		return nil, err
	}
	if cols.disks, err = marshal(snapshot.Disks); err != nil {
		return nil, err
	}
	if snapshot.Battery != nil {
		battery, err := marshal(snapshot.Battery)
		if err != nil {
			return nil, err
		}
		cols.battery = sql.NullString{String: battery, Valid: true}
	}
	if cols.network, err = marshal(snapshot.Network); err != nil {
		return nil, err
	}
	if cols.processes, err = marshal(snapshot.Processes); err != nil {
		return nil, err
	}
	if cols.unavailable, err = marshal(snapshot.Unavailable); err != nil {
		return nil, err
	}

	return cols, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*metrics.Snapshot, error) {
	errFactory := errors.New()

	var (
		ts   int64
		cols snapshotColumns
	)
	if err := row.Scan(&ts, &cols.cpu, &cols.mem, &cols.disks, &cols.battery,
		&cols.network, &cols.processes, &cols.unavailable); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	snapshot := &metrics.Snapshot{
		Timestamp: time.Unix(0, ts),
	}

	unmarshal := func(data string, v any) error {
		if err := json.Unmarshal([]byte(data), v); err != nil {
			return errFactory.Wrap(ErrDecodeFailed, err)
		}
		return nil
	}

	if err := unmarshal(cols.cpu, &snapshot.CPU); err != nil {
		return nil, err
	}
	if err := unmarshal(cols.mem, &snapshot.Memory); err != nil {
		return nil, err
	}
	if err := unmarshal(cols.disks, &snapshot.Disks); err != nil {
		return nil, err
	}
	if cols.battery.Valid {
		snapshot.Battery = &metrics.BatteryMetrics{}
		if err := unmarshal(cols.battery.String, snapshot.Battery); err != nil {
			return nil, err
		}
	}
	if err := unmarshal(cols.network, &snapshot.Network); err != nil {
		return nil, err
	}
	if err := unmarshal(cols.processes, &snapshot.Processes); err != nil {
		return nil, err
	}
	if err := unmarshal(cols.unavailable, &snapshot.Unavailable); err != nil {
		return nil, err
	}

	return snapshot, nil
}
