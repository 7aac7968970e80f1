package alerts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/alerts"
	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory store.AlertRepository.
type fakeRepo struct {
	mu     sync.Mutex
	alerts map[string]metrics.Alert
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{alerts: make(map[string]metrics.Alert)}
}

func (r *fakeRepo) SaveAlert(_ context.Context, alert *metrics.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[alert.ID] = *alert

	return nil
}

func (r *fakeRepo) GetAlert(_ context.Context, id string) (*metrics.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, errors.New().WithData(errors.ErrAlertNotFound, id)
	}

	return &alert, nil
}

func (r *fakeRepo) OpenAlerts(_ context.Context) ([]metrics.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []metrics.Alert{}
	for _, alert := range r.alerts {
		if alert.ResolvedAt == nil {
			out = append(out, alert)
		}
	}

	return out, nil
}

func (r *fakeRepo) AlertsSince(_ context.Context, since time.Time) ([]metrics.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []metrics.Alert{}
	for _, alert := range r.alerts {
		if !alert.TriggeredAt.Before(since) {
			out = append(out, alert)
		}
	}

	return out, nil
}

func newTestEngine(t *testing.T) (*alerts.Engine, *fakeRepo) {
	t.Helper()

	repo := newFakeRepo()
	engine, err := alerts.NewEngine(alerts.DefaultConfig(), repo, logger.Default())
	require.NoError(t, err)

	return engine, repo
}

// cpuSnapshot keeps every other entity in its normal band so only the
// CPU state machine moves.
func cpuSnapshot(ts time.Time, cpuPct float64) *metrics.Snapshot {
	return &metrics.Snapshot{
		Timestamp: ts,
		CPU:       metrics.CPUMetrics{TotalPct: cpuPct},
		Memory:    metrics.MemoryMetrics{UsedPct: 40},
	}
}

func feedCPU(t *testing.T, engine *alerts.Engine, base time.Time, values ...float64) [][]alerts.Transition {
	t.Helper()

	out := make([][]alerts.Transition, 0, len(values))
	for i, v := range values {
		ts := base.Add(time.Duration(i) * 5 * time.Second)
		transitions, err := engine.Evaluate(context.Background(), cpuSnapshot(ts, v))
		require.NoError(t, err)
		out = append(out, transitions)
	}

	return out
}

func TestWarningEscalationAndDebouncedRecovery(t *testing.T) {
	engine, _ := newTestEngine(t)
	base := time.Now()

	steps := feedCPU(t, engine, base, 60, 72, 90, 65, 65, 65)

	// In the normal band nothing happens.
	assert.Empty(t, steps[0])

	// First crossing raises a warning immediately.
	require.Len(t, steps[1], 1)
	assert.Equal(t, alerts.TransitionCreated, steps[1][0].Type)
	assert.Equal(t, metrics.SeverityWarning, steps[1][0].Alert.Severity)
	assert.InDelta(t, 72.0, steps[1][0].Alert.Value, 0.001)
	assert.InDelta(t, 70.0, steps[1][0].Alert.Threshold, 0.001)

	// Crossing critical retires the warning and raises a fresh critical.
	require.Len(t, steps[2], 2)
	assert.Equal(t, alerts.TransitionResolved, steps[2][0].Type)
	assert.Equal(t, metrics.SeverityWarning, steps[2][0].Alert.Severity)
	assert.Equal(t, alerts.TransitionEscalated, steps[2][1].Type)
	assert.Equal(t, metrics.SeverityCritical, steps[2][1].Alert.Severity)
	assert.NotEqual(t, steps[1][0].Alert.ID, steps[2][1].Alert.ID, "Escalation creates a new alert")

	// Two in-range samples are not enough to resolve.
	assert.Empty(t, steps[3])
	assert.Empty(t, steps[4])
	assert.Len(t, engine.OpenAlerts(), 1)

	// The third consecutive sample closes the window.
	require.Len(t, steps[5], 1)
	assert.Equal(t, alerts.TransitionResolved, steps[5][0].Type)
	assert.Equal(t, steps[2][1].Alert.ID, steps[5][0].Alert.ID)
	assert.Empty(t, engine.OpenAlerts())
}

func TestSpikeBelowResetsDebounce(t *testing.T) {
	engine, _ := newTestEngine(t)
	base := time.Now()

	// Two recovering samples, a relapse, then two more: never three in a
	// row, so the warning stays open.
	steps := feedCPU(t, engine, base, 72, 65, 65, 75, 65, 65)
	require.Len(t, steps[0], 1)
	for _, step := range steps[1:] {
		assert.Empty(t, step)
	}
	assert.Len(t, engine.OpenAlerts(), 1)

	// One more in-range sample completes a fresh window.
	final := feedCPU(t, engine, base.Add(time.Minute), 65)
	require.Len(t, final[0], 1)
	assert.Equal(t, alerts.TransitionResolved, final[0][0].Type)
}

func TestCriticalSettlesIntoWarning(t *testing.T) {
	engine, _ := newTestEngine(t)
	base := time.Now()

	steps := feedCPU(t, engine, base, 90, 75, 75, 75)

	// Settling in the warning band swaps the critical for a new warning.
	require.Len(t, steps[3], 2)
	assert.Equal(t, alerts.TransitionResolved, steps[3][0].Type)
	assert.Equal(t, metrics.SeverityCritical, steps[3][0].Alert.Severity)
	assert.Equal(t, alerts.TransitionCreated, steps[3][1].Type)
	assert.Equal(t, metrics.SeverityWarning, steps[3][1].Alert.Severity)

	open := engine.OpenAlerts()
	require.Len(t, open, 1)
	assert.Equal(t, metrics.SeverityWarning, open[0].Severity)
}

func TestAcknowledge(t *testing.T) {
	engine, _ := newTestEngine(t)
	base := time.Now()

	steps := feedCPU(t, engine, base, 72)
	id := steps[0][0].Alert.ID
	ctx := context.Background()

	require.NoError(t, engine.Acknowledge(ctx, id))

	open := engine.OpenAlerts()
	require.Len(t, open, 1)
	assert.True(t, open[0].Acknowledged)
	assert.NotNil(t, open[0].AcknowledgedAt)

	// Acknowledging twice is a silent success.
	require.NoError(t, engine.Acknowledge(ctx, id))

	// Unknown ids fail.
	err := engine.Acknowledge(ctx, "no-such-alert")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlertNotFound))

	// Resolving the alert makes its id unknown too.
	feedCPU(t, engine, base.Add(time.Minute), 60, 60, 60)
	err = engine.Acknowledge(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlertNotFound))
}

func TestEscalationDropsAcknowledgement(t *testing.T) {
	engine, _ := newTestEngine(t)
	base := time.Now()

	steps := feedCPU(t, engine, base, 72)
	require.NoError(t, engine.Acknowledge(context.Background(), steps[0][0].Alert.ID))

	// The escalated alert demands fresh attention.
	feedCPU(t, engine, base.Add(time.Minute), 90)
	open := engine.OpenAlerts()
	require.Len(t, open, 1)
	assert.Equal(t, metrics.SeverityCritical, open[0].Severity)
	assert.False(t, open[0].Acknowledged)
}

func TestDiskMountsAlertIndependently(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	snapshot := &metrics.Snapshot{
		Timestamp: time.Now(),
		CPU:       metrics.CPUMetrics{TotalPct: 10},
		Memory:    metrics.MemoryMetrics{UsedPct: 40},
		Disks: []metrics.DiskMetrics{
			{Mount: "/", UsedPct: 50},
			{Mount: "/home", UsedPct: 85},
		},
	}
	transitions, err := engine.Evaluate(ctx, snapshot)
	require.NoError(t, err)

	require.Len(t, transitions, 1)
	assert.Equal(t, metrics.KindDisk, transitions[0].Alert.Kind)
	assert.Equal(t, "/home", transitions[0].Alert.Entity)
	assert.Equal(t, metrics.SeverityWarning, transitions[0].Alert.Severity)
	assert.Contains(t, transitions[0].Alert.Message, "/home")
}

func TestUnavailableFamilyFreezesState(t *testing.T) {
	engine, _ := newTestEngine(t)
	base := time.Now()

	feedCPU(t, engine, base, 72)
	require.Len(t, engine.OpenAlerts(), 1)

	// Failed CPU samples leave the zero value in the snapshot; the entity
	// must neither resolve nor progress its debounce window.
	for i := 0; i < 5; i++ {
		snapshot := cpuSnapshot(base.Add(time.Duration(i+1)*5*time.Second), 0)
		snapshot.Unavailable = []metrics.Family{metrics.FamilyCPU}
		transitions, err := engine.Evaluate(context.Background(), snapshot)
		require.NoError(t, err)
		assert.Empty(t, transitions)
	}
	assert.Len(t, engine.OpenAlerts(), 1)

	// Recovery still takes a full window once data returns.
	steps := feedCPU(t, engine, base.Add(time.Hour), 60, 60)
	assert.Empty(t, steps[0])
	assert.Empty(t, steps[1])
	final := feedCPU(t, engine, base.Add(2*time.Hour), 60)
	require.Len(t, final[0], 1)
	assert.Equal(t, alerts.TransitionResolved, final[0][0].Type)
}

func TestBatteryAlertsOnlyWhenDischarging(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	base := time.Now()

	batterySnapshot := func(ts time.Time, pct float64, plugged bool) *metrics.Snapshot {
		s := cpuSnapshot(ts, 10)
		s.Battery = &metrics.BatteryMetrics{Pct: pct, Plugged: plugged}
		return s
	}

	// Low but on AC power: no alert.
	transitions, err := engine.Evaluate(ctx, batterySnapshot(base, 5, true))
	require.NoError(t, err)
	assert.Empty(t, transitions)

	// Unplugged at the same level: straight to critical.
	transitions, err = engine.Evaluate(ctx, batterySnapshot(base.Add(5*time.Second), 5, false))
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, metrics.KindBattery, transitions[0].Alert.Kind)
	assert.Equal(t, metrics.SeverityCritical, transitions[0].Alert.Severity)
	assert.Contains(t, transitions[0].Alert.Message, "low")

	// Plugging back in counts as recovery, debounced like any other.
	for i := 0; i < 3; i++ {
		transitions, err = engine.Evaluate(ctx, batterySnapshot(base.Add(time.Duration(i+2)*5*time.Second), 5, true))
		require.NoError(t, err)
	}
	require.Len(t, transitions, 1)
	assert.Equal(t, alerts.TransitionResolved, transitions[0].Type)
}

func TestRestoreReloadsOpenAlerts(t *testing.T) {
	repo := newFakeRepo()
	triggered := time.Now().Add(-time.Hour)
	require.NoError(t, repo.SaveAlert(context.Background(), &metrics.Alert{
		ID:           "restored",
		Kind:         metrics.KindCPU,
		Severity:     metrics.SeverityWarning,
		Value:        78,
		Threshold:    70,
		TriggeredAt:  triggered,
		Acknowledged: true,
	}))

	engine, err := alerts.NewEngine(alerts.DefaultConfig(), repo, logger.Default())
	require.NoError(t, err)
	require.NoError(t, engine.Restore(context.Background()))

	open := engine.OpenAlerts()
	require.Len(t, open, 1)
	assert.Equal(t, "restored", open[0].ID)
	assert.True(t, open[0].Acknowledged)

	// The restored state machine resolves like a live one.
	steps := feedCPU(t, engine, time.Now(), 60, 60, 60)
	require.Len(t, steps[2], 1)
	assert.Equal(t, alerts.TransitionResolved, steps[2][0].Type)
	assert.Equal(t, "restored", steps[2][0].Alert.ID)
}

func TestInvalidEngineConfig(t *testing.T) {
	cfg := alerts.DefaultConfig()
	cfg.DebounceSamples = 0

	_, err := alerts.NewEngine(cfg, newFakeRepo(), logger.Default())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}
