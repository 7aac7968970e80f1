package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	"github.com/jeena-krishna/system-monitor/internal/store"
)

// state is one step of the per-entity finite-state machine.
type state int

const (
	stateNormal state = iota
	stateWarning
	stateCritical
)

func (s state) severity() (metrics.Severity, bool) {
	switch s {
	case stateWarning:
		return metrics.SeverityWarning, true
	case stateCritical:
		return metrics.SeverityCritical, true
	default:
		return "", false
	}
}

func stateFor(severity metrics.Severity) state {
	switch severity {
	case metrics.SeverityWarning:
		return stateWarning
	case metrics.SeverityCritical:
		return stateCritical
	default:
		return stateNormal
	}
}

type TransitionType string

const (
	TransitionCreated   TransitionType = "created"
	TransitionEscalated TransitionType = "escalated"
	TransitionResolved  TransitionType = "resolved"
)

// Transition records one alert lifecycle change produced by a sample.
type Transition struct {
	Type  TransitionType
	Alert metrics.Alert
}

type entityKey struct {
	kind   metrics.Kind
	entity string
}

// entityState tracks the FSM for one (kind, entity) pair. belowStreak
// counts consecutive samples landing below the current state; the state
// only downgrades once the streak fills the debounce window.
type entityState struct {
	state       state
	belowStreak int
	open        *metrics.Alert
}

// Engine evaluates snapshots against the threshold table and owns the
// live set of open alerts. Upgrades are immediate; downgrades wait out
// the debounce window so single noisy samples cannot flap an alert.
type Engine struct {
	cfg  Config
	repo store.AlertRepository
	log  logger.Logger

	mu     sync.Mutex
	states map[entityKey]*entityState
	open   map[string]*metrics.Alert

	now   func() time.Time
	newID func() string
}

func NewEngine(cfg Config, repo store.AlertRepository, log logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		cfg:    cfg,
		repo:   repo,
		log:    log,
		states: make(map[entityKey]*entityState),
		open:   make(map[string]*metrics.Alert),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Restore reloads open alerts persisted by a previous run so acknowledged
// state and severities survive a restart.
func (e *Engine) Restore(ctx context.Context) error {
	errFactory := errors.New()

	alerts, err := e.repo.OpenAlerts(ctx)
	if err != nil {
		return errFactory.Wrap(ErrRestoreFailed, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range alerts {
		alert := alerts[i]
		e.open[alert.ID] = &alert
		e.states[entityKey{alert.Kind, alert.Entity}] = &entityState{
			state: stateFor(alert.Severity),
			open:  &alert,
		}
	}

	if len(alerts) > 0 {
		e.log.Info().Int("count", len(alerts)).Msg("Restored open alerts")
	}

	return nil
}

// Evaluate feeds one snapshot through every entity's state machine and
// returns the resulting transitions. Families marked unavailable are
// skipped entirely: their state freezes and the debounce window makes
// no progress, so missing data can never look like a recovery or a
// threshold crossing.
func (e *Engine) Evaluate(ctx context.Context, snapshot *metrics.Snapshot) ([]Transition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var transitions []Transition
	collect := func(ts []Transition, err error) error {
		transitions = append(transitions, ts...)
		return err
	}

	if snapshot.Available(metrics.FamilyCPU) {
		if err := collect(e.evaluateEntity(ctx, metrics.KindCPU, "", snapshot.CPU.TotalPct, snapshot.Timestamp)); err != nil {
			return transitions, err
		}
	}
	if snapshot.Available(metrics.FamilyMemory) {
		if err := collect(e.evaluateEntity(ctx, metrics.KindMemory, "", snapshot.Memory.UsedPct, snapshot.Timestamp)); err != nil {
			return transitions, err
		}
	}
	if snapshot.Available(metrics.FamilyDisk) {
		for _, d := range snapshot.Disks {
			if err := collect(e.evaluateEntity(ctx, metrics.KindDisk, d.Mount, d.UsedPct, snapshot.Timestamp)); err != nil {
				return transitions, err
			}
		}
	}
	if snapshot.Available(metrics.FamilyBattery) && snapshot.Battery != nil {
		// On AC power a low battery is not a problem; treat the sample
		// as in-range so any open alert can debounce its way closed.
		value := snapshot.Battery.Pct
		if snapshot.Battery.Plugged {
			value = 100
		}
		if err := collect(e.evaluateEntity(ctx, metrics.KindBattery, "", value, snapshot.Timestamp)); err != nil {
			return transitions, err
		}
	}

	return transitions, nil
}

func (e *Engine) evaluateEntity(ctx context.Context, kind metrics.Kind, entity string, value float64, at time.Time) ([]Transition, error) {
	threshold, ok := e.cfg.Thresholds[kind]
	if !ok {
		return nil, nil
	}

	key := entityKey{kind, entity}
	st := e.states[key]
	if st == nil {
		st = &entityState{}
		e.states[key] = st
	}

	severity, crossed, inAlert := threshold.SeverityFor(value)
	target := stateNormal
	if inAlert {
		target = stateFor(severity)
	}

	switch {
	case target > st.state:
		// Upgrade on a single sample. Missing a real problem is worse
		// than one spurious alert.
		return e.upgrade(ctx, st, kind, entity, severity, value, crossed, at)

	case target == st.state:
		st.belowStreak = 0
		return nil, nil

	default:
		st.belowStreak++
		if st.belowStreak < e.cfg.DebounceSamples {
			return nil, nil
		}
		return e.downgrade(ctx, st, kind, entity, target, value, at)
	}
}

func (e *Engine) upgrade(ctx context.Context, st *entityState, kind metrics.Kind, entity string, severity metrics.Severity, value, crossed float64, at time.Time) ([]Transition, error) {
	var transitions []Transition

	transitionType := TransitionCreated
	if st.open != nil {
		// Escalation retires the lower-severity alert and surfaces a
		// fresh, unacknowledged one: acknowledgement is tied to the
		// severity level, not to the metric.
		resolved, err := e.resolveOpen(ctx, st, at)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, Transition{Type: TransitionResolved, Alert: resolved})
		transitionType = TransitionEscalated
	}

	alert := &metrics.Alert{
		ID:          e.newID(),
		Kind:        kind,
		Entity:      entity,
		Severity:    severity,
		Value:       value,
		Threshold:   crossed,
		Message:     alertMessage(kind, entity, severity, value, crossed),
		TriggeredAt: at,
	}
	if err := e.persist(ctx, alert); err != nil {
		return nil, err
	}

	st.state = stateFor(severity)
	st.belowStreak = 0
	st.open = alert
	e.open[alert.ID] = alert

	e.log.Warn().
		Str("kind", string(kind)).
		Str("entity", entity).
		Str("severity", string(severity)).
		Float64("value", value).
		Msg("Alert raised")

	transitions = append(transitions, Transition{Type: transitionType, Alert: *alert})

	return transitions, nil
}

func (e *Engine) downgrade(ctx context.Context, st *entityState, kind metrics.Kind, entity string, target state, value float64, at time.Time) ([]Transition, error) {
	var transitions []Transition

	if st.open != nil {
		resolved, err := e.resolveOpen(ctx, st, at)
		if err != nil {
			return nil, err
		}
		transitions = append(transitions, Transition{Type: TransitionResolved, Alert: resolved})

		e.log.Info().
			Str("kind", string(kind)).
			Str("entity", entity).
			Float64("value", value).
			Msg("Alert resolved")
	}

	st.state = stateNormal
	st.belowStreak = 0

	// Critical can settle in the warning band rather than all the way
	// down; re-enter warning from normal so a warning alert is open.
	if target != stateNormal {
		severity, _ := target.severity()
		threshold := e.cfg.Thresholds[kind]
		crossed := threshold.Warning
		created, err := e.upgrade(ctx, st, kind, entity, severity, value, crossed, at)
		if err != nil {
			return transitions, err
		}
		transitions = append(transitions, created...)
	}

	return transitions, nil
}

func (e *Engine) resolveOpen(ctx context.Context, st *entityState, at time.Time) (metrics.Alert, error) {
	alert := st.open
	resolvedAt := at
	alert.ResolvedAt = &resolvedAt
	if err := e.persist(ctx, alert); err != nil {
		return metrics.Alert{}, err
	}
	delete(e.open, alert.ID)
	st.open = nil

	return *alert, nil
}

func (e *Engine) persist(ctx context.Context, alert *metrics.Alert) error {
	if err := e.repo.SaveAlert(ctx, alert); err != nil {
		return errors.New().Wrap(ErrPersistFailed, err)
	}

	return nil
}

// Acknowledge marks an open alert as seen. Acknowledging an alert that
// is already acknowledged is a no-op success; an unknown or resolved id
// fails with ErrAlertNotFound. Safe to call concurrently with Evaluate.
func (e *Engine) Acknowledge(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.open[id]
	if !ok {
		return errors.New().WithData(ErrAlertNotFound, id)
	}
	if alert.Acknowledged {
		return nil
	}

	now := e.now()
	alert.Acknowledged = true
	alert.AcknowledgedAt = &now

	return e.persist(ctx, alert)
}

// OpenAlerts returns a copy of the live open-alert set, newest first.
func (e *Engine) OpenAlerts() []metrics.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]metrics.Alert, 0, len(e.open))
	for _, alert := range e.open {
		out = append(out, *alert)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})

	return out
}

// History returns all alerts (open and resolved) triggered since the
// given time, newest first.
func (e *Engine) History(ctx context.Context, since time.Time) ([]metrics.Alert, error) {
	return e.repo.AlertsSince(ctx, since)
}

// Thresholds exposes the immutable threshold table for the API layer.
func (e *Engine) Thresholds() map[metrics.Kind]Threshold {
	out := make(map[metrics.Kind]Threshold, len(e.cfg.Thresholds))
	for k, v := range e.cfg.Thresholds {
		out[k] = v
	}

	return out
}
