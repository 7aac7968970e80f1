package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/alerts"
	"github.com/jeena-krishna/system-monitor/internal/collector"
	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	"github.com/jeena-krishna/system-monitor/internal/platform"
	"github.com/jeena-krishna/system-monitor/internal/store"
)

type Config struct {
	CollectInterval time.Duration
	PruneInterval   time.Duration
	Retention       time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.CollectInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.CollectInterval.String())
	}
	if c.PruneInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PruneInterval.String())
	}
	if c.Retention <= 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "retention must be positive")
	}

	return nil
}

// Service owns the collect-store-evaluate pipeline. It is the single
// writer: only its collection cycle inserts snapshots and drives the
// alert engine, so readers never race a write.
type Service struct {
	cfg        Config
	sampler    platform.Sampler
	normalizer *collector.Normalizer
	store      store.Store
	engine     *alerts.Engine
	log        logger.Logger
	clock      Clock

	host metrics.HostInfo

	subMu sync.Mutex
	subs  map[chan metrics.Snapshot]struct{}
}

func NewService(
	cfg Config,
	sampler platform.Sampler,
	normalizer *collector.Normalizer,
	st store.Store,
	engine *alerts.Engine,
	log logger.Logger,
) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		sampler:    sampler,
		normalizer: normalizer,
		store:      st,
		engine:     engine,
		log:        log,
		clock:      NewClock(),
		subs:       make(map[chan metrics.Snapshot]struct{}),
	}, nil
}

// Init restores alert state from the store and caches host facts.
// Must be called before Run.
func (s *Service) Init(ctx context.Context) error {
	if err := s.engine.Restore(ctx); err != nil {
		return err
	}

	host, err := s.sampler.HostInfo(ctx)
	if err != nil {
		// Host facts are cosmetic; sampling can proceed without them.
		s.log.Warn().Err(err).Msg("Failed to read host info")
	} else {
		s.host = host
	}

	return nil
}

// Run drives the two cadences until ctx is cancelled: the collection
// tick and, independently, the retention sweep, so a slow prune never
// delays collection. The loop is synchronous per cadence; when a cycle
// overruns its interval the ticker drops the missed tick rather than
// queueing it, trading completeness of the series for freshness.
// An in-flight cycle always finishes before Run returns.
func (s *Service) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pruneLoop(ctx)
	}()

	collectTicker := s.clock.NewTicker(s.cfg.CollectInterval)
	defer collectTicker.Stop()

	s.log.Info().
		Dur("interval", s.cfg.CollectInterval).
		Dur("prune_interval", s.cfg.PruneInterval).
		Msg("Monitoring started")

	s.collectOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.closeSubscribers()
			s.log.Info().Msg("Monitoring stopped")
			return nil
		case <-collectTicker.C():
			s.collectOnce(ctx)
		}
	}
}

func (s *Service) pruneLoop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.pruneOnce(ctx)
		}
	}
}

// collectOnce runs one Sample -> Normalize -> Insert -> Evaluate cycle.
// Family failures are logged and retried implicitly by the next tick;
// a store invariant violation aborts only this tick's write.
func (s *Service) collectOnce(ctx context.Context) {
	reading := s.sampler.Sample(ctx)

	for family, err := range reading.Errors {
		s.log.Warn().
			Str("family", string(family)).
			Err(err).
			Msg("Metric family failed to collect")
	}
	if len(reading.Errors) == len(metrics.Families()) {
		s.log.Error().Msg(errors.GetErrorMessage(ErrCollectAll))
		return
	}

	snapshot := s.normalizer.Normalize(reading)

	// Safe abort boundary on shutdown: nothing has been written yet.
	if ctx.Err() != nil {
		return
	}

	if err := s.store.Insert(context.WithoutCancel(ctx), &snapshot); err != nil {
		if errors.HasCode(err, errors.ErrOutOfOrder) {
			s.log.Error().Err(err).Msg("Out-of-order snapshot, skipping tick")
		} else {
			s.log.Error().Err(err).Msg("Failed to store snapshot")
		}
		return
	}

	transitions, err := s.engine.Evaluate(context.WithoutCancel(ctx), &snapshot)
	if err != nil {
		s.log.Error().Err(err).Msg("Alert evaluation failed")
	}
	for _, t := range transitions {
		s.log.Debug().
			Str("transition", string(t.Type)).
			Str("alert_id", t.Alert.ID).
			Str("severity", string(t.Alert.Severity)).
			Msg("Alert transition")
	}

	s.publish(snapshot)
}

func (s *Service) pruneOnce(ctx context.Context) {
	horizon := s.clock.Now().Add(-s.cfg.Retention)
	if _, err := s.store.Prune(context.WithoutCancel(ctx), horizon); err != nil {
		s.log.Error().Err(err).Msg("Retention prune failed")
	}
}

// HostInfo returns the host facts cached at Init.
func (s *Service) HostInfo() metrics.HostInfo {
	return s.host
}

// Subscribe registers a listener for new snapshots. Slow listeners are
// skipped, not waited on. The returned cancel func must be called to
// release the subscription.
func (s *Service) Subscribe() (<-chan metrics.Snapshot, func()) {
	ch := make(chan metrics.Snapshot, 4)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}

	return ch, cancel
}

func (s *Service) publish(snapshot metrics.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (s *Service) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}
