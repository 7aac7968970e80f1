package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeena-krishna/system-monitor/internal/alerts"
	"github.com/jeena-krishna/system-monitor/internal/collector"
	"github.com/jeena-krishna/system-monitor/internal/config"
	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/jeena-krishna/system-monitor/internal/logger"
	"github.com/jeena-krishna/system-monitor/internal/metrics"
	"github.com/jeena-krishna/system-monitor/internal/monitor"
	"github.com/jeena-krishna/system-monitor/internal/pid"
	"github.com/jeena-krishna/system-monitor/internal/platform"
	"github.com/jeena-krishna/system-monitor/internal/store"
	"github.com/jeena-krishna/system-monitor/internal/web"
)

const hoursPerDay = 24

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Error().Err(err).Msg("Failed to write PID file")
		os.Exit(1)
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	if err := run(); err != nil {
		logger.Error().Err(err).Msg("Daemon exited with error")
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	log := logger.Default()

	st, err := store.New(store.Config{DBPath: cfg.Database}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()

	sampler := platform.New(platform.Config{
		FamilyTimeout: time.Duration(cfg.SampleTimeout) * time.Second,
		ProcessLimit:  cfg.TopProcesses,
	})
	normalizer := collector.NewNormalizer(log, cfg.TopProcesses)

	engine, err := alerts.NewEngine(alertConfig(cfg.Thresholds), st, log)
	if err != nil {
		return err
	}

	svc, err := monitor.NewService(monitor.Config{
		CollectInterval: time.Duration(cfg.Interval) * time.Second,
		PruneInterval:   time.Duration(cfg.PruneInterval) * time.Second,
		Retention:       time.Duration(cfg.RetentionDays) * hoursPerDay * time.Hour,
	}, sampler, normalizer, st, engine, log)
	if err != nil {
		return err
	}
	if err := svc.Init(ctx); err != nil {
		return errors.New().Wrap(errors.ErrInitFailed, err)
	}

	srv := web.NewServer(cfg.ListenAddr, st, engine, svc, log)

	// The HTTP server and the sampling service share the lifecycle: if
	// either stops, the other is torn down through the shared context.
	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Run(ctx)
		cancel()
	}()
	go func() {
		errCh <- svc.Run(ctx)
		cancel()
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	logger.Info().Msg("Exiting...")

	return firstErr
}

func alertConfig(t config.Thresholds) alerts.Config {
	return alerts.Config{
		DebounceSamples: cfg.DebounceSamples,
		Thresholds: map[metrics.Kind]alerts.Threshold{
			metrics.KindCPU: {
				Kind: metrics.KindCPU, Warning: t.CPUWarning, Critical: t.CPUCritical,
				Comparison: alerts.ComparisonExceeds,
			},
			metrics.KindMemory: {
				Kind: metrics.KindMemory, Warning: t.MemoryWarning, Critical: t.MemoryCritical,
				Comparison: alerts.ComparisonExceeds,
			},
			metrics.KindDisk: {
				Kind: metrics.KindDisk, Warning: t.DiskWarning, Critical: t.DiskCritical,
				Comparison: alerts.ComparisonExceeds,
			},
			metrics.KindBattery: {
				Kind: metrics.KindBattery, Warning: t.BatteryWarning, Critical: t.BatteryCritical,
				Comparison: alerts.ComparisonBelow,
			},
		},
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
