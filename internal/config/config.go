package config

import (
	"os"

	"github.com/jeena-krishna/system-monitor/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval        = 5    // seconds between collection ticks
	defaultPruneInterval   = 3600 // seconds between retention sweeps
	defaultRetentionDays   = 30
	defaultDebounceSamples = 3
	defaultTopProcesses    = 10
	defaultSampleTimeout   = 3 // seconds per metric family
	defaultDatabase        = "/var/lib/sysmond/sysmond.db"
	defaultListenAddr      = ":8070"

	maxPct = 100
)

// Thresholds holds the per-kind warning/critical levels. CPU, memory and
// disk alert when the value exceeds the level; battery alerts when the
// value drops below it.
type Thresholds struct {
	CPUWarning      float64 `mapstructure:"cpu_warning"`
	CPUCritical     float64 `mapstructure:"cpu_critical"`
	MemoryWarning   float64 `mapstructure:"memory_warning"`
	MemoryCritical  float64 `mapstructure:"memory_critical"`
	DiskWarning     float64 `mapstructure:"disk_warning"`
	DiskCritical    float64 `mapstructure:"disk_critical"`
	BatteryWarning  float64 `mapstructure:"battery_warning"`
	BatteryCritical float64 `mapstructure:"battery_critical"`
}

type Config struct {
	Interval        int        `mapstructure:"interval"`
	PruneInterval   int        `mapstructure:"prune_interval"`
	RetentionDays   int        `mapstructure:"retention_days"`
	DebounceSamples int        `mapstructure:"debounce_samples"`
	TopProcesses    int        `mapstructure:"top_processes"`
	SampleTimeout   int        `mapstructure:"sample_timeout"`
	Database        string     `mapstructure:"database"`
	ListenAddr      string     `mapstructure:"listen_addr"`
	LogLevel        string     `mapstructure:"log_level"`
	Thresholds      Thresholds `mapstructure:"thresholds"`
}

// Load reads configuration from flags, the environment and an optional
// TOML config file, in that order of precedence. Values are immutable
// after loading; validation failures are fatal to startup.
func Load() (*Config, error) {
	errFactory := errors.New()
	v := viper.New()

	setDefaults(v)

	fs := pflag.NewFlagSet("sysmond", pflag.ContinueOnError)
	fs.String("config", "", "Path to config file")
	fs.Int("interval", defaultInterval, "Seconds between collection ticks")
	fs.String("database", defaultDatabase, "Path to the metrics database")
	fs.String("listen-addr", defaultListenAddr, "HTTP listen address")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlag("interval", fs.Lookup("interval")); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlag("database", fs.Lookup("database")); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlag("listen_addr", fs.Lookup("listen-addr")); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindPFlag("log_level", fs.Lookup("log-level")); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetEnvPrefix("SYSMOND")
	v.AutomaticEnv()

	configPath, _ := fs.GetString("config")
	if configPath == "" {
		configPath = os.Getenv("SYSMOND_CONFIG")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err).
				WithMessage("Failed to read config file")
		}
	} else {
		v.SetConfigName("sysmond")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/sysmond")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err).
					WithMessage("Failed to read config file")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("prune_interval", defaultPruneInterval)
	v.SetDefault("retention_days", defaultRetentionDays)
	v.SetDefault("debounce_samples", defaultDebounceSamples)
	v.SetDefault("top_processes", defaultTopProcesses)
	v.SetDefault("sample_timeout", defaultSampleTimeout)
	v.SetDefault("database", defaultDatabase)
	v.SetDefault("listen_addr", defaultListenAddr)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("thresholds.cpu_warning", 70)
	v.SetDefault("thresholds.cpu_critical", 85)
	v.SetDefault("thresholds.memory_warning", 75)
	v.SetDefault("thresholds.memory_critical", 90)
	v.SetDefault("thresholds.disk_warning", 80)
	v.SetDefault("thresholds.disk_critical", 95)
	v.SetDefault("thresholds.battery_warning", 20)
	v.SetDefault("thresholds.battery_critical", 10)
}

// Validate checks the loaded configuration. Any failure here means the
// process must not start serving.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.PruneInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.PruneInterval)
	}
	if c.RetentionDays <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "retention_days must be positive")
	}
	if c.DebounceSamples < 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "debounce_samples must be at least 1")
	}
	if c.TopProcesses < 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "top_processes must be at least 1")
	}
	if c.SampleTimeout <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.SampleTimeout)
	}
	if c.Database == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "database path must not be empty")
	}
	if !validLogLevel(c.LogLevel) {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return c.Thresholds.Validate()
}

func (t *Thresholds) Validate() error {
	errFactory := errors.New()

	exceeds := []struct {
		name     string
		warning  float64
		critical float64
	}{
		{"cpu", t.CPUWarning, t.CPUCritical},
		{"memory", t.MemoryWarning, t.MemoryCritical},
		{"disk", t.DiskWarning, t.DiskCritical},
	}
	for _, th := range exceeds {
		if th.warning < 0 || th.critical > maxPct || th.warning >= th.critical {
			return errFactory.WithMessage(errors.ErrInvalidConfig,
				th.name+" thresholds must satisfy 0 <= warning < critical <= 100")
		}
	}

	// Battery compares downward: critical sits below warning.
	if t.BatteryCritical < 0 || t.BatteryWarning > maxPct || t.BatteryCritical >= t.BatteryWarning {
		return errFactory.WithMessage(errors.ErrInvalidConfig,
			"battery thresholds must satisfy 0 <= critical < warning <= 100")
	}

	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
