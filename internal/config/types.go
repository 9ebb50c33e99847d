package config

import (
	"fmt"
	"time"
)

const (
	DefaultChildCount = 3
	DefaultSleepBase  = 2 * time.Second
	DefaultSleepStep  = time.Second
	DefaultExitBase   = 10
	DefaultTick       = time.Second
	DefaultSignal     = "SIGCHLD"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "auto"

	maxChildCount = 64
	maxExitCode   = 255
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// NewDuration returns an explicitly set duration.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d, explicit: true}
}

// Config mirrors the sigreap.yaml document structure.
type Config struct {
	Scenario Scenario    `yaml:"scenario"`
	Reaper   ReaperSpec  `yaml:"reaper"`
	Logging  LoggingSpec `yaml:"logging"`
	Metrics  MetricsSpec `yaml:"metrics"`
}

// Scenario describes the children spawned by a run. Child i sleeps for
// SleepBase + i*SleepStep and exits with ExitBase + i.
type Scenario struct {
	ChildCount *int     `yaml:"child_count"`
	SleepBase  Duration `yaml:"sleep_base"`
	SleepStep  Duration `yaml:"sleep_step"`
	ExitBase   *int     `yaml:"exit_base"`
	Tick       Duration `yaml:"tick"`
	// Duration bounds the parent work loop. Zero runs until interrupted.
	Duration Duration `yaml:"duration"`
}

// ReaperSpec configures the child-state-change notification.
type ReaperSpec struct {
	Signal string `yaml:"signal"`
}

// LoggingSpec configures diagnostic logging on stderr.
type LoggingSpec struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsSpec configures the optional status and metrics listener.
type MetricsSpec struct {
	Addr string `yaml:"addr"`
}

// Children returns the configured child count.
func (s Scenario) Children() int {
	if s.ChildCount == nil {
		return DefaultChildCount
	}
	return *s.ChildCount
}

// Sleep returns the simulated work duration for child i.
func (s Scenario) Sleep(i int) time.Duration {
	return s.SleepBase.Duration + time.Duration(i)*s.SleepStep.Duration
}

// ExitCode returns the deliberate exit status for child i.
func (s Scenario) ExitCode(i int) int {
	base := DefaultExitBase
	if s.ExitBase != nil {
		base = *s.ExitBase
	}
	return base + i
}

// Default returns a configuration populated with the demonstration values.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with the demonstration values.
func (c *Config) ApplyDefaults() {
	if c.Scenario.ChildCount == nil {
		n := DefaultChildCount
		c.Scenario.ChildCount = &n
	}
	if !c.Scenario.SleepBase.IsSet() {
		c.Scenario.SleepBase = NewDuration(DefaultSleepBase)
	}
	if !c.Scenario.SleepStep.IsSet() {
		c.Scenario.SleepStep = NewDuration(DefaultSleepStep)
	}
	if c.Scenario.ExitBase == nil {
		base := DefaultExitBase
		c.Scenario.ExitBase = &base
	}
	if !c.Scenario.Tick.IsSet() {
		c.Scenario.Tick = NewDuration(DefaultTick)
	}
	if c.Reaper.Signal == "" {
		c.Reaper.Signal = DefaultSignal
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}
