package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	s := c.Scenario
	n := s.Children()
	if n < 1 || n > maxChildCount {
		errs = append(errs, fmt.Errorf("scenario.child_count: must be between 1 and %d, got %d", maxChildCount, n))
	}
	if s.SleepBase.Duration < 0 {
		errs = append(errs, fmt.Errorf("scenario.sleep_base: must not be negative"))
	}
	if s.SleepStep.Duration < 0 {
		errs = append(errs, fmt.Errorf("scenario.sleep_step: must not be negative"))
	}
	if s.Tick.Duration <= 0 {
		errs = append(errs, fmt.Errorf("scenario.tick: must be positive"))
	}
	if s.Duration.Duration < 0 {
		errs = append(errs, fmt.Errorf("scenario.duration: must not be negative"))
	}
	if first := s.ExitCode(0); first < 0 {
		errs = append(errs, fmt.Errorf("scenario.exit_base: must not be negative, got %d", first))
	} else if n >= 1 && s.ExitCode(n-1) > maxExitCode {
		errs = append(errs, fmt.Errorf("scenario.exit_base: exit code %d for child %d exceeds %d", s.ExitCode(n-1), n-1, maxExitCode))
	}

	if strings.TrimSpace(c.Reaper.Signal) == "" {
		errs = append(errs, fmt.Errorf("reaper.signal: must not be empty"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "auto", "text", "json", "journal":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
