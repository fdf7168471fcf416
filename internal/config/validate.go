package config

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.ListenAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "listen_addr",
			Message: "listen address is required",
		})
	} else if err := validateAddr(cfg.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Field:   "listen_addr",
			Message: err.Error(),
		})
	}

	if cfg.AdminAddr != "" {
		if err := validateAddr(cfg.AdminAddr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "admin_addr",
				Message: err.Error(),
			})
		}
		if cfg.AdminAddr == cfg.ListenAddr {
			errs = append(errs, ValidationError{
				Field:   "admin_addr",
				Message: "must differ from listen_addr",
			})
		}
	}

	if cfg.RootDir == "" {
		errs = append(errs, ValidationError{
			Field:   "root_dir",
			Message: "root directory is required",
		})
	}

	if cfg.TickInterval < 100*time.Millisecond {
		errs = append(errs, ValidationError{
			Field:   "tick_interval",
			Message: "must be at least 100ms",
		})
	}

	if cfg.GracePeriod < 0 {
		errs = append(errs, ValidationError{
			Field:   "grace_period",
			Message: "must not be negative",
		})
	}

	if cfg.TrafficWindow < time.Second {
		errs = append(errs, ValidationError{
			Field:   "traffic_window",
			Message: "must be at least 1s",
		})
	}

	if cfg.QueueSize < 64 {
		errs = append(errs, ValidationError{
			Field:   "event_queue_size",
			Message: "must be at least 64",
		})
	}

	if cfg.MaxRestarts < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_restarts",
			Message: "must not be negative",
		})
	}

	if cfg.ThrottleBytes < 0 {
		errs = append(errs, ValidationError{
			Field:   "throttle_bytes_per_sec",
			Message: "must not be negative",
		})
	}

	if cfg.SlowWriteThreshold <= 0 {
		errs = append(errs, ValidationError{
			Field:   "slow_write_threshold",
			Message: "must be positive",
		})
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("unknown format %q (want json or text)", cfg.LogFormat),
		})
	}

	return errors.Join(errs...)
}

// validateAddr checks a host:port listen address.
func validateAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if port == "" {
		return fmt.Errorf("address %q has no port", addr)
	}
	return nil
}
