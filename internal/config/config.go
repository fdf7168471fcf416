// Package config provides configuration management for go-serve-pulse.
package config

import "time"

// Config holds all configuration options for the server and tracker.
type Config struct {
	// Server
	ListenAddr         string        `yaml:"listen_addr"`
	RootDir            string        `yaml:"root_dir"`
	SlowWriteThreshold time.Duration `yaml:"slow_write_threshold"`
	ThrottleBytes      int           `yaml:"throttle_bytes_per_sec"` // 0 = unlimited

	// Tracker
	TickInterval  time.Duration `yaml:"tick_interval"`
	GracePeriod   time.Duration `yaml:"grace_period"`
	TrafficWindow time.Duration `yaml:"traffic_window"`
	QueueSize     int           `yaml:"event_queue_size"`

	// Restart policy for the tracker after a fatal subsystem error.
	MaxRestarts int `yaml:"max_restarts"` // 0 = never restart

	// Observability
	AdminAddr   string `yaml:"admin_addr"` // /metrics, /healthz, /ws
	TUIEnabled  bool   `yaml:"tui"`
	Verbose     bool   `yaml:"verbose"`
	LogFormat   string `yaml:"log_format"` // json, text
	MetricsDump bool   `yaml:"metrics_dump"`

	// Diagnostic modes
	SkipPreflight bool `yaml:"skip_preflight"`

	// ConfigFile is flag-only; it names the YAML file the rest of this
	// struct may have been loaded from.
	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Server
		ListenAddr:         "0.0.0.0:17080",
		RootDir:            ".",
		SlowWriteThreshold: 500 * time.Millisecond,
		ThrottleBytes:      0, // Unlimited

		// Tracker
		TickInterval:  1 * time.Second,
		GracePeriod:   5 * time.Second,
		TrafficWindow: 30 * time.Second,
		QueueSize:     128,
		MaxRestarts:   3,

		// Observability
		AdminAddr:  "0.0.0.0:17091",
		TUIEnabled: true,
		Verbose:    false,
		LogFormat:  "json",
	}
}
