package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != "0.0.0.0:17080" {
		t.Errorf("ListenAddr = %q, want 0.0.0.0:17080", cfg.ListenAddr)
	}
	if cfg.RootDir != "." {
		t.Errorf("RootDir = %q, want .", cfg.RootDir)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.TickInterval)
	}
	if cfg.GracePeriod != 5*time.Second {
		t.Errorf("GracePeriod = %v, want 5s", cfg.GracePeriod)
	}
	if cfg.TrafficWindow != 30*time.Second {
		t.Errorf("TrafficWindow = %v, want 30s", cfg.TrafficWindow)
	}
	if cfg.QueueSize != 128 {
		t.Errorf("QueueSize = %d, want 128", cfg.QueueSize)
	}
	if !cfg.TUIEnabled {
		t.Error("TUIEnabled = false, want true")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string // substring of the error, empty means valid
	}{
		{
			name:   "defaults are valid",
			modify: func(c *Config) {},
		},
		{
			name:    "empty listen addr",
			modify:  func(c *Config) { c.ListenAddr = "" },
			wantErr: "listen_addr",
		},
		{
			name:    "listen addr without port",
			modify:  func(c *Config) { c.ListenAddr = "0.0.0.0" },
			wantErr: "listen_addr",
		},
		{
			name:    "admin addr collides with listen addr",
			modify:  func(c *Config) { c.AdminAddr = c.ListenAddr },
			wantErr: "must differ from listen_addr",
		},
		{
			name:   "admin addr disabled",
			modify: func(c *Config) { c.AdminAddr = "" },
		},
		{
			name:    "empty root dir",
			modify:  func(c *Config) { c.RootDir = "" },
			wantErr: "root_dir",
		},
		{
			name:    "tick interval too small",
			modify:  func(c *Config) { c.TickInterval = 50 * time.Millisecond },
			wantErr: "tick_interval",
		},
		{
			name:    "negative grace period",
			modify:  func(c *Config) { c.GracePeriod = -time.Second },
			wantErr: "grace_period",
		},
		{
			name:   "zero grace period",
			modify: func(c *Config) { c.GracePeriod = 0 },
		},
		{
			name:    "traffic window below one second",
			modify:  func(c *Config) { c.TrafficWindow = 500 * time.Millisecond },
			wantErr: "traffic_window",
		},
		{
			name:    "queue too small",
			modify:  func(c *Config) { c.QueueSize = 32 },
			wantErr: "event_queue_size",
		},
		{
			name:    "negative max restarts",
			modify:  func(c *Config) { c.MaxRestarts = -1 },
			wantErr: "max_restarts",
		},
		{
			name:    "negative throttle",
			modify:  func(c *Config) { c.ThrottleBytes = -100 },
			wantErr: "throttle_bytes_per_sec",
		},
		{
			name:    "zero slow write threshold",
			modify:  func(c *Config) { c.SlowWriteThreshold = 0 },
			wantErr: "slow_write_threshold",
		},
		{
			name:    "unknown log format",
			modify:  func(c *Config) { c.LogFormat = "logfmt" },
			wantErr: "log_format",
		},
		{
			name:   "text log format",
			modify: func(c *Config) { c.LogFormat = "text" },
		},
		{
			name: "multiple errors reported together",
			modify: func(c *Config) {
				c.ListenAddr = ""
				c.QueueSize = 0
			},
			wantErr: "event_queue_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestApplyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulse.yaml")

	yamlContent := `
listen_addr: "127.0.0.1:9000"
grace_period: 10s
event_queue_size: 512
tui: false
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyFile(cfg, path); err != nil {
		t.Fatalf("ApplyFile() error: %v", err)
	}

	// Values from the file
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:9000", cfg.ListenAddr)
	}
	if cfg.GracePeriod != 10*time.Second {
		t.Errorf("GracePeriod = %v, want 10s", cfg.GracePeriod)
	}
	if cfg.QueueSize != 512 {
		t.Errorf("QueueSize = %d, want 512", cfg.QueueSize)
	}
	if cfg.TUIEnabled {
		t.Error("TUIEnabled = true, want false")
	}

	// Defaults survive a partial file
	if cfg.RootDir != "." {
		t.Errorf("RootDir = %q, want default .", cfg.RootDir)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want default 1s", cfg.TickInterval)
	}
}

func TestApplyFile_Missing(t *testing.T) {
	cfg := DefaultConfig()
	if err := ApplyFile(cfg, filepath.Join(t.TempDir(), "no-such.yaml")); err == nil {
		t.Error("ApplyFile() = nil for a missing file, want error")
	}
}

func TestApplyFile_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [not a string"), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg := DefaultConfig()
	if err := ApplyFile(cfg, path); err == nil {
		t.Error("ApplyFile() = nil for malformed YAML, want error")
	}
}

func TestPrescanConfigFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"absent", []string{"-listen", ":8080"}, ""},
		{"separate value", []string{"-config", "pulse.yaml"}, "pulse.yaml"},
		{"equals form", []string{"-config=pulse.yaml"}, "pulse.yaml"},
		{"double dash", []string{"--config", "pulse.yaml"}, "pulse.yaml"},
		{"double dash equals", []string{"--config=pulse.yaml"}, "pulse.yaml"},
		{"mixed with other flags", []string{"-v", "-config", "a.yaml", "-tui=false"}, "a.yaml"},
		{"dangling flag", []string{"-config"}, ""},
		{"empty args", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prescanConfigFlag(tt.args); got != tt.want {
				t.Errorf("prescanConfigFlag(%v) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}
