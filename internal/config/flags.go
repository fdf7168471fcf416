package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ParseFlags parses command-line flags and returns a Config.
//
// Resolution order: built-in defaults, then the YAML file named by -config
// (if any), then flags. A flag given on the command line always wins over
// the file.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()

	// The config file has to be loaded before flag registration so that
	// flag defaults reflect file values and explicit flags override them.
	configFile := prescanConfigFlag(os.Args[1:])
	if configFile != "" {
		if err := ApplyFile(cfg, configFile); err != nil {
			return nil, err
		}
		cfg.ConfigFile = configFile
	}

	// Custom usage message
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-serve-pulse - embedded HTTP file server with a live client dashboard

Usage:
  go-serve-pulse [flags]

Server Flags:
`)
		printFlagCategory([]string{"listen", "root", "slow-write", "throttle"})

		fmt.Fprintf(os.Stderr, "\nTracker:\n")
		printFlagCategory([]string{"tick", "grace", "window", "queue", "max-restarts"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"admin", "tui", "v", "log-format", "metrics-dump"})

		fmt.Fprintf(os.Stderr, "\nDiagnostics:\n")
		printFlagCategory([]string{"config", "skip-preflight"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Serve the current directory with the dashboard
  go-serve-pulse -root /srv/files

  # Headless with JSON logs, throttled to 1 MB/s per connection
  go-serve-pulse -root /srv/files -tui=false -throttle 1000000

  # Load a config file, overriding its listen address
  go-serve-pulse -config pulse.yaml -listen 0.0.0.0:8080

`)
	}

	// Server flags
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP file server listen address")
	flag.StringVar(&cfg.RootDir, "root", cfg.RootDir, "Directory to serve")
	flag.DurationVar(&cfg.SlowWriteThreshold, "slow-write", cfg.SlowWriteThreshold, "Response write slower than this flags the client as slow")
	flag.IntVar(&cfg.ThrottleBytes, "throttle", cfg.ThrottleBytes, "Per-connection bandwidth limit in bytes/sec (0 = unlimited)")

	// Tracker flags
	flag.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "Aggregation tick interval")
	flag.DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "Retention after disconnect before a client row is evicted")
	flag.DurationVar(&cfg.TrafficWindow, "window", cfg.TrafficWindow, "Traffic history window for the dashboard graph")
	flag.IntVar(&cfg.QueueSize, "queue", cfg.QueueSize, "Event queue capacity (minimum 64)")
	flag.IntVar(&cfg.MaxRestarts, "max-restarts", cfg.MaxRestarts, "Tracker restarts after a fatal error (0 = never)")

	// Observability
	flag.StringVar(&cfg.AdminAddr, "admin", cfg.AdminAddr, "Admin address for /metrics, /healthz and /ws")
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard (use -tui=false to disable)")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	flag.BoolVar(&cfg.MetricsDump, "metrics-dump", cfg.MetricsDump, "Print the metric registry in Prometheus text format on exit")

	// Diagnostics
	flag.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "YAML config file (flags override it)")
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	flag.Parse()

	return cfg, nil
}

// prescanConfigFlag finds the -config value without running the full flag
// parser, which cannot be invoked twice.
func prescanConfigFlag(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if name == "config" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if v, ok := strings.CutPrefix(name, "config="); ok {
			return v
		}
	}
	return ""
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s\n    \t%s", f.Name, f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}
