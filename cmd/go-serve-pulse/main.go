// Package main provides the go-serve-pulse CLI entry point.
//
// go-serve-pulse is an embedded HTTP file server with a live terminal
// dashboard of connected clients and sliding-window traffic statistics.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/servepulse/go-serve-pulse/internal/app"
	"github.com/servepulse/go-serve-pulse/internal/config"
	"github.com/servepulse/go-serve-pulse/internal/logging"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/go-serve-pulse
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("go-serve-pulse %s\n", version)
			return 0
		}
	}

	// Parse command-line flags
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// Initialize logger
	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, "json", "info")
	} else {
		logger = logging.NewLogger(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Log startup
	logger.Info("starting",
		"version", version,
		"listen_addr", cfg.ListenAddr,
		"root_dir", cfg.RootDir,
		"admin_addr", cfg.AdminAddr,
		"traffic_window", cfg.TrafficWindow.String(),
	)

	// Print startup banner (the dashboard takes over the terminal, so
	// only show it in headless mode)
	if !cfg.TUIEnabled {
		printBanner(cfg)
	}

	// Create and run the app
	a := app.New(cfg, logger, version)
	if err := a.Run(context.Background()); err != nil {
		logger.Error("app_failed", "error", err)
		return 1
	}

	return 0
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                          go-serve-pulse                           ║")
	fmt.Println("║        HTTP File Serving with Live Client Statistics              ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Serving:     %s\n", cfg.RootDir)
	fmt.Printf("  Listen:      http://%s\n", cfg.ListenAddr)
	if cfg.AdminAddr != "" {
		fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.AdminAddr)
		fmt.Printf("  Live feed:   ws://%s/ws\n", cfg.AdminAddr)
	}
	if cfg.ThrottleBytes > 0 {
		fmt.Printf("  Throttle:    %d bytes/sec per connection\n", cfg.ThrottleBytes)
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop.")
	fmt.Println()
}
