// Package metrics provides Prometheus metrics for go-serve-pulse.
//
// The collector is a stats consumer: every aggregation tick it receives
// the client and traffic snapshots and projects them onto gauges and
// counters. All metrics are aggregate; there are no per-client series,
// so cardinality stays flat no matter how many clients connect.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/servepulse/go-serve-pulse/internal/stats"
	"github.com/servepulse/go-serve-pulse/internal/timeseries"
)

// --- Server overview ---
var (
	pulseInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "serve_pulse_info",
			Help: "Information about the server (value always 1)",
		},
		[]string{"version", "listen_addr", "root"},
	)

	pulseUptimeSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_uptime_seconds",
			Help: "Seconds since the server started",
		},
	)
)

// --- Client population ---
var (
	pulseConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_connected_clients",
			Help: "Clients currently in the tracker, including those in the disconnect grace period",
		},
	)

	pulseSlowClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_slow_clients",
			Help: "Clients flagged as slow (sticky until eviction)",
		},
	)

	pulseDisconnectedInGrace = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_disconnected_in_grace",
			Help: "Disconnected clients still shown during the grace period",
		},
	)

	pulsePeakConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_peak_connected_clients",
			Help: "Highest connected client count observed",
		},
	)
)

// --- Traffic ---
var (
	pulseBytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "serve_pulse_bytes_sent_total",
			Help: "Total bytes written to clients",
		},
	)

	pulseThroughputBytesPerSec = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_throughput_bytes_per_second",
			Help: "Bytes sent during the most recent aggregation tick",
		},
	)

	pulseWindowBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_window_bytes",
			Help: "Bytes sent across the sliding traffic window",
		},
	)

	pulseThroughputP50 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_throughput_p50_bytes_per_second",
			Help: "Median per-tick throughput since start",
		},
	)

	pulseThroughputP95 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_throughput_p95_bytes_per_second",
			Help: "95th percentile per-tick throughput since start",
		},
	)

	pulseThroughputP99 = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_throughput_p99_bytes_per_second",
			Help: "99th percentile per-tick throughput since start",
		},
	)
)

// --- Requests ---
var (
	pulseHTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serve_pulse_http_requests_total",
			Help: "HTTP requests by method and status code",
		},
		[]string{"method", "status"},
	)
)

// --- Tracker health ---
var (
	pulseSnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "serve_pulse_tracker_snapshots_total",
			Help: "Aggregation snapshots published by the tracker",
		},
	)

	pulseTrackerFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "serve_pulse_tracker_failures_total",
			Help: "Fatal tracker errors",
		},
	)

	pulseTrackerRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "serve_pulse_tracker_restarts_total",
			Help: "Tracker restarts after a fatal error",
		},
	)

	pulsePushSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "serve_pulse_push_subscribers",
			Help: "Attached WebSocket feed subscribers",
		},
	)
)

// Collector projects tracker snapshots onto Prometheus metrics.
type Collector struct {
	statsFn   func() timeseries.Stats
	startTime time.Time

	mu          sync.Mutex
	peakClients int
	totalBytes  int64
	failures    int64
	restarts    int64
}

// CollectorConfig holds collector settings.
type CollectorConfig struct {
	Version    string
	ListenAddr string
	RootDir    string

	// StatsFn supplies window statistics (percentiles, peak). Usually
	// Tracker.TrafficStats. Optional.
	StatsFn func() timeseries.Stats
}

// NewCollector creates a collector on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		statsFn:   cfg.StatsFn,
		startTime: time.Now(),
	}

	registry.MustRegister(
		pulseInfo,
		pulseUptimeSeconds,

		pulseConnectedClients,
		pulseSlowClients,
		pulseDisconnectedInGrace,
		pulsePeakConnectedClients,

		pulseBytesSentTotal,
		pulseThroughputBytesPerSec,
		pulseWindowBytes,
		pulseThroughputP50,
		pulseThroughputP95,
		pulseThroughputP99,

		pulseHTTPRequestsTotal,

		pulseSnapshotsTotal,
		pulseTrackerFailuresTotal,
		pulseTrackerRestartsTotal,
		pulsePushSubscribers,
	)

	pulseInfo.WithLabelValues(cfg.Version, cfg.ListenAddr, cfg.RootDir).Set(1)

	return c
}

// ClientsUpdated implements stats.Consumer.
func (c *Collector) ClientsUpdated(clients []stats.ClientInfo) {
	connected := len(clients)
	slow, inGrace := 0, 0
	for _, cl := range clients {
		if cl.Slow {
			slow++
		}
		if cl.Disconnected {
			inGrace++
		}
	}

	pulseConnectedClients.Set(float64(connected))
	pulseSlowClients.Set(float64(slow))
	pulseDisconnectedInGrace.Set(float64(inGrace))

	c.mu.Lock()
	if connected > c.peakClients {
		c.peakClients = connected
	}
	pulsePeakConnectedClients.Set(float64(c.peakClients))
	c.mu.Unlock()
}

// TrafficUpdated implements stats.Consumer. The newest sample holds the
// bytes sent during the tick that just completed, so it is both the
// throughput gauge value and the counter increment.
func (c *Collector) TrafficUpdated(samples []stats.TrafficSample) {
	pulseSnapshotsTotal.Inc()
	pulseUptimeSeconds.Set(time.Since(c.startTime).Seconds())

	if len(samples) == 0 {
		return
	}

	newest := samples[len(samples)-1]
	pulseThroughputBytesPerSec.Set(float64(newest.Bytes))
	if newest.Bytes > 0 {
		pulseBytesSentTotal.Add(float64(newest.Bytes))
	}

	var windowBytes int64
	for _, s := range samples {
		windowBytes += s.Bytes
	}
	pulseWindowBytes.Set(float64(windowBytes))

	c.mu.Lock()
	c.totalBytes += newest.Bytes
	c.mu.Unlock()

	if c.statsFn != nil {
		ws := c.statsFn()
		pulseThroughputP50.Set(ws.P50)
		pulseThroughputP95.Set(ws.P95)
		pulseThroughputP99.Set(ws.P99)
	}
}

// TrackerFailed implements stats.Consumer.
func (c *Collector) TrackerFailed(err error) {
	pulseTrackerFailuresTotal.Inc()

	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
}

// TrackerRestarted records a tracker restart.
func (c *Collector) TrackerRestarted() {
	pulseTrackerRestartsTotal.Inc()

	c.mu.Lock()
	c.restarts++
	c.mu.Unlock()
}

// ObserveRequest records one completed HTTP request.
func (c *Collector) ObserveRequest(method, path string, status int) {
	// Path is deliberately not a label; it is unbounded.
	pulseHTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// SetPushSubscribers updates the WebSocket subscriber gauge.
func (c *Collector) SetPushSubscribers(n int) {
	pulsePushSubscribers.Set(float64(n))
}

// Summary holds the data for the exit summary.
type Summary struct {
	Duration        time.Duration
	PeakClients     int
	TotalBytes      int64
	TrackerFailures int64
	TrackerRestarts int64
}

// GenerateSummary reports the run so far.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Summary{
		Duration:        time.Since(c.startTime),
		PeakClients:     c.peakClients,
		TotalBytes:      c.totalBytes,
		TrackerFailures: c.failures,
		TrackerRestarts: c.restarts,
	}
}
