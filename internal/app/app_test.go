package app

import (
	"sync"
	"testing"
	"time"

	"github.com/servepulse/go-serve-pulse/internal/config"
	"github.com/servepulse/go-serve-pulse/internal/logging"
	"github.com/servepulse/go-serve-pulse/internal/stats"
)

// snapshotRecorder collects tracker snapshots for assertions.
type snapshotRecorder struct {
	mu      sync.Mutex
	clients [][]stats.ClientInfo
	fatal   error
}

func (r *snapshotRecorder) ClientsUpdated(clients []stats.ClientInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, clients)
}

func (r *snapshotRecorder) TrafficUpdated(samples []stats.TrafficSample) {}

func (r *snapshotRecorder) TrackerFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = err
}

func (r *snapshotRecorder) lastClients() []stats.ClientInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) == 0 {
		return nil
	}
	return r.clients[len(r.clients)-1]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// =============================================================================
// Tracker handle tests
// =============================================================================

func TestTrackerHandle_NilSafe(t *testing.T) {
	h := &trackerHandle{}

	// No tracker installed yet; every producer call must be a no-op.
	h.ClientConnected(1, "10.0.0.1:1234")
	h.ClientDisconnected(1)
	h.SlowConnection(1)
	h.AddBytes(1, 100)
	h.ClearClients()

	if got := h.TrafficStats(); got.WindowBytes != 0 {
		t.Errorf("expected zero stats without a tracker, got %+v", got)
	}
}

func TestTrackerHandle_ForwardsToCurrentInstance(t *testing.T) {
	rec := &snapshotRecorder{}
	trackerCfg := stats.Config{
		TickInterval: 10 * time.Millisecond,
		Window:       time.Hour,
	}

	first := stats.New(trackerCfg, rec)
	h := &trackerHandle{}
	h.set(first)

	first.Start()

	h.ClientConnected(1, "10.0.0.1:1111")
	waitFor(t, func() bool {
		clients := rec.lastClients()
		return len(clients) == 1 && clients[0].ID == 1
	})

	// Swap in a fresh instance; producers must reach it, not the old one.
	first.Shutdown()
	second := stats.New(trackerCfg, rec)
	h.set(second)
	second.Start()
	defer second.Shutdown()

	h.ClientConnected(2, "10.0.0.2:2222")
	waitFor(t, func() bool {
		clients := rec.lastClients()
		return len(clients) == 1 && clients[0].ID == 2
	})
}

// =============================================================================
// Wiring tests
// =============================================================================

// TestNew_Wiring builds the app once. The metrics collector registers
// against the default Prometheus registry, so only one New call may
// happen per test binary.
func TestNew_Wiring(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RootDir = t.TempDir()
	logger := logging.NewLogger("json", "error", false)

	a := New(cfg, logger, "test")

	if a.fileServer == nil {
		t.Error("expected file server")
	}
	if a.adminServer == nil {
		t.Error("expected admin server for default admin addr")
	}
	if a.hub == nil || a.collector == nil || a.sup == nil {
		t.Error("expected hub, collector and supervisor")
	}
	if got := a.handle.TrafficStats(); got.WindowBytes != 0 {
		t.Errorf("expected zero stats before start, got %+v", got)
	}
}

// =============================================================================
// Formatting tests
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00:00"},
		{90 * time.Second, "00:01:30"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "02:03:04"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
