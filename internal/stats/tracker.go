package stats

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/servepulse/go-serve-pulse/internal/timeseries"
)

const (
	// DefaultTickInterval is the aggregation cadence.
	DefaultTickInterval = 1 * time.Second

	// DefaultGracePeriod is how long a disconnected client row is retained
	// so the dashboard can show its final state before the row disappears.
	DefaultGracePeriod = 5 * time.Second

	// DefaultWindow is the traffic history window.
	DefaultWindow = 30 * time.Second

	// DefaultQueueSize is the event channel capacity.
	DefaultQueueSize = 128

	// MinQueueSize is the floor for the event channel capacity. Sustained
	// saturation at this size indicates a stuck consumer, not load.
	MinQueueSize = 64
)

var (
	// ErrQueueFull is reported once to the consumer when the event queue
	// saturates. The tracker stops permanently; restart is the caller's
	// responsibility.
	ErrQueueFull = errors.New("stats: event queue full")
)

// TrafficSample is one tick's aggregate byte total.
type TrafficSample = timeseries.Sample

// Consumer receives the tracker's output. All methods are invoked from the
// tracker's processing goroutine (TrackerFailed may also fire from a
// producer goroutine on queue overflow); implementations must not call back
// into Publish methods synchronously.
type Consumer interface {
	// ClientsUpdated delivers the client list, stable-sorted by remote
	// address. The slice is an independent copy.
	ClientsUpdated(clients []ClientInfo)

	// TrafficUpdated delivers the traffic history, sorted by timestamp,
	// immediately after ClientsUpdated on every tick.
	TrafficUpdated(samples []TrafficSample)

	// TrackerFailed reports a fatal subsystem error, at most once. No
	// snapshots are delivered afterwards.
	TrackerFailed(err error)
}

// Config holds tracker tunables. Zero values select defaults.
type Config struct {
	TickInterval time.Duration
	GracePeriod  time.Duration
	Window       time.Duration
	QueueSize    int

	// Clock for deterministic tests.
	Clock timeseries.Clock

	Logger *slog.Logger
}

// Tracker owns the client table and traffic history. All mutation happens
// on its single processing goroutine; producers only enqueue.
type Tracker struct {
	tickInterval time.Duration
	gracePeriod  time.Duration
	logger       *slog.Logger
	clock        timeseries.Clock

	events   chan event
	consumer Consumer

	// Owned by the processing goroutine. Not protected by any lock.
	clients map[uint64]*client
	history *timeseries.History

	done     chan struct{}
	stopOnce sync.Once
	failOnce sync.Once
	wg       sync.WaitGroup
}

// realClock mirrors timeseries.realClock for the default Config.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// New creates a Tracker publishing to consumer. The tracker is inert until
// Start is called.
func New(cfg Config, consumer Consumer) *Tracker {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.QueueSize < MinQueueSize {
		cfg.QueueSize = MinQueueSize
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Tracker{
		tickInterval: cfg.TickInterval,
		gracePeriod:  cfg.GracePeriod,
		logger:       cfg.Logger,
		clock:        cfg.Clock,
		events:       make(chan event, cfg.QueueSize),
		consumer:     consumer,
		clients:      make(map[uint64]*client),
		history:      timeseries.NewHistoryWithClock(cfg.Window, cfg.Clock),
		done:         make(chan struct{}),
	}
}

// Start launches the processing loop and the tick producer.
func (t *Tracker) Start() {
	t.wg.Add(2)
	go t.runTicker()
	go t.run()
}

// Shutdown stops the ticker and the processing loop. Idempotent. In-flight
// events may be dropped; no snapshots are delivered after it returns.
func (t *Tracker) Shutdown() {
	t.signalStop()
	t.wg.Wait()
}

// signalStop closes done exactly once. Safe from any goroutine, including
// the processing loop itself (unlike Shutdown, it does not wait).
func (t *Tracker) signalStop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

// fail reports a fatal error once and stops processing permanently.
func (t *Tracker) fail(err error) {
	t.failOnce.Do(func() {
		t.logger.Error("tracker_failed", "error", err)
		t.consumer.TrackerFailed(err)
	})
	t.signalStop()
}

// --- Producers ---

// ClientConnected records a new connection. A stale row with the same id
// is overwritten.
func (t *Tracker) ClientConnected(id uint64, remoteAddr string) {
	t.submit(connectedEvent{id: id, remoteAddr: remoteAddr})
}

// ClientDisconnected marks a client disconnected. Unknown ids are ignored;
// a disconnect arriving after eviction is an expected race.
func (t *Tracker) ClientDisconnected(id uint64) {
	t.submit(disconnectedEvent{id: id})
}

// SlowConnection sets the sticky slow flag for a client.
func (t *Tracker) SlowConnection(id uint64) {
	t.submit(slowEvent{id: id})
}

// AddBytes adds n to a client's per-tick byte count. Non-positive counts
// are ignored.
func (t *Tracker) AddBytes(id uint64, n int64) {
	if n <= 0 {
		return
	}
	t.submit(bytesEvent{id: id, count: n})
}

// ClearClients empties the client table. Administrative reset; the traffic
// history is untouched.
func (t *Tracker) ClearClients() {
	t.submit(clearEvent{})
}

// submit enqueues without ever blocking the caller. A full queue is a
// capacity fault: the consumer loop is stuck or producers are misbehaving
// at a rate the design does not anticipate, so it is fatal rather than
// retried.
func (t *Tracker) submit(ev event) {
	select {
	case <-t.done:
		return
	default:
	}

	select {
	case t.events <- ev:
	default:
		t.fail(fmt.Errorf("%w (capacity %d)", ErrQueueFull, cap(t.events)))
	}
}

// --- Processing ---

// run is the single consumer of the event channel.
func (t *Tracker) run() {
	defer t.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			t.fail(fmt.Errorf("stats: processing fault: %v", r))
		}
	}()

	for {
		select {
		case <-t.done:
			return
		case ev := <-t.events:
			t.apply(ev)
		}
	}
}

// runTicker enqueues a tick marker on a fixed cadence. It never touches
// the client table or history directly.
func (t *Tracker) runTicker() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.submit(tickEvent{})
		}
	}
}

// apply mutates tracker state for one event. Only ever called from run.
func (t *Tracker) apply(ev event) {
	switch ev := ev.(type) {
	case connectedEvent:
		t.clients[ev.id] = &client{id: ev.id, remoteAddr: ev.remoteAddr}

	case disconnectedEvent:
		c, ok := t.clients[ev.id]
		if !ok || c.disconnected.IsSet() {
			return
		}
		c.disconnected.Set()
		c.disconnectedAt = t.clock.Now()

	case slowEvent:
		if c, ok := t.clients[ev.id]; ok {
			c.slow.Set()
		}

	case bytesEvent:
		if c, ok := t.clients[ev.id]; ok {
			c.sentBytes += ev.count
		}

	case clearEvent:
		t.clients = make(map[uint64]*client)

	case tickEvent:
		t.aggregate()
	}
}

// aggregate runs the per-tick pass: evict expired rows, roll the byte
// accumulators into the history, publish snapshots.
func (t *Tracker) aggregate() {
	now := t.clock.Now()

	for id, c := range t.clients {
		if c.expired(now, t.gracePeriod) {
			delete(t.clients, id)
		}
	}

	var total int64
	for _, c := range t.clients {
		total += c.sentBytes
		c.sentBytes = 0
	}

	t.history.Record(now, total)

	clients := make([]ClientInfo, 0, len(t.clients))
	for _, c := range t.clients {
		clients = append(clients, ClientInfo{
			ID:           c.id,
			RemoteAddr:   c.remoteAddr,
			Slow:         c.slow.IsSet(),
			Disconnected: c.disconnected.IsSet(),
		})
	}
	// Deterministic row order regardless of connection order. Equal keys
	// keep their relative order.
	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].RemoteAddr < clients[j].RemoteAddr
	})

	samples := t.history.Snapshot()
	// Maintained in order already; re-sorting guards against clock steps.
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	t.consumer.ClientsUpdated(clients)
	t.consumer.TrafficUpdated(samples)
}

// TrafficStats returns derived traffic figures. Safe to call from any
// goroutine; the history guards reads with its own lock.
func (t *Tracker) TrafficStats() timeseries.Stats {
	return t.history.GetStats()
}
