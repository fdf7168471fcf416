// Package stats tracks the live population of clients connected to the
// embedded HTTP server and the server's aggregate traffic over a sliding
// window.
//
// All mutable state (client table, traffic ring) is owned by a single
// Tracker goroutine. Producers hand lifecycle and byte-count events through
// a bounded channel; the tracker applies them one at a time and publishes
// sorted snapshots to its consumer once per tick. This single-writer design
// is why the client table needs no locks.
package stats

// event is the single mutation channel's vocabulary. Exactly one concrete
// type per mutation; applied strictly in arrival order.
type event interface {
	isEvent()
}

// connectedEvent inserts a new client row with zeroed counters.
// A stale row with the same id is overwritten.
type connectedEvent struct {
	id         uint64
	remoteAddr string
}

// disconnectedEvent marks a client disconnected and stamps the time.
// No-op if the id is unknown.
type disconnectedEvent struct {
	id uint64
}

// slowEvent sets the sticky slow-connection flag. No-op if unknown.
type slowEvent struct {
	id uint64
}

// bytesEvent adds to a client's per-tick byte accumulator. No-op if unknown.
type bytesEvent struct {
	id    uint64
	count int64
}

// clearEvent empties the client table. Traffic history is untouched.
type clearEvent struct{}

// tickEvent runs the aggregation pass. Only the tracker's own ticker
// goroutine produces it.
type tickEvent struct{}

func (connectedEvent) isEvent()    {}
func (disconnectedEvent) isEvent() {}
func (slowEvent) isEvent()         {}
func (bytesEvent) isEvent()        {}
func (clearEvent) isEvent()        {}
func (tickEvent) isEvent()         {}
