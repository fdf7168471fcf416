package stats

import "time"

// latch is a one-way boolean: once set it never clears. Making the
// monotonic transitions (slow, disconnected) explicit keeps the "never
// reverts" invariant out of reach of accidental assignment.
type latch struct {
	set bool
}

// Set trips the latch. Further calls have no effect.
func (l *latch) Set() {
	l.set = true
}

// IsSet reports whether the latch has tripped.
func (l *latch) IsSet() bool {
	return l.set
}

// client is one row of the tracker's table. Owned exclusively by the
// tracker goroutine; never escapes the package.
type client struct {
	id         uint64
	remoteAddr string

	slow         latch
	disconnected latch

	// sentBytes accumulates bytes since the last tick and is reset to zero
	// on every tick; it is a per-tick delta, not a cumulative total.
	sentBytes int64

	// disconnectedAt is only meaningful once the disconnected latch is set.
	// It anchors the grace-period eviction deadline.
	disconnectedAt time.Time
}

// expired reports whether the grace period has fully elapsed at now.
// A client disconnected at exactly now-grace is kept for one more tick.
func (c *client) expired(now time.Time, grace time.Duration) bool {
	return c.disconnected.IsSet() && now.Sub(c.disconnectedAt) > grace
}

// ClientInfo is one row of the published client snapshot.
type ClientInfo struct {
	ID           uint64 `json:"id"`
	RemoteAddr   string `json:"remote_addr"`
	Slow         bool   `json:"slow"`
	Disconnected bool   `json:"disconnected"`
}
