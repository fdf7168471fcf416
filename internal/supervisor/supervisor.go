package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Restartable is a subsystem the supervisor can start and stop.
type Restartable interface {
	Start()
	Shutdown()
}

// Factory builds a fresh subsystem instance. It is called once at
// startup and again before every restart; a failed subsystem is never
// reused.
type Factory func() (Restartable, error)

// Callbacks contains optional callback functions for supervisor events.
type Callbacks struct {
	// OnStateChange is called when the supervised state changes.
	OnStateChange func(oldState, newState State)

	// OnRestart is called before a restart attempt.
	OnRestart func(attempt int, delay time.Duration)

	// OnGiveUp is called when the restart budget is exhausted.
	OnGiveUp func(err error)
}

// Config holds supervisor settings.
type Config struct {
	// Name identifies the subsystem in logs.
	Name string

	// MaxRestarts caps restart attempts. Zero means a single failure
	// is terminal.
	MaxRestarts int

	Backoff   BackoffConfig
	Logger    *slog.Logger
	Callbacks Callbacks

	// Seed for backoff jitter; zero means time-based.
	Seed int64
}

// Supervisor owns one restartable subsystem: it builds it, watches for
// reported failures and rebuilds it with backoff until the restart
// budget runs out.
type Supervisor struct {
	cfg     Config
	factory Factory
	backoff *Backoff
	logger  *slog.Logger

	failures chan error

	mu       sync.RWMutex
	state    State
	restarts int
}

// New creates a supervisor. Run starts it.
func New(cfg Config, factory Factory) *Supervisor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Supervisor{
		cfg:      cfg,
		factory:  factory,
		backoff:  NewBackoff(seed, cfg.Backoff),
		logger:   logger,
		failures: make(chan error, 1),
		state:    StateCreated,
	}
}

// ReportFailure tells the supervisor the current subsystem instance has
// died. Safe to call from any goroutine; duplicate reports for the same
// failure collapse into one restart.
func (s *Supervisor) ReportFailure(err error) {
	select {
	case s.failures <- err:
	default:
	}
}

// Run supervises until the context is canceled (returns nil) or the
// restart budget is exhausted (returns the last failure).
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateStarting)
	sub, err := s.factory()
	if err != nil {
		s.setState(StateStopped)
		return err
	}
	sub.Start()
	s.setState(StateRunning)
	startTime := time.Now()

	s.logger.Info("supervisor_started", "name", s.cfg.Name)

	for {
		select {
		case <-ctx.Done():
			sub.Shutdown()
			s.setState(StateStopped)
			s.logger.Info("supervisor_stopped", "name", s.cfg.Name, "restarts", s.Restarts())
			return nil

		case failure := <-s.failures:
			sub.Shutdown()
			uptime := time.Since(startTime)

			if s.Restarts() >= s.cfg.MaxRestarts {
				s.setState(StateStopped)
				s.logger.Error("supervisor_gave_up",
					"name", s.cfg.Name,
					"restarts", s.Restarts(),
					"max_restarts", s.cfg.MaxRestarts,
					"error", failure,
				)
				if s.cfg.Callbacks.OnGiveUp != nil {
					s.cfg.Callbacks.OnGiveUp(failure)
				}
				return failure
			}

			// A long healthy run means this failure is fresh, not part
			// of a crash loop.
			if ShouldReset(uptime) {
				s.backoff.Reset()
			}

			s.incRestarts()
			delay := s.backoff.Next()
			s.setState(StateBackoff)

			s.logger.Warn("supervisor_restarting",
				"name", s.cfg.Name,
				"attempt", s.Restarts(),
				"delay", delay,
				"uptime", uptime,
				"error", failure,
			)
			if s.cfg.Callbacks.OnRestart != nil {
				s.cfg.Callbacks.OnRestart(s.Restarts(), delay)
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				s.setState(StateStopped)
				return nil
			}

			// Failures reported while the old instance was dying belong
			// to it, not to the instance about to start.
			select {
			case <-s.failures:
			default:
			}

			s.setState(StateStarting)
			sub, err = s.factory()
			if err != nil {
				s.setState(StateStopped)
				return err
			}
			sub.Start()
			startTime = time.Now()
			s.setState(StateRunning)
		}
	}
}

// State returns the current supervised state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Restarts returns how many restarts have happened.
func (s *Supervisor) Restarts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restarts
}

func (s *Supervisor) incRestarts() {
	s.mu.Lock()
	s.restarts++
	s.mu.Unlock()
}

func (s *Supervisor) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	if prev != next && s.cfg.Callbacks.OnStateChange != nil {
		s.cfg.Callbacks.OnStateChange(prev, next)
	}
}
