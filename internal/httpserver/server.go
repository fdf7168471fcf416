// Package httpserver serves a directory over HTTP and reports
// per-connection activity (connects, disconnects, bytes sent, slow
// writes) to a stats reporter.
package httpserver

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Reporter receives connection lifecycle and traffic events.
// *stats.Tracker satisfies this interface.
type Reporter interface {
	ClientConnected(id uint64, remoteAddr string)
	ClientDisconnected(id uint64)
	SlowConnection(id uint64)
	AddBytes(id uint64, n int64)
}

// Config holds file server settings.
type Config struct {
	Addr    string
	RootDir string

	// SlowWriteThreshold flags a client as slow when a single response
	// write takes longer than this.
	SlowWriteThreshold time.Duration

	// ThrottleBytes caps each connection at this many bytes/sec.
	// Zero means unlimited.
	ThrottleBytes int

	Logger *slog.Logger

	// OnRequest, if set, is called once per completed request.
	OnRequest func(method, path string, status int)
}

// connTrack carries per-connection state from ConnContext into request
// handling. The limiter persists across keep-alive requests so the
// throttle applies to the connection, not individual requests.
type connTrack struct {
	id      uint64
	limiter *rate.Limiter
}

type connKeyType struct{}

var connKey connKeyType

// Server is an HTTP file server whose connections are tracked.
type Server struct {
	cfg      Config
	reporter Reporter
	logger   *slog.Logger
	server   *http.Server
	files    http.Handler

	nextID uint64
	conns  sync.Map // net.Conn -> *connTrack
}

// NewServer creates a file server rooted at cfg.RootDir.
func NewServer(cfg Config, reporter Reporter) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		reporter: reporter,
		logger:   logger,
		files:    http.FileServer(http.Dir(cfg.RootDir)),
	}

	s.server = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: large file downloads to throttled or slow
		// clients can legitimately take minutes.
		IdleTimeout: 60 * time.Second,
		ConnContext: s.connContext,
		ConnState:   s.connState,
	}

	return s
}

// connContext runs once per accepted connection.
func (s *Server) connContext(ctx context.Context, c net.Conn) context.Context {
	ct := &connTrack{id: atomic.AddUint64(&s.nextID, 1)}
	if s.cfg.ThrottleBytes > 0 {
		ct.limiter = rate.NewLimiter(rate.Limit(s.cfg.ThrottleBytes), s.cfg.ThrottleBytes)
	}

	s.conns.Store(c, ct)
	s.reporter.ClientConnected(ct.id, c.RemoteAddr().String())

	return context.WithValue(ctx, connKey, ct)
}

// connState observes connection lifecycle transitions.
func (s *Server) connState(c net.Conn, state http.ConnState) {
	switch state {
	case http.StateClosed, http.StateHijacked:
		if v, ok := s.conns.LoadAndDelete(c); ok {
			s.reporter.ClientDisconnected(v.(*connTrack).id)
		}
	}
}

// ServeHTTP handles a file request through the counting writer.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	cw := &countingWriter{
		ResponseWriter: w,
		reporter:       s.reporter,
		slowThreshold:  s.cfg.SlowWriteThreshold,
		ctx:            r.Context(),
	}
	if ct, ok := r.Context().Value(connKey).(*connTrack); ok {
		cw.id = ct.id
		cw.tracked = true
		if ct.limiter != nil {
			cw.limiter = ct.limiter
		}
	}

	s.files.ServeHTTP(cw, r)

	status := cw.status
	if status == 0 {
		status = http.StatusOK
	}

	s.logger.Debug("http_request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"bytes", cw.written,
		"duration_ms", time.Since(start).Milliseconds(),
		"remote_addr", r.RemoteAddr,
	)

	if s.cfg.OnRequest != nil {
		s.cfg.OnRequest(r.Method, r.URL.Path, status)
	}
}

// Start begins serving in a goroutine. The returned channel receives
// the terminal serve error, if any.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	s.logger.Info("file_server_starting",
		"addr", s.cfg.Addr,
		"root", s.cfg.RootDir,
		"throttle_bytes_per_sec", s.cfg.ThrottleBytes,
	)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("file_server_shutting_down")
	return s.server.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}
