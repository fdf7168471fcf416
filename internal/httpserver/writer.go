package httpserver

import (
	"context"
	"net/http"
	"time"
)

// countingWriter wraps a ResponseWriter to report bytes written and
// flag slow writes. A write that blocks longer than slowThreshold
// means the client is not draining its socket fast enough.
type countingWriter struct {
	http.ResponseWriter

	reporter      Reporter
	slowThreshold time.Duration
	ctx           context.Context

	id      uint64
	tracked bool
	limiter rateLimiter

	status  int
	written int64
}

// rateLimiter is the subset of *rate.Limiter the writer needs; keeping
// it as an interface lets tests substitute a fake.
type rateLimiter interface {
	WaitN(ctx context.Context, n int) error
	Burst() int
}

func (cw *countingWriter) WriteHeader(status int) {
	cw.status = status
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.status == 0 {
		cw.status = http.StatusOK
	}

	if cw.limiter == nil {
		return cw.countedWrite(p)
	}

	// Chunk to the limiter burst so WaitN never exceeds it.
	burst := cw.limiter.Burst()
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := cw.limiter.WaitN(cw.ctx, len(chunk)); err != nil {
			return total, err
		}
		n, err := cw.countedWrite(chunk)
		total += n
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

// countedWrite performs the underlying write, reports the byte count
// and checks the slow threshold.
func (cw *countingWriter) countedWrite(p []byte) (int, error) {
	start := time.Now()
	n, err := cw.ResponseWriter.Write(p)
	elapsed := time.Since(start)

	cw.written += int64(n)
	if cw.tracked && n > 0 {
		cw.reporter.AddBytes(cw.id, int64(n))
	}
	if cw.tracked && cw.slowThreshold > 0 && elapsed > cw.slowThreshold {
		cw.reporter.SlowConnection(cw.id)
	}

	return n, err
}
