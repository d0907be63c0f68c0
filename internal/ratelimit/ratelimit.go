// Package ratelimit provides a token bucket used to throttle the lab
// client's uploads and downloads.
package ratelimit

import (
	"context"
	"io"
	"sync"
	"time"
)

// Limiter is a token bucket measured in bytes.
//
// The bucket starts empty and holds at most a quarter second of traffic, so a
// transfer settles on the configured rate almost immediately. Requests larger
// than the bucket are admitted by borrowing against future tokens; the caller
// then waits until the debt is paid back.
type Limiter struct {
	rate   float64 // bytes per second
	burst  float64
	tokens float64
	last   time.Time
	mu     sync.Mutex
}

// New returns a limiter for bytesPerSecond, or nil (no limit) when the rate
// is not positive. A nil *Limiter is valid and never blocks.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	rate := float64(bytesPerSecond)
	return &Limiter{
		rate:  rate,
		burst: max(rate/4, 1),
		last:  time.Now(),
	}
}

// Rate returns the configured bytes per second, 0 for a nil limiter.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return int64(l.rate)
}

// reserve takes n tokens and returns how long the caller must wait before
// using them.
func (l *Limiter) reserve(n int) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	l.last = now

	l.tokens -= float64(n)
	if l.tokens >= 0 {
		return 0
	}
	return time.Duration(-l.tokens / l.rate * float64(time.Second))
}

// Wait blocks until n bytes may pass or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	d := l.reserve(n)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

const (
	readChunk  = 8 * 1024
	writeChunk = 32 * 1024
)

type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *Limiter
}

// NewReader throttles reads from r. It returns r itself when limiter is nil.
func NewReader(ctx context.Context, r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{ctx: ctx, r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) > readChunk {
		p = p[:readChunk]
	}
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.limiter.Wait(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *Limiter
}

// NewWriter throttles writes to w. It returns w itself when limiter is nil.
func NewWriter(ctx context.Context, w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{ctx: ctx, w: w, limiter: limiter}
}

func (w *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := min(len(p)-written, writeChunk)
		if err := w.limiter.Wait(w.ctx, chunk); err != nil {
			return written, err
		}
		n, err := w.w.Write(p[written : written+chunk])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
