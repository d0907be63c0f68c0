package ftpserver

import (
	"sync"
	"time"
)

// loginGuard counts failed logins per remote address and locks the address
// out for a while once the limit is reached.
type loginGuard struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*loginRecord
}

type loginRecord struct {
	failures int
	until    time.Time
}

func newLoginGuard(max int, window time.Duration) *loginGuard {
	return &loginGuard{
		max:     max,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*loginRecord),
	}
}

// lockedUntil reports whether ip is currently locked out.
func (g *loginGuard) lockedUntil(ip string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.entries[ip]
	if !ok || rec.until.IsZero() {
		return time.Time{}, false
	}
	if g.now().Before(rec.until) {
		return rec.until, true
	}
	delete(g.entries, ip)
	return time.Time{}, false
}

// fail records a failed attempt. It returns the end of the lockout when this
// failure triggered one.
func (g *loginGuard) fail(ip string) (time.Time, bool) {
	if g.max <= 0 {
		return time.Time{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.entries[ip]
	if !ok {
		rec = &loginRecord{}
		g.entries[ip] = rec
	}
	rec.failures++
	if rec.failures < g.max {
		return time.Time{}, false
	}
	rec.failures = 0
	rec.until = g.now().Add(g.window)
	return rec.until, true
}

func (g *loginGuard) succeed(ip string) {
	g.mu.Lock()
	delete(g.entries, ip)
	g.mu.Unlock()
}
