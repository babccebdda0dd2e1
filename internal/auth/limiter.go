// ABOUTME: Per client IP token bucket limiting login attempts
// ABOUTME: Idle buckets are purged by a background goroutine until Close

package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginLimiter throttles login attempts per client IP.
type LoginLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	done     chan struct{}
	closeOne sync.Once
}

// NewLoginLimiter allows perMinute sustained attempts with the given burst.
// A non-positive perMinute disables limiting.
func NewLoginLimiter(perMinute float64, burst int) *LoginLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst <= 0 {
		burst = 1
	}
	l := &LoginLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		burst:   burst,
		idle:    10 * time.Minute,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.purgeLoop()
	return l
}

// Allow reports whether an attempt from ip may proceed now.
func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *LoginLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *LoginLimiter) purgeLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.purge()
		}
	}
}

// purge drops clients idle for longer than the idle window.
func (l *LoginLimiter) purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.idle)
	for ip, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
}

// Close stops the purge goroutine. Safe to call more than once.
func (l *LoginLimiter) Close() {
	l.closeOne.Do(func() { close(l.done) })
}
