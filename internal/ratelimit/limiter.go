// Package ratelimit implements an exact sliding-window rate limiter keyed by
// (platform, endpoint class). Unlike a token bucket it never grants more than
// the configured permits inside any window, which is what the remote API
// enforces remotely with compounding penalties.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/riftwatch/rift-harvester/internal/telemetry"
)

// Window pairs a duration with the maximum permits allowed inside it.
type Window struct {
	Duration time.Duration
	Limit    int
}

// Config holds the default windows applied to every key plus per-key
// overrides for endpoint classes with independently defined ceilings.
type Config struct {
	Defaults  []Window
	Overrides map[string][]Window
}

// DefaultWindows mirrors the remote API's development limits: 20 requests per
// 10 seconds and 100 per 10 minutes.
func DefaultWindows(per10Sec, per10Min int) []Window {
	return []Window{
		{Duration: 10 * time.Second, Limit: per10Sec},
		{Duration: 10 * time.Minute, Limit: per10Min},
	}
}

// Limiter tracks grant timestamps per key. All bookkeeping happens under one
// mutex; waiters sleep outside of it and re-check on wake.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	windows []windowState
}

type windowState struct {
	duration time.Duration
	limit    int
	stamps   []time.Time
}

// WindowStatus reports permits used versus the ceiling for one window.
type WindowStatus struct {
	Duration time.Duration
	Used     int
	Limit    int
}

// New creates a Limiter. Defaults must contain at least one window.
func New(cfg Config) (*Limiter, error) {
	if len(cfg.Defaults) == 0 {
		return nil, fmt.Errorf("ratelimit: at least one default window required")
	}
	for _, w := range cfg.Defaults {
		if w.Duration <= 0 || w.Limit <= 0 {
			return nil, fmt.Errorf("ratelimit: invalid window %+v", w)
		}
	}
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}, nil
}

// Acquire blocks until a permit is available for key in every window, then
// records the grant. It returns early with the context error on cancellation.
// Permits are never exceeded and unused permits expire with their window.
func (l *Limiter) Acquire(ctx context.Context, key string) error {
	start := l.now()
	for {
		wait, ok := l.tryAcquire(key)
		if ok {
			if d := l.now().Sub(start); d > time.Millisecond {
				telemetry.ObserveRateLimitWait(key, d)
			}
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit acquire %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAcquire either records a grant in all windows or reports how long the
// caller should sleep before the most constrained window has room again.
func (l *Limiter) tryAcquire(key string) (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.bucket(key)
	b.prune(now)

	wait = 0
	for i := range b.windows {
		w := &b.windows[i]
		if len(w.stamps) < w.limit {
			continue
		}
		until := w.stamps[0].Add(w.duration).Sub(now)
		if until > wait {
			wait = until
		}
	}
	if wait > 0 {
		return wait, false
	}

	for i := range b.windows {
		b.windows[i].stamps = append(b.windows[i].stamps, now)
	}
	return 0, true
}

// Status reports current usage for key without consuming a permit.
func (l *Limiter) Status(key string) []WindowStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(key)
	b.prune(l.now())

	out := make([]WindowStatus, 0, len(b.windows))
	for _, w := range b.windows {
		out = append(out, WindowStatus{Duration: w.duration, Used: len(w.stamps), Limit: w.limit})
	}
	return out
}

func (l *Limiter) bucket(key string) *bucket {
	if b, ok := l.buckets[key]; ok {
		return b
	}
	windows := l.cfg.Defaults
	if override, ok := l.cfg.Overrides[key]; ok && len(override) > 0 {
		windows = override
	}
	b := &bucket{windows: make([]windowState, 0, len(windows))}
	for _, w := range windows {
		b.windows = append(b.windows, windowState{duration: w.Duration, limit: w.Limit})
	}
	l.buckets[key] = b
	return b
}

func (b *bucket) prune(now time.Time) {
	for i := range b.windows {
		w := &b.windows[i]
		cut := 0
		for cut < len(w.stamps) && now.Sub(w.stamps[cut]) > w.duration {
			cut++
		}
		if cut > 0 {
			w.stamps = append(w.stamps[:0], w.stamps[cut:]...)
		}
	}
}

// Key builds the canonical limiter key for a platform and endpoint class.
func Key(platform, endpoint string) string {
	return platform + ":" + endpoint
}
