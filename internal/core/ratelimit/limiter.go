package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const (
	DefaultMaxEvents = 5
	DefaultWindow    = 60 * time.Second
)

// Limiter counts events per principal over a sliding window.
// Pruning happens on every call; Sweep additionally drops idle principals.
type Limiter struct {
	mu      sync.RWMutex
	windows map[string]*slidingWindow

	max    int
	window time.Duration
	store  Store
	now    func() time.Time
	logger *slog.Logger

	// saveMu serializes snapshot writes so an older snapshot never
	// overwrites a newer one.
	saveMu sync.Mutex
}

// slidingWindow tracks event timestamps for one principal.
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithStore persists snapshots through store.
func WithStore(store Store) Option {
	return func(l *Limiter) { l.store = store }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger sets the logger used for persistence problems.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// New creates a limiter allowing max events per window.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	if max <= 0 {
		max = DefaultMaxEvents
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		windows: make(map[string]*slidingWindow),
		max:     max,
		window:  window,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Max returns the number of events allowed per window.
func (l *Limiter) Max() int { return l.max }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// IsLimited reports whether principal has used its whole quota.
func (l *Limiter) IsLimited(principal string) bool {
	return l.count(principal) >= l.max
}

// Remaining returns how many events principal may still record.
func (l *Limiter) Remaining(principal string) int {
	remaining := l.max - l.count(principal)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ResetAt returns when the oldest event leaves the window, or now when
// the window is empty.
func (l *Limiter) ResetAt(principal string) time.Time {
	now := l.now()
	w := l.get(principal)
	if w == nil {
		return now
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleanup(now, l.window)
	if len(w.timestamps) == 0 {
		return now
	}
	return w.timestamps[0].Add(l.window)
}

// Record adds an event for principal and persists a snapshot. The event
// is kept in memory even when persistence fails.
func (l *Limiter) Record(ctx context.Context, principal string) error {
	l.add(principal, false)
	return l.Flush(ctx)
}

// Allow records an event for principal only if the quota has room,
// checking and appending in one critical section. The error reports a
// failed snapshot; the event stays counted.
func (l *Limiter) Allow(ctx context.Context, principal string) (bool, error) {
	if !l.add(principal, true) {
		return false, nil
	}
	return true, l.Flush(ctx)
}

func (l *Limiter) add(principal string, capped bool) bool {
	now := l.now()
	for {
		w := l.getOrCreate(principal)
		// Prune may drop the window between lookup and append.
		l.mu.RLock()
		current := l.windows[principal] == w
		added := false
		if current {
			w.mu.Lock()
			w.cleanup(now, l.window)
			if !capped || len(w.timestamps) < l.max {
				w.timestamps = append(w.timestamps, now)
				added = true
			}
			w.mu.Unlock()
		}
		l.mu.RUnlock()
		if current {
			return added
		}
	}
}

func (l *Limiter) count(principal string) int {
	w := l.get(principal)
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cleanup(l.now(), l.window)
	return len(w.timestamps)
}

func (l *Limiter) get(principal string) *slidingWindow {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.windows[principal]
}

func (l *Limiter) getOrCreate(principal string) *slidingWindow {
	if w := l.get(principal); w != nil {
		return w
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if w := l.windows[principal]; w != nil {
		return w
	}
	w := &slidingWindow{}
	l.windows[principal] = w
	return w
}

// cleanup removes timestamps that fell out of the window. Must be called
// while holding sw.mu.
func (sw *slidingWindow) cleanup(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// Prune drops principals whose windows are empty and returns how many were removed.
func (l *Limiter) Prune() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for principal, w := range l.windows {
		w.mu.Lock()
		w.cleanup(now, l.window)
		empty := len(w.timestamps) == 0
		w.mu.Unlock()
		if empty {
			delete(l.windows, principal)
			removed++
		}
	}
	return removed
}

// Sweep prunes idle principals every interval until ctx is done.
func (l *Limiter) Sweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.window
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(); n > 0 {
				l.logger.Debug("rate limiter sweep", "removed", n)
			}
		}
	}
}

// Snapshot returns the live events of every principal in epoch milliseconds.
func (l *Limiter) Snapshot() Snapshot {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	snap := make(Snapshot, len(l.windows))
	for principal, w := range l.windows {
		w.mu.Lock()
		w.cleanup(now, l.window)
		if len(w.timestamps) > 0 {
			ms := make([]int64, len(w.timestamps))
			for i, ts := range w.timestamps {
				ms[i] = ts.UnixMilli()
			}
			snap[principal] = ms
		}
		w.mu.Unlock()
	}
	return snap
}

// Flush writes the current snapshot through the store, if any.
func (l *Limiter) Flush(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	if err := l.store.Save(ctx, l.Snapshot()); err != nil {
		return fmt.Errorf("flush rate limiter: %w", err)
	}
	return nil
}

// Load restores state from the store, discarding events older than the
// window. A corrupt snapshot is logged and the limiter starts empty.
func (l *Limiter) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	snap, err := l.store.Load(ctx)
	if errors.Is(err, ErrCorruptSnapshot) {
		l.logger.Warn("discarding rate limiter snapshot", "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load rate limiter: %w", err)
	}

	cutoff := l.now().Add(-l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for principal, events := range snap {
		var kept []time.Time
		for _, ms := range events {
			ts := time.UnixMilli(ms)
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			continue
		}
		slices.SortFunc(kept, func(a, b time.Time) int { return a.Compare(b) })
		l.windows[principal] = &slidingWindow{timestamps: kept}
	}
	return nil
}

// Close flushes the final snapshot.
func (l *Limiter) Close(ctx context.Context) error {
	return l.Flush(ctx)
}
