package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Window is the fixed counting window
const Window = time.Minute

/* Limiter throttles requests per (provider, source) key
 * A limit of zero or less disables throttling for that provider
 */
type Limiter interface {
	Allow(ctx context.Context, provider, source string, limit int) (bool, error)
}

type window struct {
	count   int
	resetAt time.Time
}

/* Memory is a fixed-window counter held in process memory
 * Counts are not shared between instances; use Redis when running several
 */
type Memory struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	windows map[string]*window
}

// NewMemory creates an in-memory limiter
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{clock: clock, windows: make(map[string]*window)}
}

// Allow counts the request and reports whether it is within the limit
func (m *Memory) Allow(ctx context.Context, provider, source string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key := provider + ":" + source
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		m.windows[key] = &window{count: 1, resetAt: now.Add(Window)}
		return true, nil
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// Cleanup drops expired windows and returns how many were removed
func (m *Memory) Cleanup() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// Run removes expired windows every interval until ctx is cancelled
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Cleanup()
		}
	}
}
