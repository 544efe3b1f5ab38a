package discord

import (
	"sync"
	"time"
)

// Cooldown is a per-key sliding-window limiter: at most limit events per key within window.
type Cooldown struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration
}

// NewCooldown constructs a Cooldown. Invalid inputs fall back to one event per five seconds.
func NewCooldown(limit int, window time.Duration) *Cooldown {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Cooldown{events: make(map[string][]time.Time), limit: limit, window: window}
}

// Allow records an event for key at now when permitted. Otherwise it reports how long until the
// oldest event in the window leaves it.
func (c *Cooldown) Allow(key string, now time.Time) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	events := prune(c.events[key], now.Add(-c.window))
	if len(events) >= c.limit {
		c.events[key] = events
		return false, events[0].Add(c.window).Sub(now)
	}
	c.events[key] = append(events, now)
	return true, 0
}

// Sweep drops keys with no events inside the window.
func (c *Cooldown) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cut := now.Add(-c.window)
	n := 0
	for k, events := range c.events {
		if events = prune(events, cut); len(events) == 0 {
			delete(c.events, k)
			n++
			continue
		}
		c.events[k] = events
	}
	return n
}

func prune(events []time.Time, cut time.Time) []time.Time {
	dst := events[:0]
	for _, t := range events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	return dst
}
