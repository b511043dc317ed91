package util

import (
	"sync"
	"time"
)

// Timer measures elapsed time and records named laps, e.g. one per pipeline stage.
type Timer struct {
	start time.Time
	mu    sync.Mutex
	last  time.Time
	laps  map[string]int64
}

// StartTimer creates a new timer starting at current time.
func StartTimer() *Timer {
	now := time.Now()
	return &Timer{start: now, last: now, laps: make(map[string]int64)}
}

// ElapsedMs returns the elapsed milliseconds since start.
func (t *Timer) ElapsedMs() int64 {
	if t == nil || t.start.IsZero() {
		return 0
	}
	return time.Since(t.start).Milliseconds()
}

// Lap records the milliseconds since the previous lap under name.
func (t *Timer) Lap(name string) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	ms := now.Sub(t.last).Milliseconds()
	t.last = now
	t.laps[name] += ms
	return ms
}

// Laps returns a copy of the recorded laps keyed by name.
func (t *Timer) Laps() map[string]int64 {
	out := make(map[string]int64)
	if t == nil {
		return out
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range t.laps {
		out[k] = v
	}
	return out
}
