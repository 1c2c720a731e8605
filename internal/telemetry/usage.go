package telemetry

import (
	"context"
	"maps"
	"sync"
	"time"
)

// Usage is a point-in-time copy of a UsageTracker.
type Usage struct {
	Counts   map[string]int
	LastUsed map[string]time.Time
	Failures int
}

// UsageTracker counts how often each operation ran and when it last ran.
// Operations are component names plus "analysis" for whole runs.
type UsageTracker struct {
	mu       sync.Mutex
	counts   map[string]int
	lastUsed map[string]time.Time
	failures int
	clock    func() time.Time
}

// NewUsageTracker creates a tracker. A nil clock defaults to time.Now.
func NewUsageTracker(clock func() time.Time) *UsageTracker {
	if clock == nil {
		clock = time.Now
	}
	return &UsageTracker{
		counts:   make(map[string]int),
		lastUsed: make(map[string]time.Time),
		clock:    clock,
	}
}

func (u *UsageTracker) RecordComponent(_ context.Context, stats ComponentStats) {
	u.touch(stats.Component)
}

func (u *UsageTracker) RecordRun(_ context.Context, stats RunStats) {
	u.touch("analysis")
	if stats.Err != nil {
		u.mu.Lock()
		u.failures++
		u.mu.Unlock()
	}
}

func (u *UsageTracker) touch(op string) {
	now := u.clock().UTC()
	u.mu.Lock()
	defer u.mu.Unlock()
	u.counts[op]++
	u.lastUsed[op] = now
}

// Snapshot returns a copy of the current counters.
func (u *UsageTracker) Snapshot() Usage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return Usage{
		Counts:   maps.Clone(u.counts),
		LastUsed: maps.Clone(u.lastUsed),
		Failures: u.failures,
	}
}

// Reset clears all counters.
func (u *UsageTracker) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	clear(u.counts)
	clear(u.lastUsed)
	u.failures = 0
}
