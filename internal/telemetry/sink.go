// Package telemetry provides the sinks an analysis run reports to. Sinks are
// passed in by the caller; the engine keeps no counters of its own.
package telemetry

import (
	"context"
	"time"
)

// ComponentStats describes one engine component's execution.
type ComponentStats struct {
	RunID     string
	Component string
	Duration  time.Duration
	Findings  int
}

// RunStats describes a whole analysis run.
type RunStats struct {
	RunID           string
	ProjectID       string
	Duration        time.Duration
	Conflicts       int
	Recommendations int
	Score           int
	Err             error
}

// Sink receives telemetry from analysis runs. Implementations must be safe
// for concurrent use: components report from their own goroutines.
type Sink interface {
	RecordComponent(ctx context.Context, stats ComponentStats)
	RecordRun(ctx context.Context, stats RunStats)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordComponent(context.Context, ComponentStats) {}
func (Nop) RecordRun(context.Context, RunStats)             {}

// Multi fans out to several sinks. Nil entries are skipped.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) RecordComponent(ctx context.Context, stats ComponentStats) {
	for _, s := range m {
		s.RecordComponent(ctx, stats)
	}
}

func (m multi) RecordRun(ctx context.Context, stats RunStats) {
	for _, s := range m {
		s.RecordRun(ctx, stats)
	}
}
