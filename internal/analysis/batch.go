package analysis

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vampirenirmal/storyscope/internal/narrative"
	"github.com/vampirenirmal/storyscope/internal/telemetry"
)

// BatchResult is the outcome for one snapshot of a batch. Err holds a
// per-snapshot failure such as a validation error.
type BatchResult struct {
	Index     int
	ProjectID string
	Result    *Result
	Err       error
}

// AnalyzeBatch analyzes several snapshots with at most workers running at
// once. Results come back in input order. A snapshot that fails validation
// is reported in its BatchResult and does not stop the others; a canceled
// context does.
func (e *Engine) AnalyzeBatch(ctx context.Context, snaps []*narrative.Snapshot, workers int, sink telemetry.Sink) ([]BatchResult, error) {
	if len(snaps) == 0 {
		e.logger.Debug("No snapshots to analyze in batch")
		return []BatchResult{}, nil
	}
	if workers <= 0 {
		workers = 1
	}

	e.logger.Info("Starting batch analysis",
		"worker_count", workers,
		"snapshot_count", len(snaps))

	results := make([]BatchResult, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, snap := range snaps {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.Analyze(gctx, snap, sink)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			br := BatchResult{Index: i, Result: res, Err: err}
			if snap != nil {
				br.ProjectID = snap.ProjectID
			}
			results[i] = br
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("Batch analysis aborted", "error", err)
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("Batch analysis completed",
		slog.Int("result_count", len(results)),
		slog.Int("failed_count", failed))
	return results, nil
}
