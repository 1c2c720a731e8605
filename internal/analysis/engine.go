// Package analysis implements the story structure analysis engine: a
// deterministic, rule-based diagnosis of a narrative snapshot.
//
// The engine runs four consistency checkers, the character arc analyzer and
// the plot structure analyzer as independent reads of the same snapshot, then
// folds their findings into recommendations and an overall score. Identical
// input always produces identical output.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vampirenirmal/storyscope/internal/narrative"
	"github.com/vampirenirmal/storyscope/internal/telemetry"
)

// Component names reported to telemetry sinks.
const (
	ComponentCharacters      = "character_consistency"
	ComponentTimeline        = "timeline"
	ComponentPlotLogic       = "plot_logic"
	ComponentMotivation      = "motivation"
	ComponentArcs            = "character_arcs"
	ComponentStructure       = "plot_structure"
	ComponentRecommendations = "recommendations"
	ComponentScore           = "score"
)

type Engine struct {
	policy     Policy
	logger     *slog.Logger
	tracer     trace.Tracer
	sequential bool
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

// WithSequential runs the independent components one after another instead
// of concurrently. Output is identical either way.
func WithSequential(sequential bool) Option {
	return func(e *Engine) {
		e.sequential = sequential
	}
}

// New creates an engine using DefaultPolicy unless WithPolicy overrides it.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		policy: DefaultPolicy(),
		logger: slog.Default().With("component", "analysis"),
		tracer: otel.Tracer(telemetry.InstrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.policy.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Policy returns the weights the engine applies.
func (e *Engine) Policy() Policy {
	return e.policy
}

// findings holds per-component output. Each component writes only its own
// field, so concurrent components need no locking.
type findings struct {
	characters []Conflict
	timeline   []Conflict
	logic      []Conflict
	motivation []Conflict
	arcs       []CharacterArcAnalysis
	structure  PlotStructureAnalysis
}

type component struct {
	name string
	run  func(ix *storyIndex) int
}

func (e *Engine) components(f *findings) []component {
	p := e.policy
	return []component{
		{ComponentCharacters, func(ix *storyIndex) int {
			f.characters = checkCharacters(ix, p)
			return len(f.characters)
		}},
		{ComponentTimeline, func(ix *storyIndex) int {
			f.timeline = checkTimeline(ix, p)
			return len(f.timeline)
		}},
		{ComponentPlotLogic, func(ix *storyIndex) int {
			f.logic = checkPlotLogic(ix, p)
			return len(f.logic)
		}},
		{ComponentMotivation, func(ix *storyIndex) int {
			f.motivation = checkMotivation(ix, p)
			return len(f.motivation)
		}},
		{ComponentArcs, func(ix *storyIndex) int {
			f.arcs = analyzeArcs(ix, p)
			return len(f.arcs)
		}},
		{ComponentStructure, func(ix *storyIndex) int {
			f.structure = analyzeStructure(ix, p)
			return len(f.structure.PlotHoles) + len(f.structure.Pacing.Issues)
		}},
	}
}

// Analyze validates the snapshot and produces its diagnosis. The snapshot is
// never modified. A nil sink discards telemetry. Cancellation is honoured
// between components, never inside one.
func (e *Engine) Analyze(ctx context.Context, snap *narrative.Snapshot, sink telemetry.Sink) (*Result, error) {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	runID := uuid.NewString()
	projectID := ""
	if snap != nil {
		projectID = snap.ProjectID
	}
	logger := e.logger.With("run_id", runID, "project_id", projectID)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "analysis.Analyze",
		trace.WithAttributes(attribute.String("storyscope.run_id", runID)))
	defer span.End()

	result, err := e.analyze(ctx, snap, sink, runID, logger)

	stats := telemetry.RunStats{
		RunID:     runID,
		ProjectID: projectID,
		Duration:  time.Since(start),
		Err:       err,
	}
	if result != nil {
		stats.Conflicts = len(result.Conflicts)
		stats.Recommendations = len(result.Recommendations)
		stats.Score = result.OverallScore
	}
	sink.RecordRun(ctx, stats)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("Analysis failed",
			"duration_ms", stats.Duration.Milliseconds(),
			"error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("storyscope.conflicts", stats.Conflicts),
		attribute.Int("storyscope.score", stats.Score),
	)
	logger.Info("Analysis completed",
		"duration_ms", stats.Duration.Milliseconds(),
		"conflicts", stats.Conflicts,
		"recommendations", stats.Recommendations,
		"score", stats.Score)
	return result, nil
}

func (e *Engine) analyze(ctx context.Context, snap *narrative.Snapshot, sink telemetry.Sink, runID string, logger *slog.Logger) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := narrative.Validate(snap); err != nil {
		return nil, fmt.Errorf("rejecting snapshot: %w", err)
	}

	ix := newStoryIndex(snap, e.policy.UnifyBeatVocabularies)
	logger.Debug("Starting analysis",
		"characters", len(snap.Characters),
		"chapters", len(snap.Chapters),
		"events", snap.EventCount(),
		"parallel", !e.sequential)

	var f findings
	comps := e.components(&f)
	if e.sequential {
		for _, c := range comps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			e.runComponent(ctx, c, ix, sink, runID, logger)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range comps {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				e.runComponent(gctx, c, ix, sink, runID, logger)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conflicts := make([]Conflict, 0, len(f.characters)+len(f.timeline)+len(f.logic)+len(f.motivation))
	conflicts = append(conflicts, f.characters...)
	conflicts = append(conflicts, f.timeline...)
	conflicts = append(conflicts, f.logic...)
	conflicts = append(conflicts, f.motivation...)

	result := &Result{
		Conflicts:     conflicts,
		CharacterArcs: f.arcs,
		PlotStructure: f.structure,
	}
	e.runComponent(ctx, component{ComponentRecommendations, func(*storyIndex) int {
		result.Recommendations = recommend(e.policy, conflicts, f.arcs, f.structure)
		return len(result.Recommendations)
	}}, ix, sink, runID, logger)
	e.runComponent(ctx, component{ComponentScore, func(*storyIndex) int {
		result.OverallScore = score(e.policy, conflicts, f.arcs, f.structure.PlotHoles)
		return 0
	}}, ix, sink, runID, logger)

	return result, nil
}

func (e *Engine) runComponent(ctx context.Context, c component, ix *storyIndex, sink telemetry.Sink, runID string, logger *slog.Logger) {
	ctx, span := e.tracer.Start(ctx, "analysis."+c.name)
	defer span.End()

	start := time.Now()
	n := c.run(ix)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.Int("storyscope.findings", n))
	sink.RecordComponent(ctx, telemetry.ComponentStats{
		RunID:     runID,
		Component: c.name,
		Duration:  elapsed,
		Findings:  n,
	})
	logger.Debug("Component finished",
		"analysis_component", c.name,
		"findings", n,
		"duration_ms", elapsed.Milliseconds())
}
