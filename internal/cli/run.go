package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vampirenirmal/storyscope/internal/analysis"
	"github.com/vampirenirmal/storyscope/internal/config"
	"github.com/vampirenirmal/storyscope/internal/insights"
	"github.com/vampirenirmal/storyscope/internal/narrative"
	"github.com/vampirenirmal/storyscope/internal/schema"
	"github.com/vampirenirmal/storyscope/internal/server"
	"github.com/vampirenirmal/storyscope/internal/storage"
	"github.com/vampirenirmal/storyscope/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// runner carries the wiring shared by the subcommands.
type runner struct {
	cfg    Config
	app    *config.Config
	out    io.Writer
	logger *slog.Logger
	engine *analysis.Engine
	sink   telemetry.Sink
	usage  *telemetry.UsageTracker
}

// Run executes the parsed command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := newLogger(errOut, cfg.Verbose)

	app, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	applyOverrides(app, cfg)

	switch cfg.Command {
	case CommandSchema:
		sch, err := schema.ByName(cfg.SchemaName)
		if err != nil {
			return err
		}
		return writeJSON(out, sch)
	case CommandPolicy:
		policy, err := loadPolicy(app.Engine.PolicyFile)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(policy); err != nil {
			return fmt.Errorf("writing policy: %w", err)
		}
		return enc.Close()
	}

	shutdown, err := telemetry.Setup(ctx, telemetry.ExportConfig{
		Endpoint:    app.Telemetry.OTLPEndpoint,
		ServiceName: app.Telemetry.ServiceName,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("Flushing telemetry failed", "error", err)
		}
	}()

	otelSink, err := telemetry.NewOTelSink(nil)
	if err != nil {
		return err
	}
	usage := telemetry.NewUsageTracker(nil)

	policy, err := loadPolicy(app.Engine.PolicyFile)
	if err != nil {
		return err
	}
	engine, err := analysis.New(
		analysis.WithPolicy(policy),
		analysis.WithLogger(logger.With("component", "analysis")),
		analysis.WithSequential(app.Engine.Sequential),
	)
	if err != nil {
		return err
	}

	r := &runner{
		cfg:    cfg,
		app:    app,
		out:    out,
		logger: logger,
		engine: engine,
		sink:   telemetry.Multi(usage, otelSink),
		usage:  usage,
	}
	defer r.logUsage()

	switch cfg.Command {
	case CommandAnalyze:
		return r.analyze(ctx, cfg.Inputs[0])
	case CommandBatch:
		return r.batch(ctx, cfg.Inputs)
	case CommandServe:
		return r.serve(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cfg.Command)
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "storyscope",
	}))
}

// applyOverrides lets flags win over the config file.
func applyOverrides(app *config.Config, cfg Config) {
	if cfg.PolicyFile != "" {
		app.Engine.PolicyFile = cfg.PolicyFile
	}
	if cfg.Sequential {
		app.Engine.Sequential = true
	}
	if cfg.Workers > 0 {
		app.Engine.BatchWorkers = cfg.Workers
	}
	if cfg.Insights {
		app.Insights.Enabled = true
	}
	if cfg.Addr != "" {
		app.Server.Addr = cfg.Addr
	}
}

func loadPolicy(path string) (analysis.Policy, error) {
	if path == "" {
		return analysis.DefaultPolicy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return analysis.Policy{}, fmt.Errorf("opening policy: %w", err)
	}
	defer f.Close()
	return analysis.LoadPolicy(f)
}

func (r *runner) reports() *storage.ReportStore {
	return storage.NewReportStore(storage.NewFileSystem(r.app.Output.ReportDir))
}

// analyzer builds the insights client. The flag reports whether insights were
// requested; a nil analyzer with true means the provider could not be built,
// and Supplement then reports supplementary analysis as unavailable.
func (r *runner) analyzer(ctx context.Context) (insights.Analyzer, bool) {
	ic := r.app.Insights
	if !ic.Enabled {
		return nil, false
	}
	logger := r.insightsLogger()
	provider, err := insights.NewProvider(ctx, ic.Provider, ic.APIKey(), ic.Model, ic.BaseURL)
	if err != nil {
		logger.Warn("Insights unavailable, continuing with structural analysis only",
			"provider", ic.Provider,
			"error", err)
		return nil, true
	}

	opts := []insights.Option{
		insights.WithRetry(ic.MaxRetries),
		insights.WithTimeout(ic.Timeout),
		insights.WithRateLimit(ic.RateLimit.RequestsPerMinute, ic.RateLimit.BurstSize),
		insights.WithLogger(logger),
	}
	if ic.TokenBudget > 0 {
		var tokenizer insights.Tokenizer
		if ic.Provider != "mock" {
			tk, err := insights.NewTiktokenTokenizer(ic.Model)
			if err != nil {
				logger.Warn("Token encoding unavailable, estimating token counts", "error", err)
			} else {
				tokenizer = tk
			}
		}
		opts = append(opts, insights.WithTokenBudget(ic.TokenBudget, tokenizer))
	}

	if ic.CacheTTL > 0 {
		cache := insights.NewResponseCache(storage.NewFileSystem(r.app.Output.ReportDir), ic.CacheTTL,
			r.logger.With("component", "insights_cache"))
		opts = append(opts, insights.WithCache(cache))
	}

	logger.Debug("Insights enabled", "provider", provider.Name(), "model", ic.Model)
	return insights.NewClient(provider, opts...), true
}

func (r *runner) insightsLogger() *slog.Logger {
	return r.logger.With("component", "insights")
}

func (r *runner) analyze(ctx context.Context, path string) error {
	snap, err := narrative.LoadFile(path)
	if err != nil {
		return err
	}
	result, err := r.engine.Analyze(ctx, snap, r.sink)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", path, err)
	}

	resp := server.AnalyzeResponse{Result: result}
	if a, ok := r.analyzer(ctx); ok {
		resp.Result, resp.Suggestions = insights.Supplement(ctx, r.insightsLogger(), a, snap, result)
	}

	if r.cfg.Save {
		report, err := r.reports().Save(ctx, snap.ProjectID, resp.Result, resp.Suggestions)
		if err != nil {
			return err
		}
		resp.ReportID = report.ID
		r.logger.Info("Report saved", "project_id", snap.ProjectID, "report_id", report.ID)
	}

	return writeJSON(r.out, resp)
}

// BatchEntry is one element of the batch output array.
type BatchEntry struct {
	File        string                `json:"file"`
	ProjectID   string                `json:"projectId,omitempty"`
	Result      *analysis.Result      `json:"result,omitempty"`
	Suggestions []insights.Suggestion `json:"suggestions,omitempty"`
	ReportID    string                `json:"reportId,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// batch analyzes every file it can read. Files that fail to load or
// validate are reported per entry; the command fails only if none succeed.
func (r *runner) batch(ctx context.Context, paths []string) error {
	entries := make([]BatchEntry, len(paths))
	var snaps []*narrative.Snapshot
	var slots []int
	for i, path := range paths {
		entries[i].File = path
		snap, err := narrative.LoadFile(path)
		if err != nil {
			entries[i].Error = err.Error()
			continue
		}
		snaps = append(snaps, snap)
		slots = append(slots, i)
	}

	results, err := r.engine.AnalyzeBatch(ctx, snaps, r.app.Engine.BatchWorkers, r.sink)
	if err != nil {
		return err
	}

	var store *storage.ReportStore
	if r.cfg.Save {
		store = r.reports()
	}
	a, withInsights := r.analyzer(ctx)

	succeeded := 0
	for _, br := range results {
		e := &entries[slots[br.Index]]
		e.ProjectID = br.ProjectID
		if br.Err != nil {
			e.Error = br.Err.Error()
			continue
		}
		e.Result = br.Result
		succeeded++
		if withInsights {
			e.Result, e.Suggestions = insights.Supplement(ctx, r.insightsLogger(), a, snaps[br.Index], br.Result)
		}
		if store != nil {
			report, err := store.Save(ctx, br.ProjectID, e.Result, e.Suggestions)
			if err != nil {
				e.Error = err.Error()
				continue
			}
			e.ReportID = report.ID
		}
	}

	if err := writeJSON(r.out, entries); err != nil {
		return err
	}
	if succeeded == 0 {
		return errors.New("no snapshot in the batch could be analyzed")
	}
	return nil
}

func (r *runner) serve(ctx context.Context) error {
	opts := []server.Option{
		server.WithReports(r.reports()),
		server.WithSink(r.sink),
		server.WithLogger(r.logger.With("component", "server")),
	}
	if a, _ := r.analyzer(ctx); a != nil {
		opts = append(opts, server.WithInsights(a))
	}
	srv := server.New(r.engine, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(r.app.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func (r *runner) logUsage() {
	u := r.usage.Snapshot()
	r.logger.Debug("Usage",
		"runs", u.Counts["analysis"],
		"failures", u.Failures)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}
