package insights

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/vampirenirmal/storyscope/internal/analysis"
	"github.com/vampirenirmal/storyscope/internal/narrative"
)

const placeholderID = "rec-supplementary-unavailable"

// Supplement asks the model for each analysis type and returns its
// suggestions next to the engine result. The deterministic fields of result
// are never changed. When any request fails, the returned result is a copy
// with one low-priority recommendation appended that says supplementary
// analysis was unavailable; otherwise result itself is returned.
//
// A nil analyzer behaves like a model that is always unavailable. Failures are
// logged to logger, or to the default logger when it is nil.
func Supplement(ctx context.Context, logger *slog.Logger, a Analyzer, snap *narrative.Snapshot, result *analysis.Result, types ...AnalysisType) (*analysis.Result, []Suggestion) {
	if len(types) == 0 {
		types = AnalysisTypes()
	}
	if logger == nil {
		logger = slog.Default().With("component", "insights")
	}

	var (
		suggestions []Suggestion
		failed      []string
	)
	for _, t := range types {
		if a == nil {
			failed = append(failed, string(t))
			continue
		}
		resp, err := a.Analyze(ctx, BuildRequest(snap, t))
		if err == nil {
			var got []Suggestion
			got, err = resp.Suggestions(t)
			suggestions = append(suggestions, got...)
		}
		if err != nil {
			logger.Warn("Supplementary analysis failed",
				"analysis_type", t,
				"error", err)
			failed = append(failed, string(t))
		}
	}

	if len(failed) == 0 || result == nil {
		return result, suggestions
	}
	return withPlaceholder(result, failed), suggestions
}

func withPlaceholder(result *analysis.Result, failed []string) *analysis.Result {
	out := *result
	if slices.ContainsFunc(out.Recommendations, func(r analysis.Recommendation) bool { return r.ID == placeholderID }) {
		return &out
	}
	out.Recommendations = append(slices.Clone(result.Recommendations), analysis.Recommendation{
		ID:              placeholderID,
		Type:            "supplementary",
		Priority:        analysis.PriorityLow,
		Title:           "Supplementary analysis unavailable",
		Description:     "AI-assisted suggestions could not be produced for: " + strings.Join(failed, ", "),
		SuggestedAction: "Retry later; the structural analysis above is complete without it",
	})
	return &out
}
