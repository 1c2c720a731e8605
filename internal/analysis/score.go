package analysis

import "math"

// score folds every finding into a single 0-100 quality score. With no
// characters the arc term contributes nothing.
func score(p Policy, conflicts []Conflict, arcs []CharacterArcAnalysis, holes []PlotHole) int {
	s := 100.0
	for _, c := range conflicts {
		s -= p.Penalty(c.Severity)
	}
	if len(arcs) > 0 {
		total := 0
		for _, a := range arcs {
			total += a.Completeness
		}
		avg := float64(total) / float64(len(arcs))
		s -= (100 - avg) * p.Penalties.ArcFactor
	}
	s -= p.Penalties.PlotHole * float64(len(holes))

	return int(math.Round(math.Min(math.Max(s, 0), 100)))
}
